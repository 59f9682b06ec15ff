// Package agent defines the lifecycle contract every agentrt agent
// implements: start/stop hooks, an optional periodic tick, and wrapped
// emit/subscribe helpers bound to the event bus.
//
// Agents are bounded units of periodic and event-reactive behavior. Each
// agent owns its own tick timer; ticks from different agents interleave
// freely in wall-clock time, but a single agent's ticks never overlap.
// Failures inside hooks are contained: a failing agent transitions to
// StatusError and emits a diagnostic event, it never crashes the process
// or other agents.
package agent
