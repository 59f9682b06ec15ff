// Package event provides the publish/subscribe core of agentrt.
//
// The package implements:
//   - Event, an immutable message with a topic-like type string and a
//     4-level priority
//   - Pattern, pre-compiled subscription patterns (exact, prefix, suffix,
//     match-all)
//   - Bus, a single-dispatch-loop pub/sub bus with priority ordering,
//     bounded history and request/reply correlation
//   - DeadLetterStore for capturing and replaying failed deliveries
//
// Design Influences:
//   - AWS EventBridge (dead letter queues, error handling)
//   - Apache Kafka (correlation IDs, ordered delivery within a class)
//   - NATS (subject-style topic patterns)
package event
