/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ratelimit provides the admission decision engine for outbound notifications.
//
// The package consists of two components:
//   - CounterStore is a concurrency-safe key-sharded table of request counters.
//     Each counter lives for a fixed period that starts with the first request for its key.
//     Expired counters are invisible to all operations and are reclaimed lazily
//     (or by the optional periodic cleanup).
//   - AdmissionController consults an immutable PolicyTable (notification type -> limit and period)
//     and the CounterStore to approve or deny a request for a (type, recipient) pair.
//
// Notification types without a policy are unrestricted.
// The check of the counter and its increment are performed atomically under the lock of the key's shard,
// so concurrent requests for the same key never over-admit.
package ratelimit
