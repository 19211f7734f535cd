// Package ir provides the shared vocabulary of fintrack: endpoint descriptors,
// invalidation topics, constrained query values and content-addressed identity.
//
// This package contains type definitions and pure functions only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Query values are restricted to string, int, bool, array and object.
//     Floats in a query become decimal strings so that execution IDs are
//     stable across platforms; canonical JSON rejects them outright.
//   - All JSON tags use snake_case
//   - Ordering uses logical clocks (seq), never wall-clock timestamps
package ir
