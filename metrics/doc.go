// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics exposes Prometheus collectors for ledger operations,
// automatic compilation transitions, audit sink failures, and HTTP latency.
package metrics
