// Package timeouts defines shared timeout constants.
// Centralizing these values makes the durations discoverable.
package timeouts

import "time"

// SandboxExecution caps the wall-clock time of one custom agent decision.
const SandboxExecution = 100 * time.Millisecond

// Shutdown limits how long a command waits for telemetry to flush.
const Shutdown = 5 * time.Second
