/*
Package netmon monitors connectivity to the record store.

The monitor probes a lightweight liveness endpoint on a fixed interval,
classifies the result into a status (online / offline / slow) and a quality
grade (excellent..poor) from the round-trip latency, and notifies subscribers
only when the status actually changes.

# Probe flow

 1. Every Interval (default 30s): issue a zero-body HEAD with a 5s timeout
 2. Success: quality from latency (<100ms excellent, <300ms good, <1s fair,
    else poor); status SLOW when latency exceeds 1s, otherwise ONLINE
 3. Failure or timeout: status OFFLINE, quality unknown
 4. Transition out of OFFLINE: fire registered drain callbacks immediately

Platform connectivity events feed in through Hint, which schedules an
immediate re-probe; the probe result is authoritative, the hint is not.

The monitor also owns the retry cadence: components with queued work register
a drain callback via OnDrain, and the monitor invokes it every RetryInterval
(default 10s) and on reconnect.
*/
package netmon
