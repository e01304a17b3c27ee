/*
Package resilient wraps network-dependent operations with failure handling.

Execute is the single entry point: it fast-fails without touching the wire
when the monitor says the network is down, runs the operation exactly once
otherwise, and classifies any failure before rethrowing it. Validation,
not-found, and conflict failures are terminal and are never registered for
retry; only network-category failures earn a slot in the bounded in-memory
retry map.

Retries are out-of-band. Drain replays registered operations oldest-first
when the monitor's retry tick or a reconnect fires; the original caller has
long since received its error. This keeps the UI thread from ever blocking
on a retry loop.

Entries here do not survive a restart. Durable retry is the offline queue's
job (package queue); an operation lives in one path or the other, not both.
*/
package resilient
