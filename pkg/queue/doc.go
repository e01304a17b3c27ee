/*
Package queue persists offline operations across restarts.

A queued operation is a type tag plus an opaque JSON payload and a retry
counter. The whole list lives as one JSON array under a single well-known key
in a BoltDB-backed key-value store, matching the flat storage surface of the
hosting environment.

Two failure rules keep the queue from ever taking the process down with it:
reads of corrupt or missing storage return an empty list, and failed writes
are logged and dropped. Losing the queue file loses pending check-ins, which
is bad; crashing the front desk at the door is worse.
*/
package queue
