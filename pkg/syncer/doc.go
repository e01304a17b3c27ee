/*
Package syncer drains the durable offline queue back into the record store.

Each queued operation type has a registered handler; a drain pass walks the
retryable entries in insertion order and dispatches each one. The outcome
decides the entry's fate:

  - success: removed
  - conflict (409-class, already applied): removed, counted as a conflict
  - retryable failure (network, 5xx): retry counter incremented, evicted
    once the budget is spent
  - any other terminal failure: removed and surfaced in the logs

Drain passes are single-flight. Triggers come from three places: the
monitor's retry tick, a reconnect, and a debounced kick right after an
operation is queued while online. A pass that leaves retryable failures
behind reschedules itself with capped exponential backoff plus jitter.

Listeners receive the aggregate stats after every pass; a panicking listener
is isolated so the rest are still notified.
*/
package syncer
