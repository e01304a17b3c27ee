/*
Package api implements the reference record-store server.

It exposes the four booking operations the sync engine consumes (lookup by
code, prefix search, fetch by id, attendance update) over a chi router backed
by SQLite, plus the endpoints the engine's monitor and operators rely on:

  - HEAD|GET /health: zero-body liveness, no database dependency, used
    purely for latency probes
  - GET /ready: the heavier variant that also reports booking-store health
  - GET /metrics: Prometheus metrics

The attendance update is last-write-wins. A request identical to the state
already recorded answers 409, which lets a replaying client distinguish
"already applied" from a fresh overwrite.
*/
package api
