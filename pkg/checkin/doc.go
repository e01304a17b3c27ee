/*
Package checkin holds the attendance domain logic.

A booking moves NOT_ARRIVED → ARRIVED through CheckIn, which validates the
input, reads the current record for duplicate detection, and overwrites the
attendance fields last-write-wins. The invariants that matter live here: a
guest count is never lost (a write that cannot reach the store is persisted
to the offline queue and reported as pending), and a repeat check-in is
surfaced with the previous values rather than silently absorbed.
*/
package checkin
