/*
Package faults classifies failures into a closed set of error kinds.

Every component that can fail routes its errors through this package so the
rest of the system can ask three questions uniformly: what category is it,
how severe is it, and is retrying worth anything. The Kind → traits mapping
is static and exhaustive; an unlisted kind falls back to unknown/medium/not
retryable, and a test pins every listed kind to a real entry.

Classified errors also carry the user-facing title, message, and suggested
actions, so callers never surface a raw transport error or store code.
*/
package faults
