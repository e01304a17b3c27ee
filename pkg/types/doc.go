/*
Package types defines the shared data model for Usher.

It holds the network state enums, the booking record mirrored from the remote
store, the durable queue entry format, and the aggregate structures reported
to the UI boundary (CheckInResult, SyncStats). Keeping these in a leaf package
lets every component exchange them without import cycles.
*/
package types
