/*
Package store defines the remote record-store contract and its HTTP client.

The core only ever needs four operations: resolve a booking by exact code,
search by code prefix, fetch by id, and overwrite the attendance fields.
Every error leaving this package is classified (package faults), so callers
switch on error kind, never on transport details.
*/
package store
