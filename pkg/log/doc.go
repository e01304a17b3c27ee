/*
Package log provides structured logging for Usher built on zerolog.

Init configures the global logger once at process start; components take child
loggers via WithComponent so every line carries its origin. Console output is
the default for CLI use, JSON for the agent and the record-store server.
*/
package log
