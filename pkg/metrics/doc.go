/*
Package metrics defines Usher's Prometheus metrics.

All metrics are registered at init and served by the record-store server's
/metrics endpoint. The monitor records probe latency and status transitions,
the syncer records drain passes and replay outcomes, and the queue exports
its current depth so a dashboard can see pending work at a glance.
*/
package metrics
