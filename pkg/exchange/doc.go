/*
Package exchange coordinates query execution across per-endpoint FIFO queues.

Each distinct endpoint gets one queue and one dedicated worker. An endpoint
identifies a rate-limit bucket, so funnelling all requests for it through a
single worker guarantees at most one in-flight request per quota window; the
per-page quota check inside the query is then sufficient to never violate the
server's advertised limits.

Queries are identified by their UID. Add drops a query silently when an
equivalent one is already pending in the queue or executing on the worker, so
an over-eager scheduler tick cannot double-crawl. Wait enqueues shutdown by
closing every queue and joins the workers after they drain.
*/
package exchange
