/*
Package appdata implements the durable app-data store backing crawl resumption.

The store is a single BoltDB file under the project's appdata directory with
two kinds of tables:

  - queries_last_id: query uid → most recent item id, written only after the
    entire paged walk for that uid completed successfully
  - query_tweets/<kind>: tweet id → unix seconds, appended on every page that
    produced fresh items; this is the per-query dedup history

Every operation runs inside one Bolt transaction, so writes are atomic at
operation granularity and readers never observe partial batches. BoltDB
serialises writers internally, which makes the store safe to call from any
exchange worker without additional locking.
*/
package appdata
