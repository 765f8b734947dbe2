/*
Package scheduler drives the crawl: it polls the task list and casts each due
task into a concrete query.

The loop ticks once a second. A task is due on its first sighting and again
whenever its frequency has elapsed; the task manager tracks the dispatch
stamps. Casting goes through the query registry, so the scheduler knows query
kinds only as string tags. Submissions land in the exchange, which handles
ordering, dedup and rate-limit pacing; the scheduler itself never talks to
the wire.

Stop is cooperative: the loop halts, then the exchange drains whatever is
already queued before Stop returns.
*/
package scheduler
