/*
Package log provides structured logging for Twicorder using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level for long unattended crawl sessions.

# Usage

Initialize once at startup:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: false,
	})

Create component loggers for subsystems:

	logger := log.WithComponent("exchange")
	logger.Info().Str("endpoint", "/search/tweets").Msg("worker started")

Workers attach the endpoint and query UID so a single crawl can be traced
across the scheduler, exchange, and persistence layers:

	qlog := log.WithQueryUID(query.UID())
	qlog.Debug().Int("results", n).Msg("page fetched")

# Output Formats

Console output (default) is intended for interactive runs. JSON output is for
crawls running under a supervisor, where lines are shipped to a log collector.
*/
package log
