/*
Package exporter ingests raw capture files into a relational SQLite database.

The crawler's output is newline-delimited JSON, optionally gzipped, organised
by bucket. The exporter walks that tree, parses each line, and flattens it
into tweets, users, mentions and hashtags tables keyed by id, skipping rows
already present. Unparseable lines are counted and skipped; a failing file is
logged and the run continues with the next one.
*/
package exporter
