/*
Package config loads and refreshes Twicorder's runtime configuration.

Configuration lives in two YAML documents: the runtime config (output paths,
save affixes, cache TTLs, Mongo and metrics toggles) and the credentials file
(application and user secrets). The Provider caches the runtime config in
memory and transparently re-reads it from disk once config_reload_interval
seconds have passed, so long crawls pick up edits without a restart. Snapshots
returned by Get are treated as immutable by callers.

Credential errors and unreadable YAML are fatal at startup; a failed reload
mid-run keeps the previous snapshot and is otherwise silent.
*/
package config
