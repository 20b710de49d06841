// Package config loads the subtrack server configuration from the `server:`
// section of config.yaml.
//
// Config fields:
//   - HTTPPort            port for the HTTP API (default 50022)
//   - Host                bind address (default 0.0.0.0)
//   - LogLevel            debug | info | warn | error (hot-reloadable)
//   - Clock.Location      zone for durable timestamps (default Local)
//   - Reaper.Interval     sweep cadence (default 5s, hot-reloadable)
//   - Stream.Interval     WebSocket countdown cadence (default 1s)
//   - Storage.Backend     file | memory | valkey | postgres (default file)
//   - Storage.Timeout     bound on every snapshot load/save (default 5s)
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, onChange) re-runs Load on every write to path.
package config
