// Package config loads and watches the bridge configuration file (config.yaml).
//
// Top-level types:
//   - Config{HTTP, ClickHouse, Prometheus}: full config tree parsed from YAML
//   - HTTPConfig: host (IP literal), port, scrape_timeout, telemetry_path
//   - ClickHouseConfig: host, port, user, database, password_env,
//     dial_timeout, queries [], tls; Password() resolves from the environment
//     and EffectiveQueries() substitutes DefaultQuery for an empty list
//   - PrometheusConfig: prefix applied to every exposed metric line
//
// Load(path) reads the YAML file, applies defaults (127.0.0.1:8080, 30s scrape
// timeout, localhost:8123 default/default, prefix "default"), then validates.
// Any error from Load is a startup failure.
//
// Watch(ctx, path, onChange) uses fsnotify to detect edits and hands the newly
// parsed Config to onChange. The bridge does not apply it; see cmd/bridge.
package config
