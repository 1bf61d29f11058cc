// Package config loads circle-core configuration from YAML.
//
// Configuration files support ${VAR_NAME} environment variable expansion
// and human-readable duration strings ("60s", "5m") for all timing fields:
//
//	registry:
//	  stale_timeout: 60s
//	  sweep_interval: 30s
//	  freshness_window: 30s
//	workflow:
//	  event_buffer_cap: 100
//	  dedupe_ttl: 5m
//	logging:
//	  level: info
//	  format: text
//
// Every field is optional; components apply their own defaults for zero
// values, so an empty file (or no file at all, via Default) is valid.
package config
