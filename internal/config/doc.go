// Package config handles configuration loading for engagemate.
//
// # Overview
//
// Configuration is loaded once at startup from a YAML or TOML file, with
// environment variable expansion and a small set of environment overrides.
// Fields missing from the file keep the values from Default.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from ENGAGEMATE_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/engagemate/config.yaml
//  3. ~/.config/engagemate/config.yaml
//
// A missing file is not an error for LoadOrDefault.
//
// # Environment Variable Expansion
//
//	host:
//	  ipc_secret: "${ENGAGEMATE_IPC_SECRET}"
//
// # Environment Overrides
//
//	ENGAGEMATE_DATA_DIR      app.data_dir
//	ENGAGEMATE_DB_PATH       database.path
//	ENGAGEMATE_MIGRATE_TOOL  migrations.tool
//	ENGAGEMATE_IPC_ADDR      host.ipc_addr
//	ENGAGEMATE_IPC_SECRET    host.ipc_secret
//
// # Configuration Sections
//
//	app:
//	  data_dir: "~/.local/share/engagemate"
//	host:
//	  ipc_addr: "127.0.0.1:1420"
//	  grpc_addr: ""            # gRPC health endpoint, disabled when empty
//	database:
//	  path: "engagemate.db"    # relative to app.data_dir
//	  driver: "sqlite"         # sqlite (pure Go) or sqlite3 (cgo)
//	  preload: true
//	migrations:
//	  tool: "npx"
//	  dir: ""                  # working directory of the migration tool
//	  overlap: "reject"        # reject or allow
//	  timeout: ""              # no timeout when empty
//	updater:
//	  enabled: false
//	  endpoints: ["https://releases.example.com/{{target}}/{{current_version}}"]
//	  pubkey: "<base64 minisign public key>"
//	  initial_delay: "5s"
//	  interval: "24h"
//	logging:
//	  format: "text"           # text, json
//	metrics:
//	  enabled: false
//	  path: "/metrics"
package config
