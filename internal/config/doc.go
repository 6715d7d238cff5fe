// Package config loads and validates mcp-gateway configuration.
//
// Configuration comes from two sources, merged in a fixed order:
//
//  1. An optional YAML file with ${VAR} environment expansion
//  2. Environment variables (HOST, PORT, HTTP_API_KEY, DISABLE_AUTH,
//     MCP_SERVERS_DIR, MCP_CONFIG_FILE, MCP_SERVER_NAME,
//     RESPONSE_TIMEOUT_SECS, PROCESS_INIT_WAIT_SECS,
//     SUPPORTED_LANGUAGES, SUPPORTED_SERVER_TYPES, MCP_DB_PATH)
//
// Environment variables override file values; built-in defaults fill the
// rest. The resulting Config is immutable after startup and passed
// explicitly to every component that needs it — there are no ambient
// lookups inside core logic.
package config
