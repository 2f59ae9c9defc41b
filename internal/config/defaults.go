package config

// DefaultConfigYAML contains the default configuration YAML content
// written by `relay init`.
const DefaultConfigYAML = `# relay configuration
#
# Values not specified here use sensible defaults.

log:
  level: info
  format: auto

# Directory holding subagent scripts. A subagent "coder" resolves to
# coder.py or coder.sh here, falling back to agent.py / agent.sh.
scripts:
  dir: .relay/scripts

backend:
  default: script
  # model: claude-sonnet-4-20250514
  timeout: 12h
  raw_passthrough: false
  preflight: false

history:
  path: .relay/history.db
`
