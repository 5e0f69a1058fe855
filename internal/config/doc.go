// Package config handles configuration loading for chatd.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	engine:
//	  api_key: "${OPENAI_API_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  session_ttl: "168h"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Database:
//
//	database:
//	  path: "/var/lib/chatd/chatd.db"
//
// Completion engine:
//
//	engine:
//	  api_key: "${OPENAI_API_KEY}"
//	  base_url: ""              # optional OpenAI-compatible endpoint
//	  default_model: "gpt-5"    # fallback when no config is active or live
//	  context_budget: 12000     # character budget for the context window
//
// Daily quota:
//
//	quota:
//	  daily_limit: 20
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${CHATD_JWT_SECRET}"
//	  session_ttl: "168h"
//
// Outbound mail (SES):
//
//	mail:
//	  enabled: false
//	  region: "us-east-1"
//	  from: "noreply@example.com"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("/etc/chatd/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
