package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const fileSchemaURL = "https://todo-app.local/schemas/config.json"

// fileSchema describes the sections and keys a config file may contain.
// Durations are strings in time.ParseDuration form ("30s", "5m").
const fileSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "$defs": {
    "duration": {"type": "string", "pattern": "^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"},
    "port": {"type": "string", "pattern": "^[0-9]{1,5}$"}
  },
  "properties": {
    "server": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "host": {"type": "string"},
        "port": {"$ref": "#/$defs/port"},
        "read_timeout": {"$ref": "#/$defs/duration"},
        "write_timeout": {"$ref": "#/$defs/duration"},
        "idle_timeout": {"$ref": "#/$defs/duration"},
        "shutdown_timeout": {"$ref": "#/$defs/duration"},
        "environment": {"type": "string"}
      }
    },
    "database": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "driver": {"enum": ["postgres", "sqlite", "sqlite-purego"]},
        "host": {"type": "string"},
        "port": {"$ref": "#/$defs/port"},
        "user": {"type": "string"},
        "password": {"type": "string"},
        "name": {"type": "string"},
        "ssl_mode": {"type": "string"},
        "sqlite_path": {"type": "string"},
        "max_open_conns": {"type": "integer", "minimum": 0},
        "max_idle_conns": {"type": "integer", "minimum": 0},
        "conn_max_lifetime": {"$ref": "#/$defs/duration"},
        "conn_max_idle_time": {"$ref": "#/$defs/duration"},
        "auto_migrate": {"type": "boolean"}
      }
    },
    "redis": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "host": {"type": "string"},
        "port": {"$ref": "#/$defs/port"},
        "password": {"type": "string"},
        "db": {"type": "integer", "minimum": 0},
        "pool_size": {"type": "integer", "minimum": 1},
        "min_idle_conns": {"type": "integer", "minimum": 0},
        "max_retries": {"type": "integer", "minimum": -1},
        "dial_timeout": {"$ref": "#/$defs/duration"},
        "read_timeout": {"$ref": "#/$defs/duration"},
        "write_timeout": {"$ref": "#/$defs/duration"}
      }
    },
    "cache": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "list_ttl": {"$ref": "#/$defs/duration"},
        "breaker_max_failures": {"type": "integer", "minimum": 1},
        "breaker_timeout": {"$ref": "#/$defs/duration"},
        "breaker_half_open_max_calls": {"type": "integer", "minimum": 1}
      }
    },
    "auth": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "jwt_secret": {"type": "string"},
        "issuer": {"type": "string"},
        "cookie_name": {"type": "string", "minLength": 1},
        "login_url": {"type": "string", "minLength": 1}
      }
    },
    "rate_limit": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "requests_per_minute": {"type": "integer", "minimum": 1},
        "burst_size": {"type": "integer", "minimum": 1},
        "cleanup_interval": {"$ref": "#/$defs/duration"}
      }
    },
    "cors": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "allowed_origins": {"type": "array", "items": {"type": "string"}}
      }
    },
    "log": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "level": {"enum": ["debug", "info", "warn", "warning", "error", "fatal"]},
        "format": {"enum": ["text", "json", "logfmt"]}
      }
    }
  }
}`

var compiledFileSchema = mustCompileFileSchema()

func mustCompileFileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(fileSchemaURL, strings.NewReader(fileSchema)); err != nil {
		panic(fmt.Sprintf("config schema: %v", err))
	}
	return compiler.MustCompile(fileSchemaURL)
}

// validateFile checks raw TOML against fileSchema before it is decoded into
// Config, so typos in key names are reported instead of silently ignored.
func validateFile(data string) error {
	var raw map[string]interface{}
	if _, err := toml.Decode(data, &raw); err != nil {
		return err
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	if err := compiledFileSchema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("invalid config: %s", firstCause(ve))
		}
		return err
	}
	return nil
}

func firstCause(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	location := ve.InstanceLocation
	if location == "" {
		location = "/"
	}
	return location + ": " + ve.Message
}
