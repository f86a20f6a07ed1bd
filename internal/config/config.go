package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"
)

// Source is the diagnostic source tag guardls claims. Diagnostics relayed to
// the editor carry it, and the code action handler ignores diagnostics from
// any other tool.
const Source = "guardls"

// EngineConfig describes how to launch the analysis engine process.
type EngineConfig struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
	Env     []string `toml:"env"`
}

type Config struct {
	Engine EngineConfig `toml:"engine"`

	// MaxFixesPerDiagnostic bounds the fix cache per diagnostic. Zero keeps
	// every fix the engine ever reports for the session.
	MaxFixesPerDiagnostic int `toml:"max_fixes_per_diagnostic"`

	WorkspaceRoot string `toml:"-"`
}

func NewConfig() *Config {
	return &Config{
		Engine: EngineConfig{Command: "guard-engine"},
	}
}

// Load reads an optional TOML config file. An empty path returns defaults.
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	if path == "" {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	logger := commonlog.GetLoggerf("guardls.config")
	logger.Infof("loaded config from %s (engine: %s)", path, cfg.Engine.Command)
	return cfg, nil
}

// ApplyInitializationOptions merges the editor's initializationOptions into
// the config. Unknown or mistyped entries are ignored.
func (c *Config) ApplyInitializationOptions(options any) {
	m, ok := options.(map[string]any)
	if !ok {
		return
	}

	if v, ok := m["engine_command"]; ok {
		if str, ok := v.(string); ok && str != "" {
			c.Engine.Command = str
		}
	}
	if v, ok := m["engine_args"]; ok {
		if arr, ok := v.([]any); ok {
			var args []string
			for _, a := range arr {
				if str, ok := a.(string); ok && str != "" {
					args = append(args, str)
				}
			}
			if len(args) > 0 {
				c.Engine.Args = args
			}
		}
	}
	if v, ok := m["max_fixes_per_diagnostic"]; ok {
		if n, ok := v.(float64); ok && n >= 0 {
			c.MaxFixesPerDiagnostic = int(n)
		}
	}
}
