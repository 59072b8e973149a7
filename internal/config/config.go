// Package config implements hatloop's layered configuration: defaults,
// then a global ~/.hatloop/config.yaml, then a project-local
// config.yaml, then environment variables — each layer overriding the
// last, matching the way Claude Code / Gemini CLI resolve config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is hatloop's full resolved configuration.
type Config struct {
	Loop        LoopConfig      `mapstructure:"loop"`
	Backend     BackendConfig   `mapstructure:"backend"`
	Hats        []HatConfig     `mapstructure:"hats"`
	Telegram    TelegramConfig  `mapstructure:"telegram"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Log         LogConfig       `mapstructure:"log"`
	Dashboard   DashboardConfig `mapstructure:"dashboard"`
	Diagnostics bool            `mapstructure:"diagnostics"`
}

// LoopConfig controls the Driver's lifecycle limits and paths.
type LoopConfig struct {
	AppDir              string        `mapstructure:"app_dir"`
	CompletionPromise   string        `mapstructure:"completion_promise"`
	MaxIterations       int           `mapstructure:"max_iterations"`
	MaxRuntime          time.Duration `mapstructure:"max_runtime"`
	MaxFailedIterations int           `mapstructure:"max_failed_iterations"`
	ComplexityThreshold float64       `mapstructure:"complexity_threshold"`
	AutoMerge           bool          `mapstructure:"auto_merge"`
	UseWorktree         bool          `mapstructure:"use_worktree"`
}

// BackendConfig is the default CLI backend every hat invokes unless it
// sets its own backend override.
type BackendConfig struct {
	Command      string        `mapstructure:"command"`
	Args         []string      `mapstructure:"args"`
	PromptMode   string        `mapstructure:"prompt_mode"`
	PromptFlag   string        `mapstructure:"prompt_flag"`
	OutputFormat string        `mapstructure:"output_format"`
	UsePTY       bool          `mapstructure:"use_pty"`
	Cols         int           `mapstructure:"cols"`
	Rows         int           `mapstructure:"rows"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	GraceTimeout time.Duration `mapstructure:"grace_timeout"`
}

// HatConfig is one configured hat's YAML shape.
type HatConfig struct {
	ID              string   `mapstructure:"id"`
	Name            string   `mapstructure:"name"`
	Triggers        []string `mapstructure:"triggers"`
	Publishes       []string `mapstructure:"publishes"`
	Instructions    string   `mapstructure:"instructions"`
	BackendOverride string   `mapstructure:"backend_override"`
}

// TelegramConfig configures the optional loop-completion notifier.
type TelegramConfig struct {
	BotToken string  `mapstructure:"bot_token"`
	ChatID   int64   `mapstructure:"chat_id"`
	AllowIDs []int64 `mapstructure:"allow_ids"`
}

// DatabaseConfig configures the sqlite-backed registry index.
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // sqlite
	DSN  string `mapstructure:"dsn"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, console
}

// DashboardConfig configures the read-only HTTP/WS dashboard surface.
type DashboardConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
	WSAddr   string `mapstructure:"ws_addr"`
}

// Load resolves a Config from, in ascending priority:
// built-in defaults -> ~/.hatloop/config.yaml -> ./config.yaml (or
// ./config/config.yaml) -> HATLOOP_-prefixed environment variables.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load, except that when explicitPath is non-empty it is
// merged in place of the project-local ./config.yaml lookup — this is
// what `run --config PATH` points at. An empty explicitPath preserves
// Load's usual discovery.
func LoadFrom(explicitPath string) (*Config, error) {
	return LoadFromWithOverrides(explicitPath, nil)
}

// LoadFromWithOverrides is LoadFrom, additionally applying a set of
// ad-hoc "KEY=VALUE" overrides on top of everything else — this is
// what `run --override KEY=VALUE` points at. KEY uses the same
// dotted mapstructure path as the YAML config (e.g. loop.max_iterations).
// Overrides win over config files and environment variables, but a
// malformed entry (missing "=") is a hard error rather than ignored.
func LoadFromWithOverrides(explicitPath string, overrides []string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	globalDir := filepath.Join(os.Getenv("HOME"), ".hatloop")
	v.AddConfigPath(globalDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read global config: %w", err)
		}
	}

	if explicitPath != "" {
		local := viper.New()
		local.SetConfigFile(explicitPath)
		if err := local.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config at %s: %w", explicitPath, err)
		}
		if err := v.MergeConfigMap(local.AllSettings()); err != nil {
			return nil, fmt.Errorf("merge explicit config: %w", err)
		}
	} else {
		for _, localDir := range []string{"./config", "."} {
			localPath := filepath.Join(localDir, "config.yaml")
			if _, err := os.Stat(localPath); err != nil {
				continue
			}
			local := viper.New()
			local.SetConfigFile(localPath)
			if err := local.ReadInConfig(); err == nil {
				if err := v.MergeConfigMap(local.AllSettings()); err != nil {
					return nil, fmt.Errorf("merge local config: %w", err)
				}
			}
			break
		}
	}

	v.SetEnvPrefix("HATLOOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, o := range overrides {
		key, value, ok := strings.Cut(o, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --override %q: expected KEY=VALUE", o)
		}
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("loop.app_dir", ".hatloop")
	v.SetDefault("loop.completion_promise", "LOOP_COMPLETE")
	v.SetDefault("loop.max_iterations", 100)
	v.SetDefault("loop.max_runtime", "2h")
	v.SetDefault("loop.max_failed_iterations", 5)
	v.SetDefault("loop.complexity_threshold", 15.0)
	v.SetDefault("loop.auto_merge", true)
	v.SetDefault("loop.use_worktree", false)

	v.SetDefault("backend.command", "claude")
	v.SetDefault("backend.prompt_mode", "arg")
	v.SetDefault("backend.output_format", "text")
	v.SetDefault("backend.use_pty", true)
	v.SetDefault("backend.cols", 120)
	v.SetDefault("backend.rows", 40)
	v.SetDefault("backend.idle_timeout", "5m")
	v.SetDefault("backend.grace_timeout", "10s")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", ".hatloop/index.db")

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("dashboard.http_addr", ":8787")
	v.SetDefault("dashboard.ws_addr", ":8788")

	v.SetDefault("diagnostics", true)
}
