// Package config loads substrate's layered configuration: built-in
// defaults, overridden by a TOML file, overridden by environment
// variables. It mirrors the defaults-then-file-then-env layering and the
// viper/TOML stack used for BeadsLog's own internal/config package.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// StoreConfig parameterizes a store.New call.
type StoreConfig struct {
	KeyBytes int           `mapstructure:"key-bytes" toml:"key-bytes"`
	Bits     int           `mapstructure:"bits" toml:"bits"`
	Lifespan time.Duration `mapstructure:"lifespan" toml:"lifespan"`
}

// EngineConfig parameterizes an eventengine.Initialize call.
type EngineConfig struct {
	Workers           int           `mapstructure:"workers" toml:"workers"`
	MaintenancePeriod time.Duration `mapstructure:"maintenance-period" toml:"maintenance-period"`
}

// Config is the full layered configuration substrate's CLI and demo
// commands read from.
type Config struct {
	Store    StoreConfig  `mapstructure:"store" toml:"store"`
	Engine   EngineConfig `mapstructure:"engine" toml:"engine"`
	LogLevel string       `mapstructure:"log-level" toml:"log-level"`
	Trace    TraceConfig  `mapstructure:"trace" toml:"trace"`
}

// TraceConfig parameterizes a traceroute.Run call.
type TraceConfig struct {
	MaxHops int           `mapstructure:"max-hops" toml:"max-hops"`
	Timeout time.Duration `mapstructure:"timeout" toml:"timeout"`
}

// Loader owns a viper instance and the config file path it was read from,
// if any. The zero value is not usable; call New.
type Loader struct {
	v        *viper.Viper
	filePath string
}

// New returns a Loader seeded with substrate's defaults. path may be empty,
// in which case only defaults and environment variables apply.
func New(path string) (*Loader, error) {
	v := viper.New()
	v.SetConfigType("toml")

	v.SetDefault("store.key-bytes", 4)
	v.SetDefault("store.bits", 4)
	v.SetDefault("store.lifespan", "5m")
	v.SetDefault("engine.workers", 4)
	v.SetDefault("engine.maintenance-period", "30s")
	v.SetDefault("log-level", "info")
	v.SetDefault("trace.max-hops", 30)
	v.SetDefault("trace.timeout", "1s")

	v.SetEnvPrefix("SUBSTRATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	l := &Loader{v: v, filePath: path}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}
	return l, nil
}

// Load decodes the current layered configuration into a Config.
func (l *Loader) Load() (Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// Watch invokes onChange every time the underlying config file is
// rewritten, passing the freshly reloaded Config. It is a no-op if Loader
// was constructed without a file path. A reload never reaches back into a
// live Store or Engine: callers only use the new Config for instances
// created after the change fires.
func (l *Loader) Watch(onChange func(Config)) {
	if l.filePath == "" {
		return
	}
	l.v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := l.Load()
		if err != nil {
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
}

// WriteDefault writes cfg to path in TOML form, for a first-run
// `config init` that seeds a file a user can then edit and Watch.
func WriteDefault(path string, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("config: encode %s: %w", path, err)
	}
	return nil
}
