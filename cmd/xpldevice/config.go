package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/GioCC/XPLPro-Official/logger"
	"github.com/GioCC/XPLPro-Official/xplpro"
)

// datarefSub is one [[datarefs]] block: a dataref to register and subscribe
// to when the host connects. A nil Element subscribes to the whole dataref;
// a set Element subscribes to that array index only.
type datarefSub struct {
	Name      string  `toml:"name"`
	RateMs    int     `toml:"rate_ms"`
	Precision float64 `toml:"precision"`
	Element   *int    `toml:"element"`
}

// commandSub is one [[commands]] block: a simulator command to register.
type commandSub struct {
	Name string `toml:"name"`
}

// fileConfig is the xpldevice.toml key mapping.
type fileConfig struct {
	Port           string `toml:"port"`
	Baud           int    `toml:"baud"`
	DeviceName     string `toml:"device_name"`
	LogLevel       string `toml:"log_level"`
	FlowRate       uint   `toml:"flow_rate"`
	FloatPrecision int    `toml:"float_precision"`
	MaxFrameSize   int    `toml:"max_frame_size"`

	Datarefs []datarefSub `toml:"datarefs"`
	Commands []commandSub `toml:"commands"`
}

func defaultConfig() fileConfig {
	return fileConfig{
		Baud:           xplpro.DefaultBaudRate,
		LogLevel:       "info",
		FloatPrecision: xplpro.DefaultFloatPrecision,
		MaxFrameSize:   xplpro.DefaultMaxFrameSize,
	}
}

// loadConfig reads the TOML config at path over the defaults and validates
// it. Unknown keys are an error; silent typos in a panel config are painful
// to chase at the far end of a serial cable.
func loadConfig(path string) (fileConfig, error) {
	cfg := defaultConfig()

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return fileConfig{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fileConfig{}, fmt.Errorf("load config: unknown keys %v", undecoded)
	}

	cfg.Port = strings.TrimSpace(cfg.Port)
	cfg.DeviceName = strings.TrimSpace(cfg.DeviceName)

	if cfg.Port == "" {
		return fileConfig{}, errors.New("load config: port is required")
	}
	if cfg.DeviceName == "" {
		return fileConfig{}, errors.New("load config: device_name is required")
	}
	if cfg.Baud <= 0 {
		return fileConfig{}, fmt.Errorf("load config: baud must be positive, got %d", cfg.Baud)
	}
	if _, err := parseLogLevel(cfg.LogLevel); err != nil {
		return fileConfig{}, fmt.Errorf("load config: %w", err)
	}

	for i := range cfg.Datarefs {
		d := &cfg.Datarefs[i]
		d.Name = strings.TrimSpace(d.Name)
		if d.Name == "" {
			return fileConfig{}, fmt.Errorf("load config: datarefs[%d]: name is required", i)
		}
		if d.RateMs < 0 {
			return fileConfig{}, fmt.Errorf("load config: datarefs[%d] %s: rate_ms must not be negative", i, d.Name)
		}
		if d.Precision < 0 {
			return fileConfig{}, fmt.Errorf("load config: datarefs[%d] %s: precision must not be negative", i, d.Name)
		}
		if d.Element != nil && *d.Element < 0 {
			return fileConfig{}, fmt.Errorf("load config: datarefs[%d] %s: element must not be negative", i, d.Name)
		}
	}

	for i := range cfg.Commands {
		c := &cfg.Commands[i]
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return fileConfig{}, fmt.Errorf("load config: commands[%d]: name is required", i)
		}
	}

	return cfg, nil
}

func parseLogLevel(s string) (logger.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return logger.DebugLevel, nil
	case "", "info":
		return logger.InfoLevel, nil
	case "warn":
		return logger.WarnLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	default:
		return logger.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}
