package xplpro

import (
	"errors"
	"fmt"
	"time"

	"github.com/GioCC/XPLPro-Official/logger"
)

// Default protocol parameters. They match the values the XPLPro host plugin
// was built against; change them only if the host side changed too.
const (
	// DefaultFloatPrecision is the number of decimal digits used when encoding
	// floating point fields. More digits increase wire traffic.
	DefaultFloatPrecision = 4

	// DefaultMaxFrameSize is the maximum frame length in bytes. It must cover
	// the longest registered name plus ~10 bytes of framing overhead, and the
	// longest string dataref payload.
	DefaultMaxFrameSize = 200

	// DefaultReceiveTimeout bounds the reception of one frame. A frame that
	// stalls longer is discarded and the parser resynchronizes.
	DefaultReceiveTimeout = 500 * time.Millisecond

	// DefaultResponseTimeout bounds the wait for the host's ready signal and
	// for registration responses. It is deliberately long: the simulator may
	// report a loaded scenario and then keep busy for a while before serving
	// registrations.
	DefaultResponseTimeout = 90 * time.Second

	// DefaultOutboundQueueSize is the initial capacity of the queue holding
	// frames delayed by the flow gate.
	DefaultOutboundQueueSize = 16
)

// Configuration range limits.
const (
	MinFloatPrecision = 0
	MaxFloatPrecision = 10

	MinFrameSize = 16
	MaxFrameSize = 256
)

// Config holds all configuration for a protocol engine.
type Config struct {
	floatPrecision  int
	maxFrameSize    int
	receiveTimeout  time.Duration
	responseTimeout time.Duration
	version         string

	logger logger.Logger
}

// NewConfig creates an engine configuration with protocol defaults, then
// applies opts in order; see With* functions.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		floatPrecision:  DefaultFloatPrecision,
		maxFrameSize:    DefaultMaxFrameSize,
		receiveTimeout:  DefaultReceiveTimeout,
		responseTimeout: DefaultResponseTimeout,
		version:         Version,
		logger:          logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// FloatPrecision returns the configured floating point field precision.
func (cfg *Config) FloatPrecision() int { return cfg.floatPrecision }

// MaxFrameSize returns the configured maximum frame length.
func (cfg *Config) MaxFrameSize() int { return cfg.maxFrameSize }

// ReceiveTimeout returns the per-frame receive timeout.
func (cfg *Config) ReceiveTimeout() time.Duration { return cfg.receiveTimeout }

// ResponseTimeout returns the handshake/registration response timeout.
func (cfg *Config) ResponseTimeout() time.Duration { return cfg.responseTimeout }

// VersionString returns the build identifier sent with the name reply.
func (cfg *Config) VersionString() string { return cfg.version }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring an engine.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithFloatPrecision sets the decimal precision of encoded float fields.
func WithFloatPrecision(digits int) Option {
	return optFunc(func(cfg *Config) error {
		if digits < MinFloatPrecision || digits > MaxFloatPrecision {
			return fmt.Errorf("xplpro: float precision %d out of range [%d, %d]",
				digits, MinFloatPrecision, MaxFloatPrecision)
		}
		cfg.floatPrecision = digits

		return nil
	})
}

// WithMaxFrameSize sets the maximum frame length in bytes.
func WithMaxFrameSize(size int) Option {
	return optFunc(func(cfg *Config) error {
		if size < MinFrameSize || size > MaxFrameSize {
			return fmt.Errorf("xplpro: max frame size %d out of range [%d, %d]",
				size, MinFrameSize, MaxFrameSize)
		}
		cfg.maxFrameSize = size

		return nil
	})
}

// WithReceiveTimeout sets the per-frame receive timeout.
func WithReceiveTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("xplpro: receive timeout must be positive")
		}
		cfg.receiveTimeout = d

		return nil
	})
}

// WithResponseTimeout sets the handshake/registration response timeout.
func WithResponseTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("xplpro: response timeout must be positive")
		}
		cfg.responseTimeout = d

		return nil
	})
}

// WithVersionString overrides the build identifier sent with the name reply.
func WithVersionString(v string) Option {
	return optFunc(func(cfg *Config) error {
		if v == "" {
			return errors.New("xplpro: version string must not be empty")
		}
		cfg.version = v

		return nil
	})
}

// WithLogger sets the logger for the engine.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("xplpro: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
