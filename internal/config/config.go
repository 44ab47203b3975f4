// Package config
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

type Config struct {
	Address   string
	Mode      string
	Interval  time.Duration
	MaxKbps   int64
	LogLevel  string
	LogFormat string

	Interfaces    []string
	CounterSource string
	ProcNetDev    string

	JWTSecret      string
	AllowedOrigins []string
}

const (
	ModeServe    = "serve"
	ModeStream   = "stream"
	ModeSnapshot = "snapshot"
)

const (
	SourceNetIO  = "netio"
	SourceProcFS = "procfs"
)

const (
	DefaultInterval = time.Second
	DefaultMaxKbps  = 1_000_000
)

// DefaultInterfaces is the primary Wi-Fi and primary cellular data interface.
var DefaultInterfaces = []string{"en0", "pdp_ip0"}

var (
	ErrInvalidInterval = errors.New("config: interval must be at least 1ms")
	ErrInvalidMaxKbps  = errors.New("config: max kbps must be positive")
	ErrInvalidMode     = errors.New("config: unknown mode")
	ErrInvalidSource   = errors.New("config: unknown counter source")
)

func Load() *Config {
	godotenv.Load()

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":3000"
	}

	mode := os.Getenv("MODE")
	if mode == "" {
		mode = ModeServe
	}

	interval := DefaultInterval
	if raw := os.Getenv("SAMPLE_INTERVAL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			interval = parsed
		}
	}

	maxKbps := int64(DefaultMaxKbps)
	if raw := os.Getenv("MAX_REASONABLE_KBPS"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			maxKbps = parsed
		}
	}

	interfaces := append([]string(nil), DefaultInterfaces...)
	if raw, ok := os.LookupEnv("INTERFACES"); ok {
		interfaces = splitList(raw)
	}

	source := os.Getenv("COUNTER_SOURCE")
	if source == "" {
		source = SourceNetIO
	}

	procNetDev := os.Getenv("PROC_NET_DEV")
	if procNetDev == "" {
		procNetDev = "/proc/net/dev"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "text"
	}

	return &Config{
		Address:   addr,
		Mode:      mode,
		Interval:  interval,
		MaxKbps:   maxKbps,
		LogLevel:  logLevel,
		LogFormat: logFormat,

		Interfaces:    interfaces,
		CounterSource: source,
		ProcNetDev:    procNetDev,

		JWTSecret:      os.Getenv("JWT_SECRET"),
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
	}
}

// BindFlags registers command-line overrides on fs, using the loaded values as defaults.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Address, "http-addr", c.Address, "HTTP listen address")
	fs.StringVar(&c.Mode, "mode", c.Mode, "run mode: serve, stream or snapshot")
	fs.DurationVar(&c.Interval, "interval", c.Interval, "sampling interval")
	fs.Int64Var(&c.MaxKbps, "max-kbps", c.MaxKbps, "upper bound for a reported rate, in kbps")
	fs.StringSliceVar(&c.Interfaces, "interfaces", c.Interfaces, "interface allow-list (trailing * matches a prefix, empty means all but loopback)")
	fs.StringVar(&c.CounterSource, "counter-source", c.CounterSource, "counter source: netio or procfs")
	fs.StringVar(&c.ProcNetDev, "proc-net-dev", c.ProcNetDev, "path of the procfs device table")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn or error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format: text or json")
	fs.StringSliceVar(&c.AllowedOrigins, "allowed-origins", c.AllowedOrigins, "websocket origins accepted in addition to same-origin requests")
}

func (c *Config) Validate() error {
	if c.Interval < time.Millisecond {
		return ErrInvalidInterval
	}

	if c.MaxKbps <= 0 {
		return ErrInvalidMaxKbps
	}

	switch c.Mode {
	case ModeServe, ModeStream, ModeSnapshot:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}

	switch c.CounterSource {
	case SourceNetIO, SourceProcFS:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSource, c.CounterSource)
	}

	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
