// Package config reads the server configuration from the command line.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/go-playground/validator/v10"
)

const (
	// DefaultPort is used when no port argument is given.
	DefaultPort = 8005
	// Host is the only interface the server binds to.
	Host = "localhost"

	defaultRoot    = "."
	defaultWorkers = 1
)

var (
	// ErrInvalidPort is returned when the port argument is not a base-10 integer.
	ErrInvalidPort = errors.New("port must be a base-10 integer")
	// ErrPortOutOfRange is returned when the port does not fit in 0-65535.
	ErrPortOutOfRange = errors.New("port must be between 0 and 65535")
)

// ServerConfig is built once at start-up and never changes.
type ServerConfig struct {
	Port        int    `validate:"gte=0,lte=65535"`
	Host        string `validate:"required"`
	Root        string `validate:"required,dir"`
	Workers     int    `validate:"gte=1"`
	MetricsPort int    `validate:"gte=0,lte=65535"`
	Verbose     bool

	// Ignored holds the arguments after the port. They are not used.
	Ignored []string
}

// Addr returns host:port of the file server.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// MetricsAddr returns host:port of the metrics listener.
func (c *ServerConfig) MetricsAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.MetricsPort))
}

// MetricsEnabled reports whether a metrics port was requested.
func (c *ServerConfig) MetricsEnabled() bool {
	return c.MetricsPort != 0
}

// ParseArgs parses the arguments that follow the program name.
// Flags come first, then an optional port.
func ParseArgs(args []string, output io.Writer) (*ServerConfig, error) {
	cfg := &ServerConfig{
		Port: DefaultPort,
		Host: Host,
	}

	fs := flag.NewFlagSet("isoserve", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cfg.Root, "dir", defaultRoot, "directory to serve")
	fs.IntVar(&cfg.Workers, "workers", defaultWorkers, "requests handled at the same time")
	fs.IntVar(&cfg.MetricsPort, "metrics-port", 0, "serve prometheus metrics on this localhost port, 0 disables")
	fs.BoolVar(&cfg.Verbose, "v", false, "debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: isoserve [flags] [port]\n\nport defaults to %d\n\n", DefaultPort)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fs.NArg() > 0 {
		port, err := ParsePort(fs.Arg(0))
		if err != nil {
			return nil, err
		}
		cfg.Port = port
		cfg.Ignored = fs.Args()[1:]
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParsePort converts a positional port argument.
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, fmt.Errorf("%q: %w", s, ErrPortOutOfRange)
		}
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidPort)
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("%d: %w", port, ErrPortOutOfRange)
	}
	return port, nil
}

var validate = validator.New()

// Validate checks the struct tags of the config.
func (c *ServerConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}
	e := errs[0]
	switch e.Field() {
	case "Port", "MetricsPort":
		return fmt.Errorf("%s %v: %w", e.Field(), e.Value(), ErrPortOutOfRange)
	default:
		return fmt.Errorf("invalid %s %q: failed on %q", e.Field(), fmt.Sprint(e.Value()), e.Tag())
	}
}
