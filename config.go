package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the HTTP server listens on (e.g. "0.0.0.0:8080")
	BindAddress string
	// SerialPort is the path to the ESP8266's serial port (e.g. "/dev/ttyUSB0")
	SerialPort string
	// BaudRate is the baud rate for serial communication with the module (e.g. 115200)
	BaudRate int
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string
	// SSID and Password are the credentials of the network to join
	SSID     string
	Password string
	// ServerPort starts the module's TCP server when non-zero
	ServerPort int
	// Budget is the number of poll iterations allowed per reply
	Budget int
	// SettleDelay is the pause after opening a connection or announcing a send
	SettleDelay time.Duration
	// Echo mirrors every byte received from the module to the debug log
	Echo bool
}

// fileConfig is the on-disk TOML layout.
type fileConfig struct {
	BindAddress string `toml:"bind_address"`
	SerialPort  string `toml:"serial_port"`
	BaudRate    int    `toml:"baud_rate"`
	LogLevel    string `toml:"log_level"`
	SSID        string `toml:"ssid"`
	Password    string `toml:"password"`
	ServerPort  int    `toml:"server_port"`
	Budget      int    `toml:"budget"`
	SettleDelay string `toml:"settle_delay"`
	Echo        bool   `toml:"echo"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 115200
		c.LogLevel = "info"
		c.Budget = 3000
		c.SettleDelay = 200 * time.Millisecond
		return nil
	}
}

// WithFile loads configuration from a TOML file. Keys missing from the
// file leave the current values alone. An empty path is a no-op.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}

		var raw fileConfig
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return fmt.Errorf("load config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return fmt.Errorf("load config %s: unknown keys %s", path, strings.Join(keys, ", "))
		}

		if meta.IsDefined("bind_address") {
			c.BindAddress = strings.TrimSpace(raw.BindAddress)
		}
		if meta.IsDefined("serial_port") {
			c.SerialPort = strings.TrimSpace(raw.SerialPort)
		}
		if meta.IsDefined("baud_rate") {
			c.BaudRate = raw.BaudRate
		}
		if meta.IsDefined("log_level") {
			c.LogLevel = strings.TrimSpace(raw.LogLevel)
		}
		if meta.IsDefined("ssid") {
			c.SSID = raw.SSID
		}
		if meta.IsDefined("password") {
			c.Password = raw.Password
		}
		if meta.IsDefined("server_port") {
			c.ServerPort = raw.ServerPort
		}
		if meta.IsDefined("budget") {
			c.Budget = raw.Budget
		}
		if meta.IsDefined("settle_delay") {
			d, err := time.ParseDuration(strings.TrimSpace(raw.SettleDelay))
			if err != nil {
				return fmt.Errorf("parse settle_delay: %w", err)
			}
			c.SettleDelay = d
		}
		if meta.IsDefined("echo") {
			c.Echo = raw.Echo
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if ssid := os.Getenv("WIFI_SSID"); ssid != "" {
			c.SSID = ssid
		}

		if password := os.Getenv("WIFI_PASSWORD"); password != "" {
			c.Password = password
		}

		if port := os.Getenv("SERVER_PORT"); port != "" {
			if p, err := strconv.Atoi(port); err == nil {
				c.ServerPort = p
			}
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "baud-rate":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.BaudRate = b
				}
			case "log-level":
				c.LogLevel = f.Value.String()
			case "ssid":
				c.SSID = f.Value.String()
			case "password":
				c.Password = f.Value.String()
			case "server-port":
				if p, err := strconv.Atoi(f.Value.String()); err == nil {
					c.ServerPort = p
				}
			case "budget":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.Budget = b
				}
			case "echo":
				c.Echo = f.Value.String() == "true"
			}
		})
		return nil
	}
}
