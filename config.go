package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the application configuration
type Config struct {
	// Device is the path to the modem's AT command port (e.g. "/dev/ttyUSB3")
	Device string
	// BaudRate is the baud rate for serial communication with the modem
	BaudRate int
	// Include is the comma-separated list of fields to output; "any" selects all
	Include string
	// JSON requests output to stdout in JSON format
	JSON bool
	// Metadata requests an HTTP PUT of the result to the metadata service
	Metadata bool
	// UDPEndpoint requests a UDP datagram to the unified endpoint
	UDPEndpoint bool
	// MetadataURL is the metadata service tags endpoint
	MetadataURL string
	// UDPAddr is the unified endpoint host:port
	UDPAddr string
	// MQTTBroker enables the MQTT sink when non-empty (e.g. "tcp://host:1883")
	MQTTBroker string
	// MQTTClientID is the client identifier used for the MQTT sink
	MQTTClientID string
	// MQTTTopic is the topic the result is published to
	MQTTTopic string
	// ATTimeout is the per-line AT response timeout
	ATTimeout time.Duration
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string
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
		c.Device = "/dev/ttyUSB3"
		c.BaudRate = 115200
		c.Include = "rat,band,rsrp,sinr"
		c.MetadataURL = "http://metadata.soracom.io/v1/subscriber/tags"
		c.UDPAddr = "unified.soracom.io:23080"
		c.MQTTClientID = "cellinfo"
		c.MQTTTopic = "cellinfo/servingcell"
		c.ATTimeout = 5 * time.Second
		c.LogLevel = "info"
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if device := os.Getenv("DEVICE"); device != "" {
			c.Device = device
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if include := os.Getenv("INCLUDE"); include != "" {
			c.Include = include
		}

		if url := os.Getenv("METADATA_URL"); url != "" {
			c.MetadataURL = url
		}

		if addr := os.Getenv("UDP_ADDR"); addr != "" {
			c.UDPAddr = addr
		}

		if broker := os.Getenv("MQTT_BROKER"); broker != "" {
			c.MQTTBroker = broker
		}

		if topic := os.Getenv("MQTT_TOPIC"); topic != "" {
			c.MQTTTopic = topic
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		return nil
	}
}

// fileConfig mirrors Config for TOML decoding. Pointer fields distinguish
// "absent from the file" from an explicit zero value, so the file only
// overrides what it actually sets.
type fileConfig struct {
	Device       *string `toml:"device"`
	BaudRate     *int    `toml:"baud_rate"`
	Include      *string `toml:"include"`
	JSON         *bool   `toml:"json"`
	Metadata     *bool   `toml:"metadata"`
	UDPEndpoint  *bool   `toml:"udp_endpoint"`
	MetadataURL  *string `toml:"metadata_url"`
	UDPAddr      *string `toml:"udp_addr"`
	MQTTBroker   *string `toml:"mqtt_broker"`
	MQTTClientID *string `toml:"mqtt_client_id"`
	MQTTTopic    *string `toml:"mqtt_topic"`
	ATTimeout    *string `toml:"at_timeout"`
	LogLevel     *string `toml:"log_level"`
}

// WithFile loads configuration from a TOML file
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		var fc fileConfig
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return fmt.Errorf("load config file %q: %w", path, err)
		}

		if fc.Device != nil {
			c.Device = *fc.Device
		}
		if fc.BaudRate != nil {
			c.BaudRate = *fc.BaudRate
		}
		if fc.Include != nil {
			c.Include = *fc.Include
		}
		if fc.JSON != nil {
			c.JSON = *fc.JSON
		}
		if fc.Metadata != nil {
			c.Metadata = *fc.Metadata
		}
		if fc.UDPEndpoint != nil {
			c.UDPEndpoint = *fc.UDPEndpoint
		}
		if fc.MetadataURL != nil {
			c.MetadataURL = *fc.MetadataURL
		}
		if fc.UDPAddr != nil {
			c.UDPAddr = *fc.UDPAddr
		}
		if fc.MQTTBroker != nil {
			c.MQTTBroker = *fc.MQTTBroker
		}
		if fc.MQTTClientID != nil {
			c.MQTTClientID = *fc.MQTTClientID
		}
		if fc.MQTTTopic != nil {
			c.MQTTTopic = *fc.MQTTTopic
		}
		if fc.ATTimeout != nil {
			d, err := time.ParseDuration(*fc.ATTimeout)
			if err != nil {
				return fmt.Errorf("config file %q: bad at_timeout: %w", path, err)
			}
			c.ATTimeout = d
		}
		if fc.LogLevel != nil {
			c.LogLevel = *fc.LogLevel
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var err error
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "device":
				c.Device = f.Value.String()
			case "baud-rate":
				if b, convErr := strconv.Atoi(f.Value.String()); convErr == nil {
					c.BaudRate = b
				}
			case "include":
				c.Include = f.Value.String()
			case "json":
				c.JSON = f.Value.String() == "true"
			case "metadata":
				c.Metadata = f.Value.String() == "true"
			case "udp-endpoint":
				c.UDPEndpoint = f.Value.String() == "true"
			case "metadata-url":
				c.MetadataURL = f.Value.String()
			case "udp-addr":
				c.UDPAddr = f.Value.String()
			case "mqtt-broker":
				c.MQTTBroker = f.Value.String()
			case "mqtt-client-id":
				c.MQTTClientID = f.Value.String()
			case "mqtt-topic":
				c.MQTTTopic = f.Value.String()
			case "at-timeout":
				d, parseErr := time.ParseDuration(f.Value.String())
				if parseErr != nil {
					err = fmt.Errorf("bad -at-timeout: %w", parseErr)
					return
				}
				c.ATTimeout = d
			case "log-level":
				c.LogLevel = f.Value.String()
			}
		})
		return err
	}
}
