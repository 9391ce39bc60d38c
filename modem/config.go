package modem

import (
	"time"
)

// Config holds the settings for a Modem.
type Config struct {
	// Dialer establishes the transport connection. Required.
	Dialer Dialer
	// ATTimeout is the maximum wait for each response line of a command
	// exchange. The timer restarts whenever a line arrives, so a slow
	// multi-line response is not cut off as long as lines keep coming.
	ATTimeout time.Duration
	// QueueSize is the capacity of the received-line queue between the
	// background reader and command issuers.
	QueueSize int
}

func (c *Config) validate() error {
	if c.Dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.ATTimeout == 0 {
		c.ATTimeout = 5 * time.Second
	}
	if c.QueueSize == 0 {
		c.QueueSize = 64
	}
}

// ConfigBuilder assembles a Config fluently. Build validates the result,
// so a Config obtained from Build is always usable with New.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.Dialer = d
	return b
}

func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.config.ATTimeout = d
	return b
}

func (b *ConfigBuilder) WithQueueSize(n int) *ConfigBuilder {
	b.config.QueueSize = n
	return b
}

func (b *ConfigBuilder) Build() (Config, error) {
	if err := b.config.validate(); err != nil {
		return Config{}, err
	}
	b.config.setDefaults()
	return b.config, nil
}
