package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.bug.st/serial"

	"i4.energy/across/cellinfo/modem"
	"i4.energy/across/cellinfo/qeng"
	"i4.energy/across/cellinfo/report"
)

func main() {
	flag.String("device", "/dev/ttyUSB3", "Path of the AT command port to use")
	flag.Int("baud-rate", 115200, "Baud rate for serial communication")
	flag.String("include", "rat,band,rsrp,sinr", "Comma-separated list of fields to output; use 'any' for all available fields")
	flag.Bool("json", false, "Output the result to the standard output in JSON format")
	flag.Bool("metadata", false, "Put the result to the metadata service as tag values")
	flag.Bool("udp-endpoint", false, "Send the result to the unified endpoint as a UDP packet")
	flag.String("metadata-url", "", "Override the metadata service tags endpoint")
	flag.String("udp-addr", "", "Override the unified endpoint host:port")
	flag.String("mqtt-broker", "", "Publish the result to this MQTT broker (e.g. tcp://host:1883)")
	flag.String("mqtt-client-id", "cellinfo", "Client ID for the MQTT sink")
	flag.String("mqtt-topic", "cellinfo/servingcell", "Topic for the MQTT sink")
	flag.Duration("at-timeout", 5*time.Second, "Per-line AT response timeout")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	configPath := flag.String("config", "", "Path to a TOML configuration file")
	flag.Parse()

	opts := []ConfigOption{WithDefaults(), WithEnv()}
	if *configPath != "" {
		opts = append(opts, WithFile(*configPath))
	}
	opts = append(opts, WithFlags(flag.CommandLine))

	config, err := LoadConfig(opts...)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, logger, config))
}

func run(ctx context.Context, logger *slog.Logger, config *Config) int {
	modemConfig, err := modem.NewConfigBuilder().
		WithATTimeout(config.ATTimeout).
		WithDialer(modem.SerialDialer{
			PortName: config.Device,
			Mode:     &serial.Mode{BaudRate: config.BaudRate},
		}).
		Build()
	if err != nil {
		logger.Error("Failed to create modem config", "error", err)
		return 1
	}

	m, err := modem.New(ctx, modemConfig)
	if err != nil {
		logger.Error("Failed to open modem", "error", err, "device", config.Device)
		return 1
	}
	defer m.Close()

	info, err := qeng.QueryServingCell(ctx, m)
	if err != nil {
		logger.Error("Failed to query serving cell", "error", err)
		return 1
	}

	result := info.Filter(strings.Split(config.Include, ","))
	logger.Debug("Decoded serving cell report", "fields", len(info), "selected", len(result))

	return deliver(ctx, logger, config, result)
}

// deliver fans the result out to every selected sink. Sinks are independent:
// each one is attempted even if another failed, and the exit code is
// non-zero if any of them did.
func deliver(ctx context.Context, logger *slog.Logger, config *Config, result qeng.Info) int {
	failed := false

	otherSinks := config.Metadata || config.UDPEndpoint || config.MQTTBroker != ""

	// Stdout JSON is the default sink: emitted when requested explicitly,
	// or when no other sink is selected.
	if config.JSON || !otherSinks {
		if err := report.JSON(os.Stdout, result); err != nil {
			logger.Error("Failed to write JSON output", "error", err)
			failed = true
		}
	}

	if config.Metadata {
		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := report.Metadata(ctx, client, config.MetadataURL, result)
		if err != nil {
			logger.Error("Failed to put metadata", "error", err, "url", config.MetadataURL)
			failed = true
		} else if resp != "" {
			logger.Info("Put signal information into metadata", "response", resp)
		}
	}

	if config.UDPEndpoint {
		if err := report.UDP(config.UDPAddr, result); err != nil {
			logger.Error("Failed to send UDP report", "error", err, "endpoint", config.UDPAddr)
			failed = true
		}
	}

	if config.MQTTBroker != "" {
		if err := report.MQTT(ctx, config.MQTTBroker, config.MQTTClientID, config.MQTTTopic, result); err != nil {
			logger.Error("Failed to publish MQTT report", "error", err, "broker", config.MQTTBroker)
			failed = true
		}
	}

	if failed {
		return 1
	}
	return 0
}
