package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/relabs-tech/motion_suit/internal/suit"
)

// DefaultPath is where the binaries look for configuration when no -config is given.
const DefaultPath = "motion_suit_config.txt"

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDStreamer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string
	MQTTClientIDPlayback string
	MQTTClientIDMonitor  string

	// Topics
	TopicAbsoluteUpper string
	TopicAbsoluteLower string
	TopicLocalUpper    string
	TopicLocalLower    string
	TopicEvents        string
	TopicCommand       string

	// Suit link
	SuitSerialPort   string // device path or "auto"
	SuitBaudRate     uint
	SuitTickInterval int // milliseconds
	SuitAutoConnect  suit.DeviceType

	// Recording
	RecordingPath string // empty disables recording

	// Timing
	ConsoleLogInterval int // milliseconds

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CBus         string
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds
}

// Package-level singleton. InitGlobal sets it once, Get reads it under a read lock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a configuration with every optional value filled in.
func Default() *Config {
	return &Config{
		MQTTBroker:           "tcp://localhost:1883",
		MQTTClientIDStreamer: "motion-suit-streamer",
		MQTTClientIDConsole:  "motion-suit-console",
		MQTTClientIDWeb:      "motion-suit-web",
		MQTTClientIDDisplay:  "motion-suit-display",
		MQTTClientIDPlayback: "motion-suit-playback",
		MQTTClientIDMonitor:  "motion-suit-monitor",

		TopicAbsoluteUpper: "suit/absolute/upper",
		TopicAbsoluteLower: "suit/absolute/lower",
		TopicLocalUpper:    "suit/local/upper",
		TopicLocalLower:    "suit/local/lower",
		TopicEvents:        "suit/events",
		TopicCommand:       "suit/command",

		SuitSerialPort:   "auto",
		SuitBaudRate:     115200,
		SuitTickInterval: 10,
		SuitAutoConnect:  suit.None,

		ConsoleLogInterval: 500,
		WebServerPort:      8080,

		DisplayI2CBus:         "",
		DisplayI2CAddr:        0x3C,
		DisplayUpdateInterval: 200,
	}
}

// Load reads the configuration file on top of Default and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	if err := cfg.parse(file); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := c.setValue(key, value); err != nil {
			return fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// ApplyOverrides applies KEY=VALUE pairs from a dotenv file. A missing file is
// not an error. The result is validated again.
func (c *Config) ApplyOverrides(envPath string) error {
	values, err := godotenv.Read(envPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read overrides: %w", err)
	}
	for key, value := range values {
		if err := c.setValue(key, strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("override %s: %w", envPath, err)
		}
	}
	return c.validate()
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_STREAMER":
		c.MQTTClientIDStreamer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_CLIENT_ID_PLAYBACK":
		c.MQTTClientIDPlayback = value
	case "MQTT_CLIENT_ID_MONITOR":
		c.MQTTClientIDMonitor = value

	// Topics
	case "TOPIC_ABSOLUTE_UPPER":
		c.TopicAbsoluteUpper = value
	case "TOPIC_ABSOLUTE_LOWER":
		c.TopicAbsoluteLower = value
	case "TOPIC_LOCAL_UPPER":
		c.TopicLocalUpper = value
	case "TOPIC_LOCAL_LOWER":
		c.TopicLocalLower = value
	case "TOPIC_EVENTS":
		c.TopicEvents = value
	case "TOPIC_COMMAND":
		c.TopicCommand = value

	// Suit link
	case "SUIT_SERIAL_PORT":
		c.SuitSerialPort = value
	case "SUIT_BAUD_RATE":
		rate, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid SUIT_BAUD_RATE %q: %w", value, err)
		}
		c.SuitBaudRate = uint(rate)
	case "SUIT_TICK_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SUIT_TICK_INTERVAL %q: %w", value, err)
		}
		if interval < 1 || interval > 1000 {
			return fmt.Errorf("SUIT_TICK_INTERVAL must be 1-1000 ms, got %d", interval)
		}
		c.SuitTickInterval = interval
	case "SUIT_AUTOCONNECT":
		device, err := suit.ParseDeviceType(value)
		if err != nil {
			return fmt.Errorf("invalid SUIT_AUTOCONNECT: %w", err)
		}
		c.SuitAutoConnect = device

	// Recording
	case "RECORDING_PATH":
		c.RecordingPath = value

	// Timing
	case "CONSOLE_LOG_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CONSOLE_LOG_INTERVAL %q: %w", value, err)
		}
		c.ConsoleLogInterval = interval

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", port)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, err)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicCommand == "" || c.TopicEvents == "" {
		return fmt.Errorf("TOPIC_COMMAND and TOPIC_EVENTS are required")
	}
	if c.SuitSerialPort == "" {
		return fmt.Errorf("SUIT_SERIAL_PORT is required (use \"auto\" to detect)")
	}
	if c.SuitBaudRate == 0 {
		return fmt.Errorf("SUIT_BAUD_RATE is required")
	}
	if c.ConsoleLogInterval <= 0 {
		return fmt.Errorf("CONSOLE_LOG_INTERVAL must be positive")
	}
	if c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive")
	}
	return nil
}

// InitGlobal initializes the global configuration from file, then applies a
// .env file from the working directory if there is one.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		var cfg *Config
		cfg, err = Load(configPath)
		if err != nil {
			return
		}
		if err = cfg.ApplyOverrides(".env"); err != nil {
			return
		}
		globalConfig = cfg
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
