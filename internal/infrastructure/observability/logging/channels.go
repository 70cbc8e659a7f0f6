// Package logging provides structured logging channels for ConverTrack
// operations, separating session, delivery, and consent concerns.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Channel represents a logical logging channel for different system components
type Channel string

const (
	// System channels
	ChannelSystem   Channel = "system"   // General system operations
	ChannelStartup  Channel = "startup"  // Application startup and initialization
	ChannelShutdown Channel = "shutdown" // Application shutdown and cleanup

	// Tracking channels
	ChannelSession     Channel = "session"     // Session lifecycle operations
	ChannelAttribution Channel = "attribution" // First/last touch capture
	ChannelConsent     Channel = "consent"     // Consent gate decisions
	ChannelEvents      Channel = "events"      // Event dispatch and validation
	ChannelIdentity    Channel = "identity"    // Identity stitching operations
	ChannelAnalytics   Channel = "analytics"   // Segment and funnel computation

	// Infrastructure channels
	ChannelStore    Channel = "store"    // Key-value store operations
	ChannelDelivery Channel = "delivery" // Sink delivery and retry queue
	ChannelPlugins  Channel = "plugins"  // Plugin bus fan-out

	// Development and debugging channels
	ChannelDebug Channel = "debug" // Debug information
	ChannelTrace Channel = "trace" // Detailed tracing information
)

// ChanneledLogger provides structured logging with multiple channels
type ChanneledLogger struct {
	channels map[Channel]*slog.Logger
	config   *LoggerConfig
	baseDir  string
	configMu sync.RWMutex
}

// LoggerConfig contains configuration options for the channeled logger
type LoggerConfig struct {
	OutputToFile    bool   `json:"outputToFile"`    // Whether to write logs to files
	OutputToConsole bool   `json:"outputToConsole"` // Whether to write logs to console
	LogDirectory    string `json:"logDirectory"`    // Directory for log files

	JSONFormat    bool `json:"jsonFormat"`    // Use JSON format for structured logging
	IncludeSource bool `json:"includeSource"` // Include source file and line in logs

	DefaultLevel  slog.Level             `json:"defaultLevel"`  // Default log level
	ChannelLevels map[Channel]slog.Level `json:"channelLevels"` // Per-channel log levels
}

// DefaultLoggerConfig returns a sensible default configuration
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		OutputToFile:    true,
		OutputToConsole: true,
		LogDirectory:    "logs",
		JSONFormat:      true,
		IncludeSource:   false,
		DefaultLevel:    slog.LevelInfo,
		ChannelLevels:   make(map[Channel]slog.Level),
	}
}

// NewChanneledLogger creates a new channeled logger with the given configuration
func NewChanneledLogger(config *LoggerConfig) (*ChanneledLogger, error) {
	if config == nil {
		config = DefaultLoggerConfig()
	}

	logger := &ChanneledLogger{
		channels: make(map[Channel]*slog.Logger),
		config:   config,
		baseDir:  config.LogDirectory,
	}

	if config.OutputToFile {
		if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	channels := []Channel{
		ChannelSystem, ChannelStartup, ChannelShutdown,
		ChannelSession, ChannelAttribution, ChannelConsent,
		ChannelEvents, ChannelIdentity, ChannelAnalytics,
		ChannelStore, ChannelDelivery, ChannelPlugins,
		ChannelDebug, ChannelTrace,
	}

	for _, channel := range channels {
		channelLogger, err := logger.createChannelLogger(channel)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger for channel %s: %w", channel, err)
		}
		logger.channels[channel] = channelLogger
	}

	return logger, nil
}

// createChannelLogger creates a slog.Logger for a specific channel
func (cl *ChanneledLogger) createChannelLogger(channel Channel) (*slog.Logger, error) {
	cl.configMu.RLock()
	defer cl.configMu.RUnlock()

	// Respect DefaultLevel unless explicitly overridden per channel
	level := cl.config.DefaultLevel
	if channelLevel, exists := cl.config.ChannelLevels[channel]; exists {
		level = channelLevel
	}

	var writers []io.Writer

	if cl.config.OutputToConsole {
		writers = append(writers, os.Stdout)
	}

	if cl.config.OutputToFile {
		filename := fmt.Sprintf("%s.log", string(channel))
		path := filepath.Join(cl.config.LogDirectory, filename)

		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
		}

		writers = append(writers, file)
	}

	var writer io.Writer
	if len(writers) == 1 {
		writer = writers[0]
	} else if len(writers) > 1 {
		writer = io.MultiWriter(writers...)
	} else {
		writer = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cl.config.IncludeSource,
	}

	var handler slog.Handler
	if cl.config.JSONFormat {
		handler = slog.NewJSONHandler(writer, handlerOpts)
	} else {
		handler = slog.NewTextHandler(writer, handlerOpts)
	}

	logger := slog.New(handler).With(slog.String("channel", string(channel)))

	return logger, nil
}

func (cl *ChanneledLogger) System() *slog.Logger      { return cl.channels[ChannelSystem] }
func (cl *ChanneledLogger) Startup() *slog.Logger     { return cl.channels[ChannelStartup] }
func (cl *ChanneledLogger) Shutdown() *slog.Logger    { return cl.channels[ChannelShutdown] }
func (cl *ChanneledLogger) Session() *slog.Logger     { return cl.channels[ChannelSession] }
func (cl *ChanneledLogger) Attribution() *slog.Logger { return cl.channels[ChannelAttribution] }
func (cl *ChanneledLogger) Consent() *slog.Logger     { return cl.channels[ChannelConsent] }
func (cl *ChanneledLogger) Events() *slog.Logger      { return cl.channels[ChannelEvents] }
func (cl *ChanneledLogger) Identity() *slog.Logger    { return cl.channels[ChannelIdentity] }
func (cl *ChanneledLogger) Analytics() *slog.Logger   { return cl.channels[ChannelAnalytics] }
func (cl *ChanneledLogger) Store() *slog.Logger       { return cl.channels[ChannelStore] }
func (cl *ChanneledLogger) Delivery() *slog.Logger    { return cl.channels[ChannelDelivery] }
func (cl *ChanneledLogger) Plugins() *slog.Logger     { return cl.channels[ChannelPlugins] }
func (cl *ChanneledLogger) Debug() *slog.Logger       { return cl.channels[ChannelDebug] }
func (cl *ChanneledLogger) Trace() *slog.Logger       { return cl.channels[ChannelTrace] }

// GetChannel returns a logger for a specific channel
func (cl *ChanneledLogger) GetChannel(channel Channel) *slog.Logger {
	if logger, exists := cl.channels[channel]; exists {
		return logger
	}
	// Fallback to system channel
	return cl.channels[ChannelSystem]
}

// WithProfile returns a logger with visitor profile context
func (cl *ChanneledLogger) WithProfile(channel Channel, profileID string) *slog.Logger {
	logger := cl.GetChannel(channel)
	return logger.With(slog.String("profileId", profileID))
}

// WithOperation returns a logger with operation context
func (cl *ChanneledLogger) WithOperation(channel Channel, operation string) *slog.Logger {
	logger := cl.GetChannel(channel)
	return logger.With(slog.String("operation", operation))
}

// LogStoreOperation logs key-value store operations with timing context
func (cl *ChanneledLogger) LogStoreOperation(operation, key string, ok bool, duration time.Duration) {
	cl.Store().Debug("Store operation",
		slog.String("operation", operation),
		slog.String("key", key),
		slog.Bool("ok", ok),
		slog.Duration("duration", duration),
	)
}
