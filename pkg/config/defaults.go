// Package config provides centralized default values for ConverTrack
package config

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		file, err := os.Open(".env")
		if err != nil {
			return
		}
		defer file.Close()

		log.Println("Loading configuration overrides from .env file...")
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if valStr := os.Getenv(key); valStr != "" {
		parts := strings.Split(valStr, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			log.Printf("Config override: %s=%v", key, out)
			return out
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// Tracking Configuration
	TrackingVersion string
	DevMode         bool

	// Session Configuration
	SessionTimeout time.Duration

	// Storage Configuration
	StorePath     string
	TursoDatabase string
	TursoToken    string

	// Delivery Queue Configuration
	QueueMaxRetries    int
	QueueFlushInterval time.Duration
	DeliveryTimeout    time.Duration
	PixelEndpoint      string
	CAPIEndpoint       string

	// Cross-Domain Configuration
	LinkedDomains    []string
	CrossDomainKey   string
	CrossDomainParam string
	CrossDomainTTL   time.Duration

	// Debug Configuration
	DebugEventBufferSize int
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Tracking Configuration
	TrackingVersion = getEnvString("TRACKING_VERSION", "2.1")
	DevMode = getEnvBool("DEV_MODE", false)

	// Session Configuration
	SessionTimeout = getEnvDuration("SESSION_TIMEOUT", 30*time.Minute)

	// Storage Configuration
	StorePath = getEnvString("STORE_PATH", "data/convertrack.db")
	TursoDatabase = getEnvString("TURSO_DATABASE_URL", "")
	TursoToken = getEnvString("TURSO_AUTH_TOKEN", "")

	// Delivery Queue Configuration
	QueueMaxRetries = getEnvInt("QUEUE_MAX_RETRIES", 5)
	QueueFlushInterval = getEnvDuration("QUEUE_FLUSH_INTERVAL", 30*time.Second)
	DeliveryTimeout = getEnvDuration("DELIVERY_TIMEOUT", 10*time.Second)
	PixelEndpoint = getEnvString("PIXEL_ENDPOINT", "")
	CAPIEndpoint = getEnvString("CAPI_ENDPOINT", "")

	// Cross-Domain Configuration
	LinkedDomains = getEnvStringSlice("LINKED_DOMAINS", []string{})
	CrossDomainKey = getEnvString("CROSS_DOMAIN_KEY", "")
	CrossDomainParam = getEnvString("CROSS_DOMAIN_PARAM", "_ctxd")
	CrossDomainTTL = getEnvDuration("CROSS_DOMAIN_TTL", time.Hour)

	// Debug Configuration
	DebugEventBufferSize = getEnvInt("DEBUG_EVENT_BUFFER_SIZE", 50)
}
