package asqlite

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents engine configuration.
type Config struct {
	// Busy timeout applied to every opened connection (default: 5s).
	// How long a statement waits on a locked database before failing.
	BusyTimeout time.Duration

	// Foreign key enforcement for every opened connection (default: true).
	ForeignKeys bool

	// Default pages copied per backup step (default: 64).
	// Used when a backup is started with a non-positive step size.
	BackupStepPages int
}

// LoadConfig loads engine configuration from environment variables.
// It reads the following environment variables:
//   - ASQLITE_BUSY_TIMEOUT: busy timeout (default: 5s)
//   - ASQLITE_FOREIGN_KEYS: foreign key enforcement (default: true)
//   - ASQLITE_BACKUP_STEP_PAGES: pages per backup step (default: 64)
//
// Duration values can be specified as:
//   - Integer number of milliseconds (e.g., "5000" = 5 seconds)
//   - Duration string (e.g., "5s", "1m30s")
//
// Returns a Config struct with default values if environment variables are not set.
func LoadConfig() *Config {
	cfg := &Config{
		BusyTimeout:     getEnvDuration("ASQLITE_BUSY_TIMEOUT", 5*time.Second),
		ForeignKeys:     getEnvBool("ASQLITE_FOREIGN_KEYS", true),
		BackupStepPages: getEnvInt("ASQLITE_BACKUP_STEP_PAGES", 64),
	}

	return cfg
}

// dsn builds the driver connection string for a database path, carrying the
// configured pragmas as mattn/go-sqlite3 DSN parameters. The driver accepts
// only "0" or "1" for _foreign_keys.
func (c *Config) dsn(path string) string {
	fk := "0"
	if c.ForeignKeys {
		fk = "1"
	}
	return fmt.Sprintf("%s?_busy_timeout=%d&_foreign_keys=%s",
		path, c.BusyTimeout.Milliseconds(), fk)
}

// stepPages resolves a requested backup step size against the default.
func (c *Config) stepPages(requested int) int {
	if requested > 0 {
		return requested
	}
	if c.BackupStepPages > 0 {
		return c.BackupStepPages
	}
	return 64
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
		// Try parsing as duration string (e.g., "5s", "1m30s")
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
