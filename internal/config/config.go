// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config aggregates everything the process needs at startup.
type Config struct {
	// DatabaseURL may be empty, in which case the process runs on the
	// in-memory store (local development only).
	DatabaseURL string
	AuthToken   string
	Port        string

	// AdminIDs are the operator identities allowed to decide withdrawals
	// and edit settings.
	AdminIDs []int64

	// TransferTTL bounds how long a quoted transfer stays live.
	TransferTTL time.Duration

	// UserbotURL is the inspection sidecar; UserbotID is the automated
	// account whose admin rights prove an ownership hand-over.
	UserbotURL string
	UserbotID  int64

	// NATSURL may be empty; notifications are then recorded in-process.
	NATSURL string

	Logging LoggingConfig
}

// LoggingConfig controls structured logging output.
type LoggingConfig struct {
	Level  string
	Format string // text|json
}

const defaultTransferTTL = 15 * time.Minute

var idSeparators = regexp.MustCompile(`[,;\s]+`)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		AuthToken:   strings.TrimSpace(os.Getenv("AUTH_TOKEN")),
		Port:        valueOrDefault("PORT", "8080"),
		UserbotURL:  valueOrDefault("USERBOT_URL", "http://localhost:8081"),
		NATSURL:     strings.TrimSpace(os.Getenv("NATS_URL")),
		TransferTTL: defaultTransferTTL,
		Logging: LoggingConfig{
			Level:  valueOrDefault("LOG_LEVEL", "info"),
			Format: valueOrDefault("LOG_FORMAT", "text"),
		},
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = databaseURLFromParts()
	}
	if cfg.AuthToken == "" {
		return Config{}, errors.New("AUTH_TOKEN is required")
	}

	ids, err := parseAdminIDs(os.Getenv("ADMIN_IDS"))
	if err != nil {
		return Config{}, err
	}
	if len(ids) == 0 {
		return Config{}, errors.New("ADMIN_IDS is required")
	}
	cfg.AdminIDs = ids

	if v := strings.TrimSpace(os.Getenv("USERBOT_ID")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid USERBOT_ID %q: %w", v, err)
		}
		cfg.UserbotID = id
	}
	if cfg.UserbotID == 0 {
		return Config{}, errors.New("USERBOT_ID is required")
	}

	if v := strings.TrimSpace(os.Getenv("TRANSFER_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid TRANSFER_TTL %q", v)
		}
		cfg.TransferTTL = d
	}

	return cfg, nil
}

func parseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range idSeparators.Split(strings.TrimSpace(raw), -1) {
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func databaseURLFromParts() string {
	user := strings.TrimSpace(os.Getenv("DB_USER"))
	password := strings.TrimSpace(os.Getenv("DB_PASSWORD"))
	name := strings.TrimSpace(os.Getenv("DB_NAME"))
	if user == "" || password == "" || name == "" {
		return ""
	}
	host := valueOrDefault("DB_HOST", "localhost")
	port := valueOrDefault("DB_PORT", "5432")
	sslmode := valueOrDefault("DB_SSLMODE", "disable")
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, name, sslmode,
	)
}

func valueOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
