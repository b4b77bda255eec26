// README: Config loader with env defaults for HTTP, backend, Redis, and terminal policy settings.
package config

import (
	"os"
	"strconv"
	"time"

	"kiosk/internal/types"
)

type BackendConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Config struct {
	HTTP struct {
		Addr   string
		APIKey string
	}
	Backend BackendConfig
	Redis   struct {
		Addr string
	}
	// KioskID identifies this terminal in recorded failed operations.
	KioskID string
	// StationID is the station this terminal is installed at; scan requests
	// that do not name a station fall back to it.
	StationID int
	// DefaultBalance seeds the local record for a card never seen before.
	// Set to 0.00 to make unknown cards fail the minimum-fare check instead.
	DefaultBalance types.Money
	// FailedOpCap bounds the persisted failed-operation backlog.
	FailedOpCap int
	ExportDir   string
	// SnapshotPath overrides the bundled static fare snapshot when set.
	SnapshotPath string
}

func Load() (Config, error) {
	var cfg Config
	cfg.HTTP.Addr = envOrDefault("KIOSK_HTTP_ADDR", ":8090")
	cfg.HTTP.APIKey = os.Getenv("KIOSK_API_KEY")
	cfg.Backend.BaseURL = envOrDefault("KIOSK_BACKEND_URL", "http://localhost:8000")
	cfg.Backend.APIKey = os.Getenv("KIOSK_BACKEND_API_KEY")
	cfg.Backend.Timeout = time.Duration(envOrDefaultInt("KIOSK_BACKEND_TIMEOUT_MS", 3000)) * time.Millisecond
	cfg.Redis.Addr = envOrDefault("KIOSK_REDIS_ADDR", "localhost:6379")
	cfg.KioskID = envOrDefault("KIOSK_ID", "kiosk-001")
	cfg.StationID = envOrDefaultInt("KIOSK_STATION_ID", 1)
	db, err := types.ParseMoney(envOrDefault("KIOSK_DEFAULT_BALANCE", "25.00"))
	if err != nil {
		return cfg, err
	}
	cfg.DefaultBalance = db
	cfg.FailedOpCap = envOrDefaultInt("KIOSK_FAILED_OP_CAP", 200)
	cfg.ExportDir = envOrDefault("KIOSK_EXPORT_DIR", "exports")
	cfg.SnapshotPath = os.Getenv("KIOSK_SNAPSHOT_PATH")
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
