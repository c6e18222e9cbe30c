package store

import (
	"time"

	"repoharvest/internal/platform/config"
)

// Config aggregates per backend configuration
type Config struct {
	AppName string
	PG      PGConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	// Boot guard: attempts before giving up and the per-ping timeout
	ConnectRetries int
	PingTimeout    time.Duration
}

// FromConfig reads SERVICE_PGSQL_*; the mirror is enabled when DBURL is set
func FromConfig(cfg config.Conf, appName string) Config {
	pg := cfg.Prefix("SERVICE_PGSQL_")
	url := pg.MayString("DBURL", "")
	return Config{
		AppName: appName,
		PG: PGConfig{
			Enabled:        url != "",
			URL:            url,
			MaxConns:       int32(pg.MayInt("MAX_CONNS", 4)),
			LogSQL:         pg.MayBool("LOG_SQL", false),
			SlowQueryMs:    pg.MayInt("SLOW_MS", 200),
			ConnectRetries: pg.MayInt("CONNECT_RETRIES", 6),
			PingTimeout:    pg.MayDuration("PING_TIMEOUT", 3*time.Second),
		},
	}
}
