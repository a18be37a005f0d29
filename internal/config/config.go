package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Loader   LoaderConfig   `yaml:"loader"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// DatabaseConfig holds PostgreSQL connection settings. When DSN is empty it
// is assembled from Host, Name, User and Password.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"`
	Host            string        `yaml:"host"               env:"DB_HOST"                     env-default:"localhost"`
	Port            int           `yaml:"port"               env:"DB_PORT"                     env-default:"5432"`
	Name            string        `yaml:"name"               env:"DB_NAME"                     env-default:"names2016"`
	User            string        `yaml:"user"               env:"DB_USER"                     env-default:"names"`
	Password        string        `yaml:"password"           env:"DB_PASSWORD"`
	SSLMode         string        `yaml:"sslmode"            env:"DB_SSLMODE"                  env-default:"disable"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"4"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"1"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
	// SQLitePath switches the destination to a local SQLite file.
	SQLitePath string `yaml:"sqlite_path" env:"DATABASE_SQLITE_PATH"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// LoaderConfig holds dataset locations and load behaviour. Strategy defaults
// to copy, or to rows when the destination is SQLite.
type LoaderConfig struct {
	FirstnamesDir     string `yaml:"firstnames_dir"     env:"LOADER_FIRSTNAMES_DIR"     env-default:"data/firstnames"`
	SurnamesPath      string `yaml:"surnames_path"      env:"LOADER_SURNAMES_PATH"      env-default:"data/surnames_2010Census.csv"`
	BatchSize         int    `yaml:"batch_size"         env:"LOADER_BATCH_SIZE"         env-default:"10000"`
	Strategy          string `yaml:"strategy"           env:"LOADER_STRATEGY"`
	Rebuild           string `yaml:"rebuild"            env:"LOADER_REBUILD"            env-default:"rebuild"`
	OrderCheck        string `yaml:"order_check"        env:"LOADER_ORDER_CHECK"        env-default:"warn"`
	SingleTransaction bool   `yaml:"single_transaction" env:"LOADER_SINGLE_TRANSACTION" env-default:"false"`
	SampleSize        int    `yaml:"sample_size"        env:"LOADER_SAMPLE_SIZE"        env-default:"20"`
	GrantRole         string `yaml:"grant_role"         env:"LOADER_GRANT_ROLE"`
	NonInteractive    bool   `yaml:"non_interactive"    env:"NONINTERACTIVE"            env-default:"false"`
	DryRun            bool   `yaml:"dry_run"            env:"LOADER_DRY_RUN"`
}

// MetricsConfig holds run metrics export settings.
type MetricsConfig struct {
	// TextfilePath, when set, receives the run metrics in Prometheus text format.
	TextfilePath string `yaml:"textfile_path" env:"METRICS_TEXTFILE_PATH"`
	Namespace    string `yaml:"namespace"     env:"METRICS_NAMESPACE"     env-default:"names_loader"`
}

// ConnString returns the PostgreSQL connection string.
func (c DatabaseConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	return u.String()
}

// UsesSQLite reports whether the destination is a local SQLite file.
func (c DatabaseConfig) UsesSQLite() bool {
	return c.SQLitePath != ""
}
