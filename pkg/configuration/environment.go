package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/LenoreWoW/ProjectPulse-2-sub003/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if fs.FileExists(file) {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"projectpulse"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.Password, d.SSLMode,
	)
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"milestone-import"`
}

type PrometheusOptions struct {
	// Textfile is a node-exporter textfile collector path written after each run.
	Textfile string `env:"PROMETHEUS_TEXTFILE"`
}

type ImportOptions struct {
	Delimiter    string        `env:"IMPORT_DELIMITER" envDefault:";"`
	Encoding     string        `env:"IMPORT_ENCODING" envDefault:"utf-8"`
	DateLayouts  []string      `env:"IMPORT_DATE_LAYOUTS" envSeparator:"|"`
	Workers      int           `env:"IMPORT_WORKERS" envDefault:"1"`
	RowTimeout   time.Duration `env:"IMPORT_ROW_TIMEOUT" envDefault:"30s"`
	ProjectCache string        `env:"IMPORT_PROJECT_CACHE" envDefault:"memory"` // memory or redis
	CacheTTL     time.Duration `env:"IMPORT_PROJECT_CACHE_TTL" envDefault:"10m"`
}

// Validate checks the import configuration for errors
func (o *ImportOptions) Validate() error {
	if o.Workers < 1 {
		return fmt.Errorf("import workers must be at least 1, got %d", o.Workers)
	}
	if o.Workers > 64 {
		return fmt.Errorf("import workers too high, maximum is 64, got %d", o.Workers)
	}
	if o.RowTimeout < 0 {
		return fmt.Errorf("import row timeout must be non-negative, got %s", o.RowTimeout)
	}
	d := o.Delimiter
	if d != "auto" && d != `\t` && len([]rune(d)) != 1 {
		return fmt.Errorf("import delimiter must be a single character or 'auto', got %q", d)
	}
	mode := strings.ToLower(strings.TrimSpace(o.ProjectCache))
	if mode == "" {
		mode = "memory"
	}
	if mode != "memory" && mode != "redis" {
		return fmt.Errorf("import project cache must be 'memory' or 'redis', got '%s'", o.ProjectCache)
	}
	o.ProjectCache = mode
	return nil
}

type Configuration struct {
	Database      DatabaseOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions
	Import        ImportOptions

	RedisURL         string `env:"REDIS_URL" envDefault:"localhost:6379"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string `env:"LOG_PATH"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.Import.Validate(); err != nil {
		return fmt.Errorf("import configuration error: %w", err)
	}
	if c.Import.ProjectCache == "redis" && strings.TrimSpace(c.RedisURL) == "" {
		return fmt.Errorf("REDIS_URL is required when IMPORT_PROJECT_CACHE is 'redis'")
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
