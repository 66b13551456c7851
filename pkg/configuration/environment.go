package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/logging"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const Production = "production"

var (
	mu        sync.Mutex
	singleton = sync.OnceValue(newFromEnv)
)

func newFromEnv() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
}

// LoadEnv loads the env files found in the working directory or, failing
// that, in the nearest parent directory holding a go.mod.
func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if fs.FileExists(file) {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		if root, ok := moduleRoot(); ok {
			for _, file := range envFiles {
				p := filepath.Join(root, file)
				if fs.FileExists(p) {
					existingFiles = append(existingFiles, p)
				}
			}
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

func moduleRoot() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if fs.FileExists(filepath.Join(dir, "go.mod")) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"bridge"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
	Addr    string `env:"PROMETHEUS_METRICS_ADDR" envDefault:""`
}

type OpenTelemetryOptions struct {
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"nayose"`
}

type S3Options struct {
	Region    string `env:"NAYOSE_S3_REGION" envDefault:"ap-northeast-1"`
	Bucket    string `env:"NAYOSE_S3_BUCKET"`
	Prefix    string `env:"NAYOSE_S3_PREFIX" envDefault:"nayose"`
	Endpoint  string `env:"NAYOSE_S3_ENDPOINT"`
	PathStyle bool   `env:"NAYOSE_S3_PATH_STYLE" envDefault:"false"`
	AccessKey string `env:"NAYOSE_S3_ACCESS_KEY"`
	SecretKey string `env:"NAYOSE_S3_SECRET_KEY"`
}

type NayoseOptions struct {
	Dir            string        `env:"NAYOSE_DIR" envDefault:"./instance/nayose"`
	BlobDriver     string        `env:"NAYOSE_BLOB_DRIVER" envDefault:"fs"`
	LockDriver     string        `env:"NAYOSE_LOCK_DRIVER" envDefault:"memory"`
	LockTTL        time.Duration `env:"NAYOSE_LOCK_TTL" envDefault:"5m"`
	OutboxEnabled  bool          `env:"NAYOSE_OUTBOX_ENABLED" envDefault:"false"`
	OutboxTable    string        `env:"NAYOSE_OUTBOX_TABLE" envDefault:"master_outbox"`
	WordDictionary string        `env:"NAYOSE_WORD_DICTIONARY" envDefault:""`
	S3             S3Options
}

// Validate rejects unknown drivers and incomplete s3 settings.
func (n *NayoseOptions) Validate() error {
	n.BlobDriver = strings.ToLower(strings.TrimSpace(n.BlobDriver))
	switch n.BlobDriver {
	case "fs":
	case "s3":
		if strings.TrimSpace(n.S3.Bucket) == "" {
			return fmt.Errorf("NAYOSE_S3_BUCKET is required when NAYOSE_BLOB_DRIVER is 's3'")
		}
	default:
		return fmt.Errorf("invalid NAYOSE_BLOB_DRIVER=%q (expected fs|s3)", n.BlobDriver)
	}

	n.LockDriver = strings.ToLower(strings.TrimSpace(n.LockDriver))
	switch n.LockDriver {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid NAYOSE_LOCK_DRIVER=%q (expected memory|redis)", n.LockDriver)
	}
	if n.LockTTL <= 0 {
		return fmt.Errorf("NAYOSE_LOCK_TTL must be positive, got %s", n.LockTTL)
	}
	return nil
}

type Configuration struct {
	Database      DatabaseOptions
	Prometheus    PrometheusOptions
	OpenTelemetry OpenTelemetryOptions
	Nayose        NayoseOptions

	RedisURL         string `env:"REDIS_URL" envDefault:"localhost:6379"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string `env:"LOG_PATH" envDefault:""`

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
	mu.Lock()
	defer mu.Unlock()
	return singleton()
}

// Reset drops the cached configuration so the next Use re-reads the environment.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	singleton = sync.OnceValue(newFromEnv)
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

	if err := c.Nayose.Validate(); err != nil {
		return fmt.Errorf("nayose configuration error: %w", err)
	}

	if c.LogPath != "" {
		f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
		if err != nil {
			return err
		}
		c.logFile = f
		c.logger = logger
	} else {
		c.logger = logging.ConsoleLogger(c.LogrusLogLevel())
	}

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
