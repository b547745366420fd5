package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHost             = "localhost"
	DefaultPort             = "8080"
	DefaultMigrationSource  = "file://internal/database/migrations"
	DefaultQuestionnaireDir = "questionnaires"
	DefaultMaxUploadSize    = 5 << 20
	DefaultConfigPath       = "config.yaml"
)

var (
	ErrDatabaseURLRequired      = errors.New("database_url is required")
	ErrQuestionnaireDirRequired = errors.New("questionnaire_dir is required")
	ErrInvalidMaxUploadSize     = errors.New("max_upload_size must be positive")
)

type Config struct {
	Debug            bool     `yaml:"debug"`
	Host             string   `yaml:"host"`
	Port             string   `yaml:"port"`
	DatabaseURL      string   `yaml:"database_url"`
	MigrationSource  string   `yaml:"migration_source"`
	OtelCollectorUrl string   `yaml:"otel_collector_url"`
	AllowOrigins     []string `yaml:"allow_origins"`

	// QuestionnaireDir is the root scanned for questionnaire definition files.
	QuestionnaireDir string `yaml:"questionnaire_dir"`
	MaxUploadSize    int64  `yaml:"max_upload_size"`

	// LogFile enables a rotating file output next to stdout when set.
	LogFile           string `yaml:"log_file"`
	LogFileMaxSize    int    `yaml:"log_file_max_size"`
	LogFileMaxBackups int    `yaml:"log_file_max_backups"`
	LogFileMaxAge     int    `yaml:"log_file_max_age"`
}

func Default() Config {
	return Config{
		Host:              DefaultHost,
		Port:              DefaultPort,
		MigrationSource:   DefaultMigrationSource,
		AllowOrigins:      []string{"*"},
		QuestionnaireDir:  DefaultQuestionnaireDir,
		MaxUploadSize:     DefaultMaxUploadSize,
		LogFileMaxSize:    100,
		LogFileMaxBackups: 3,
		LogFileMaxAge:     28,
	}
}

func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrDatabaseURLRequired
	}
	if strings.TrimSpace(c.QuestionnaireDir) == "" {
		return ErrQuestionnaireDirRequired
	}
	if c.MaxUploadSize <= 0 {
		return ErrInvalidMaxUploadSize
	}
	return nil
}

// Load builds the configuration from, in increasing precedence, defaults,
// the yaml file named by CONFIG_PATH, a .env file, environment variables
// and command-line flags. Messages are buffered until a logger exists.
func Load() (Config, *LogBuffer) {
	return load(os.Args[1:])
}

func load(args []string) (Config, *LogBuffer) {
	cfg := Default()
	logBuf := NewLogBuffer()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultConfigPath
	}
	err := fromFile(&cfg, path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logBuf.Info("Config file not found, skipping", zap.String("path", path))
	case err != nil:
		logBuf.Warn("Failed to load config file", zap.String("path", path), zap.Error(err))
	default:
		logBuf.Info("Loaded config file", zap.String("path", path))
	}

	err = godotenv.Load()
	if err != nil {
		logBuf.Info(".env file not loaded", zap.Error(err))
	}

	for _, problem := range fromEnv(&cfg) {
		logBuf.Warn("Ignoring invalid environment variable", zap.String("detail", problem))
	}

	err = fromFlags(&cfg, args)
	if err != nil {
		logBuf.Warn("Failed to parse command-line flags", zap.Error(err))
	}

	return cfg, logBuf
}

func fromFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// fromEnv overlays set variables on cfg and returns a description of every
// value that could not be parsed.
func fromEnv(cfg *Config) []string {
	var problems []string

	if v, ok := lookup("DEBUG"); ok {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			problems = append(problems, fmt.Sprintf("DEBUG=%q", v))
		} else {
			cfg.Debug = parsed
		}
	}

	setString(&cfg.Host, "HOST")
	setString(&cfg.Port, "PORT")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.MigrationSource, "MIGRATION_SOURCE")
	setString(&cfg.OtelCollectorUrl, "OTEL_COLLECTOR_URL")
	setString(&cfg.QuestionnaireDir, "QUESTIONNAIRE_DIR")
	setString(&cfg.LogFile, "LOG_FILE")

	if v, ok := lookup("ALLOW_ORIGINS"); ok {
		cfg.AllowOrigins = parseList(v)
	}

	if v, ok := lookup("MAX_UPLOAD_SIZE"); ok {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			problems = append(problems, fmt.Sprintf("MAX_UPLOAD_SIZE=%q", v))
		} else {
			cfg.MaxUploadSize = parsed
		}
	}

	return problems
}

func fromFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("questionnaire-backend", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "listen host")
	fs.StringVar(&cfg.Port, "port", cfg.Port, "listen port")
	fs.StringVar(&cfg.DatabaseURL, "database_url", cfg.DatabaseURL, "postgres connection string")
	fs.StringVar(&cfg.QuestionnaireDir, "questionnaire_dir", cfg.QuestionnaireDir, "questionnaire definition root")
	fs.Int64Var(&cfg.MaxUploadSize, "max_upload_size", cfg.MaxUploadSize, "largest accepted upload in bytes")
	fs.StringVar(&cfg.LogFile, "log_file", cfg.LogFile, "rotating log file path")

	return fs.Parse(args)
}

func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}
	return values
}

type logEntry struct {
	level  zapcore.Level
	msg    string
	fields []zap.Field
}

// LogBuffer holds messages produced while loading configuration, before the
// application logger is built.
type LogBuffer struct {
	entries []logEntry
}

func NewLogBuffer() *LogBuffer {
	return &LogBuffer{}
}

func (b *LogBuffer) Info(msg string, fields ...zap.Field) {
	b.entries = append(b.entries, logEntry{level: zapcore.InfoLevel, msg: msg, fields: fields})
}

func (b *LogBuffer) Warn(msg string, fields ...zap.Field) {
	b.entries = append(b.entries, logEntry{level: zapcore.WarnLevel, msg: msg, fields: fields})
}

// FlushToZap writes every buffered message to logger and empties the buffer.
func (b *LogBuffer) FlushToZap(logger *zap.Logger) {
	for _, e := range b.entries {
		if ce := logger.Check(e.level, e.msg); ce != nil {
			ce.Write(e.fields...)
		}
	}
	b.entries = nil
}

func (b *LogBuffer) Len() int {
	return len(b.entries)
}
