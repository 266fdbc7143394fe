// Package config resolves service settings from an optional .env file,
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	engine "github.com/jason-s-yu/burgerlab/engine"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Keys understood by Load. Each is also read from the environment.
const (
	KeyHTTPAddr          = "HTTP_ADDR"
	KeyArtifactDir       = "ARTIFACT_DIR"
	KeyDatabaseURL       = "DATABASE_URL"
	KeyRedisAddr         = "REDIS_ADDR"
	KeyJWTSecret         = "JWT_SECRET"
	KeyAdminPasswordHash = "ADMIN_PASSWORD_HASH"
	KeyAdviserMode       = "ADVISER_MODE"
	KeyTickInterval      = "TICK_INTERVAL"
	KeyAnimDuration      = "ANIM_DURATION"
	KeyFadeDuration      = "FADE_DURATION"
	KeySessionDuration   = "SESSION_DURATION"
	KeyLogLevel          = "LOG_LEVEL"
	KeyLogFormat         = "LOG_FORMAT"
)

// Config is the resolved service configuration.
type Config struct {
	HTTPAddr          string
	ArtifactDir       string
	DatabaseURL       string // empty disables persistence
	RedisAddr         string // empty disables participant-id reservation
	JWTSecret         string
	AdminPasswordHash string // bcrypt; empty disables the results export
	TickInterval      time.Duration
	Rules             engine.StudyRules
	LogLevel          string
	LogFormat         string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	rules := engine.DefaultStudyRules()
	v.SetDefault(KeyHTTPAddr, ":8080")
	v.SetDefault(KeyArtifactDir, "artifacts")
	v.SetDefault(KeyAdviserMode, rules.Mode.String())
	v.SetDefault(KeyTickInterval, "16ms")
	v.SetDefault(KeyAnimDuration, rules.AnimationDuration.String())
	v.SetDefault(KeyFadeDuration, rules.FadeDuration.String())
	v.SetDefault(KeySessionDuration, rules.SessionDuration.String())
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
}

// LoadDotEnv loads a .env file into the process environment. A missing file
// is not an error.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads every key from v and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	mode, err := engine.ParseAdviserMode(v.GetString(KeyAdviserMode))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", KeyAdviserMode, err)
	}
	c := &Config{
		HTTPAddr:          v.GetString(KeyHTTPAddr),
		ArtifactDir:       v.GetString(KeyArtifactDir),
		DatabaseURL:       v.GetString(KeyDatabaseURL),
		RedisAddr:         v.GetString(KeyRedisAddr),
		JWTSecret:         v.GetString(KeyJWTSecret),
		AdminPasswordHash: v.GetString(KeyAdminPasswordHash),
		TickInterval:      v.GetDuration(KeyTickInterval),
		LogLevel:          v.GetString(KeyLogLevel),
		LogFormat:         v.GetString(KeyLogFormat),
		Rules: engine.StudyRules{
			Mode:              mode,
			AnimationDuration: v.GetDuration(KeyAnimDuration),
			FadeDuration:      v.GetDuration(KeyFadeDuration),
			SessionDuration:   v.GetDuration(KeySessionDuration),
		},
	}
	if c.TickInterval <= 0 {
		return nil, fmt.Errorf("config %s: must be positive, got %q", KeyTickInterval, v.GetString(KeyTickInterval))
	}
	if err := c.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// New builds a viper instance with defaults and environment lookup enabled.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// SetupLogging configures the standard logrus logger.
func (c *Config) SetupLogging() error {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("config %s: %w", KeyLogLevel, err)
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)
	switch strings.ToLower(c.LogFormat) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("config %s: unknown format %q", KeyLogFormat, c.LogFormat)
	}
	return nil
}
