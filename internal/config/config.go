package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig
	Mongo      MongoConfig
	JWT        JWTConfig
	Scheduling SchedulingConfig
	Notify     NotifyConfig
	Bootstrap  BootstrapConfig
	LogLevel   string
}

type AppConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

type SchedulingConfig struct {
	SlotInterval    time.Duration
	DefaultDuration int
}

type NotifyConfig struct {
	TextbeltKey string
	TextbeltURL string
}

// BootstrapConfig seeds the first admin account on startup when both fields
// are set and no account with that email exists.
type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("API_PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("MONGO_CONNECT_TIMEOUT", "10s")
	v.SetDefault("JWT_EXPIRY", "24h")
	v.SetDefault("SLOT_INTERVAL_MINUTES", 30)
	v.SetDefault("DEFAULT_DURATION_MINUTES", 30)
	v.SetDefault("TEXTBELT_URL", "https://textbelt.com/text")
	v.SetDefault("LOG_LEVEL", "info")
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	var origins []string
	for _, o := range strings.Split(v.GetString("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Port:           v.GetString("API_PORT"),
			Env:            v.GetString("APP_ENV"),
			AllowedOrigins: origins,
		},
		Mongo: MongoConfig{
			URI:            v.GetString("MONGO_URI"),
			Database:       v.GetString("MONGO_DATABASE"),
			ConnectTimeout: v.GetDuration("MONGO_CONNECT_TIMEOUT"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			Expiry: v.GetDuration("JWT_EXPIRY"),
		},
		Scheduling: SchedulingConfig{
			SlotInterval:    time.Duration(v.GetInt("SLOT_INTERVAL_MINUTES")) * time.Minute,
			DefaultDuration: v.GetInt("DEFAULT_DURATION_MINUTES"),
		},
		Notify: NotifyConfig{
			TextbeltKey: v.GetString("TEXTBELT_API_KEY"),
			TextbeltURL: v.GetString("TEXTBELT_URL"),
		},
		Bootstrap: BootstrapConfig{
			AdminEmail:    v.GetString("ADMIN_EMAIL"),
			AdminPassword: v.GetString("ADMIN_PASSWORD"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	var errs []error
	if c.Mongo.URI == "" {
		errs = append(errs, errors.New("MONGO_URI is required"))
	}
	if c.Mongo.Database == "" {
		errs = append(errs, errors.New("MONGO_DATABASE is required"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Scheduling.SlotInterval != 30*time.Minute && c.Scheduling.SlotInterval != 45*time.Minute {
		errs = append(errs, errors.New("SLOT_INTERVAL_MINUTES must be 30 or 45"))
	}
	if c.Scheduling.DefaultDuration <= 0 {
		errs = append(errs, errors.New("DEFAULT_DURATION_MINUTES must be positive"))
	}
	if (c.Bootstrap.AdminEmail == "") != (c.Bootstrap.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}
	return errors.Join(errs...)
}
