package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env:"LISTEN_BIND_IP" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env:"PORT" env-default:"5000"`
}

type Mongo struct {
	Enabled  bool   `yaml:"enabled" env:"MONGO_ENABLED" env-default:"true"`
	Host     string `yaml:"host" env:"MONGO_HOST" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"MONGO_PORT" env-default:"27017"`
	User     string `yaml:"user" env:"MONGO_USER" env-default:""`
	Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:""`
	Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"qrattend"`
	// Uri takes precedence over host and port when set
	Uri string `yaml:"uri" env:"MONGO_URI" env-default:""`
}

type Auth struct {
	JWTSecret  string        `yaml:"jwt_secret" env:"JWT_SECRET" env-default:""`
	TokenTTL   time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"168h"`
	BcryptCost int           `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"10"`
}

type Geo struct {
	Enabled   bool          `yaml:"enabled" env:"GEO_ENABLED" env-default:"true"`
	LookupURL string        `yaml:"lookup_url" env:"GEO_LOOKUP_URL" env-default:"http://ip-api.com/json/"`
	Timeout   time.Duration `yaml:"timeout" env:"GEO_TIMEOUT" env-default:"3s"`
}

type Cors struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
}

type Telegram struct {
	Enabled  bool   `yaml:"enabled" env:"TELEGRAM_ENABLED" env-default:"false"`
	APIKey   string `yaml:"api_key" env:"TELEGRAM_API_KEY" env-default:""`
	ChatId   int64  `yaml:"chat_id" env:"TELEGRAM_CHAT_ID" env-default:"0"`
	MinLevel string `yaml:"min_level" env:"TELEGRAM_MIN_LEVEL" env-default:"error"`
}

type Config struct {
	Env        string   `yaml:"env" env:"ENV" env-default:"local"`
	TrustProxy bool     `yaml:"trust_proxy" env:"TRUST_PROXY" env-default:"true"`
	Listen     Listen   `yaml:"listen"`
	Mongo      Mongo    `yaml:"mongo"`
	Auth       Auth     `yaml:"auth"`
	Geo        Geo      `yaml:"geo"`
	Cors       Cors     `yaml:"cors"`
	Telegram   Telegram `yaml:"telegram"`
}

var instance *Config
var once sync.Once

// Load reads the YAML file at path with environment overrides and checks
// the values the service cannot start without.
func Load(path string) (*Config, error) {
	conf := &Config{}
	if err := cleanenv.ReadConfig(path, conf); err != nil {
		desc, _ := cleanenv.GetDescription(conf, nil)
		return nil, fmt.Errorf("config: %s; %s", err, desc)
	}
	if err := conf.check(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return conf, nil
}

func MustLoad(path string) *Config {
	once.Do(func() {
		var err error
		instance, err = Load(path)
		if err != nil {
			log.Fatal(err)
		}
	})
	return instance
}

func (c *Config) check() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret (JWT_SECRET) is required")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost must be within 4..31, got %d", c.Auth.BcryptCost)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.Telegram.Enabled && (c.Telegram.APIKey == "" || c.Telegram.ChatId == 0) {
		return fmt.Errorf("telegram.api_key and telegram.chat_id are required when telegram is enabled")
	}
	return nil
}
