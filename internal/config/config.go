package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort        string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL     string `env:"DATABASE_URL"`
	RedisAddr       string `env:"REDIS_ADDR"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	RedisDB         int    `env:"REDIS_DB" envDefault:"0"`
	QueryServiceURL string `env:"QUERY_SERVICE_URL" envDefault:"http://localhost:8001"`
	InternalSecret  string `env:"INTERNAL_SECRET"`
	JWTSecret       string `env:"JWT_SECRET"`

	// Políticas de gobernanza. Son configuración, no constantes del diseño.
	RateLimitMax             int `env:"RATE_LIMIT_MAX" envDefault:"50"`
	RateLimitWindowMinutes   int `env:"RATE_LIMIT_WINDOW_MINUTES" envDefault:"60"`
	PresenceTTLSeconds       int `env:"PRESENCE_TTL_SECONDS" envDefault:"30"`
	HeartbeatIntervalSeconds int `env:"HEARTBEAT_INTERVAL_SECONDS" envDefault:"20"`

	// Cliente de chat.
	APIBaseURL    string `env:"API_BASE_URL" envDefault:"http://localhost:8080/api/v1"`
	APIKey        string `env:"NEXUS_API_KEY"`
	TeamID        string `env:"NEXUS_TEAM_ID" envDefault:"default"`
	ChatCachePath string `env:"CHAT_CACHE_PATH" envDefault:".nexus_sessions.json"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RateLimitWindow devuelve la ventana de rate limiting como duración.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowMinutes) * time.Minute
}

// PresenceTTL devuelve la ventana de frescura de presencia como duración.
func (c *Config) PresenceTTL() time.Duration {
	return time.Duration(c.PresenceTTLSeconds) * time.Second
}

// HeartbeatInterval devuelve el intervalo de heartbeat como duración.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSeconds) * time.Second
}
