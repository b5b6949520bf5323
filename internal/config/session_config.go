package config

import "time"

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

type SessionConfig interface {
	GetSessionStore() string
	GetSessionSecret() string
	GetMaxSessionAge() time.Duration
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisKeyPrefix() string
}

type Session struct {
	Store         string        `env:"SESSION_STORE" envDefault:"memory"`
	Secret        string        `env:"SESSION_SECRET"`
	MaxAge        time.Duration `env:"SESSION_MAX_AGE" envDefault:"24h"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string        `env:"REDIS_KEY_PREFIX" envDefault:"oauthproxy:"`
}

var _ SessionConfig = Session{}

func (s Session) GetSessionStore() string {
	return s.Store
}

// GetSessionSecret signs the session cookie. An empty secret makes the server generate a
// random one at startup, which logs everybody out on restart.
func (s Session) GetSessionSecret() string {
	return s.Secret
}

func (s Session) GetMaxSessionAge() time.Duration {
	return s.MaxAge
}

func (s Session) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Session) GetRedisPassword() string {
	return s.RedisPassword
}

func (s Session) GetRedisDB() int {
	return s.RedisDB
}

func (s Session) GetRedisKeyPrefix() string {
	return s.RedisPrefix
}
