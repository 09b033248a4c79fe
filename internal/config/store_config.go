package config

import "time"

const (
	StoreDriverMemory   = "memory"
	StoreDriverRedis    = "redis"
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
)

type StoreConfig interface {
	GetStoreDriver() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisPrefix() string
	GetRevocationTTL() time.Duration
	GetSQLitePath() string
	GetDatabaseURL() string
}

// Store selects the revocation flag backend.
type Store struct {
	Driver        string        `env:"STORE_DRIVER"   envDefault:"memory"`
	RedisAddr     string        `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB"       envDefault:"0"`
	RedisPrefix   string        `env:"REDIS_PREFIX"   envDefault:"revoked:"`
	RevokedTTL    time.Duration `env:"REVOCATION_TTL" envDefault:"720h"`
	SQLitePath    string        `env:"SQLITE_PATH"    envDefault:"./data/revocations.db"`
	DatabaseURL   string        `env:"DATABASE_URL"`
}

func (s Store) GetStoreDriver() string {
	return s.Driver
}

func (s Store) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Store) GetRedisPassword() string {
	return s.RedisPassword
}

func (s Store) GetRedisDB() int {
	return s.RedisDB
}

func (s Store) GetRedisPrefix() string {
	return s.RedisPrefix
}

// GetRevocationTTL bounds how long an unobserved flag is kept. It matches the refresh cookie lifetime by default.
func (s Store) GetRevocationTTL() time.Duration {
	return s.RevokedTTL
}

func (s Store) GetSQLitePath() string {
	return s.SQLitePath
}

func (s Store) GetDatabaseURL() string {
	return s.DatabaseURL
}
