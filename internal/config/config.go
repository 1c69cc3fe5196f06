package config

import (
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Redis       RedisConfig
	Bus         BusConfig
	Credentials CredentialsConfig
	Ops         OpsConfig
	JWT         JWTConfig
}

var (
	ConfigInstance *Config
	once           sync.Once
)

type ServerConfig struct {
	Host          string
	Port          string
	CertFile      string
	KeyFile       string
	WSAddr        string // optional WebSocket listener, empty disables
	GraceInterval time.Duration
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

type BusConfig struct {
	Backend      string // "redis" or "kafka"
	KafkaBrokers []string
}

type CredentialsConfig struct {
	Backend  string // "redis" or "mysql"
	MySQLDSN string
}

type OpsConfig struct {
	Addr string // empty disables the ops HTTP server
}

type JWTConfig struct {
	Secret         string
	ExpirationTime time.Duration
}

func LoadConfig() (*Config, error) {
	once.Do(func() {
		viper.SetDefault("RELAY_HOST", "0.0.0.0")
		viper.SetDefault("RELAY_PORT", "8000")
		viper.SetDefault("RELAY_CERT_FILE", "server.crt")
		viper.SetDefault("RELAY_KEY_FILE", "server.key")
		viper.SetDefault("RELAY_WS_ADDR", "")
		viper.SetDefault("RELAY_GRACE_INTERVAL", 500*time.Millisecond)
		viper.SetDefault("RELAY_OPS_ADDR", "")
		viper.SetDefault("RELAY_JWT_SECRET", "secret")
		viper.SetDefault("RELAY_JWT_EXPIRE", "24h")
		viper.SetDefault("REDIS_ADDR", "localhost:6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("REDIS_MAX_RETRIES", 3)
		viper.SetDefault("REDIS_POOL_SIZE", 100)
		viper.SetDefault("REDIS_MIN_IDLE_CONNS", 10)
		viper.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
		viper.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
		viper.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)
		viper.SetDefault("BUS_BACKEND", "redis")
		viper.SetDefault("KAFKA_BROKERS", []string{"localhost:9092"})
		viper.SetDefault("CREDS_BACKEND", "redis")
		viper.SetDefault("MYSQL_DSN", "")
		viper.AutomaticEnv()

		ConfigInstance = &Config{
			Server: ServerConfig{
				Host:          viper.GetString("RELAY_HOST"),
				Port:          viper.GetString("RELAY_PORT"),
				CertFile:      viper.GetString("RELAY_CERT_FILE"),
				KeyFile:       viper.GetString("RELAY_KEY_FILE"),
				WSAddr:        viper.GetString("RELAY_WS_ADDR"),
				GraceInterval: viper.GetDuration("RELAY_GRACE_INTERVAL"),
			},
			Redis: RedisConfig{
				Addr:         viper.GetString("REDIS_ADDR"),
				Password:     viper.GetString("REDIS_PASSWORD"),
				DB:           viper.GetInt("REDIS_DB"),
				MaxRetries:   viper.GetInt("REDIS_MAX_RETRIES"),
				DialTimeout:  viper.GetDuration("REDIS_DIAL_TIMEOUT"),
				ReadTimeout:  viper.GetDuration("REDIS_READ_TIMEOUT"),
				WriteTimeout: viper.GetDuration("REDIS_WRITE_TIMEOUT"),
				PoolSize:     viper.GetInt("REDIS_POOL_SIZE"),
				MinIdleConns: viper.GetInt("REDIS_MIN_IDLE_CONNS"),
			},
			Bus: BusConfig{
				Backend:      viper.GetString("BUS_BACKEND"),
				KafkaBrokers: viper.GetStringSlice("KAFKA_BROKERS"),
			},
			Credentials: CredentialsConfig{
				Backend:  viper.GetString("CREDS_BACKEND"),
				MySQLDSN: viper.GetString("MYSQL_DSN"),
			},
			Ops: OpsConfig{
				Addr: viper.GetString("RELAY_OPS_ADDR"),
			},
			JWT: JWTConfig{
				Secret:         viper.GetString("RELAY_JWT_SECRET"),
				ExpirationTime: viper.GetDuration("RELAY_JWT_EXPIRE"),
			},
		}
	})

	return ConfigInstance, nil
}

func (c *ServerConfig) ListenAddr() string {
	return c.Host + ":" + c.Port
}
