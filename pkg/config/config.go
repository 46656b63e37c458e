package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/vault-client-go"
	"github.com/spf13/viper"
	_ "github.com/spf13/viper/remote"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	configHolder atomic.Value
	backend      = "consul"
	backendAddr  = "127.0.0.1:8500"
	backendPath  = "mission-control/development"
	configType   = "yaml"
)

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Otel struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"OTEL"`
	Pyroscope struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"PYROSCOPE"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Cors struct {
		AllowOrigin string `mapstructure:"ALLOW_ORIGIN"`
	} `mapstructure:"CORS"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Path           string `mapstructure:"PATH"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		Metrics        bool   `mapstructure:"METRICS"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Embedding struct {
		APIKey     string `mapstructure:"API_KEY"`
		BaseURL    string `mapstructure:"BASE_URL"`
		Model      string `mapstructure:"MODEL"`
	} `mapstructure:"EMBEDDING"`
	Search struct {
		VectorWeight float64 `mapstructure:"VECTOR_WEIGHT"`
		DefaultLimit int     `mapstructure:"DEFAULT_LIMIT"`
	} `mapstructure:"SEARCH"`
	Cache struct {
		AgentTTL time.Duration `mapstructure:"AGENT_TTL"`
	} `mapstructure:"CACHE"`
	Snowflake struct {
		Node int64 `mapstructure:"NODE"`
	} `mapstructure:"SNOWFLAKE"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

var Module = fx.Module("config", fx.Provide(LoadConfig))
var RemoteModule = fx.Module("remote.config", fx.Provide(LoadRemote))

// Select picks RemoteModule when REMOTE_CONFIG_PROVIDER is set.
func Select() fx.Option {
	if os.Getenv("REMOTE_CONFIG_PROVIDER") != "" {
		return RemoteModule
	}
	return Module
}

type Params struct {
	fx.In
	Vault *vault.Client `optional:"true"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "mission-control")
	v.SetDefault("APP_VERSION", "dev")
	v.SetDefault("TLS.ENABLE", false)
	v.SetDefault("TLS.CERT_PATH", "")
	v.SetDefault("TLS.KEY_PATH", "")
	v.SetDefault("OTEL.ADDR", "")
	v.SetDefault("PYROSCOPE.ADDR", "")
	v.SetDefault("HTTP_SERVER.ADDR", ":8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("CORS.ALLOW_ORIGIN", "*")
	v.SetDefault("DATABASE.TYPE", "sqlite")
	v.SetDefault("DATABASE.PATH", "mission-control.db")
	v.SetDefault("DATABASE.HOST", "127.0.0.1")
	v.SetDefault("DATABASE.PORT", "5432")
	v.SetDefault("DATABASE.DBNAME", "mission_control")
	v.SetDefault("DATABASE.USER", "")
	v.SetDefault("DATABASE.PASSWORD", "")
	v.SetDefault("DATABASE.SSLMODE", "disable")
	v.SetDefault("DATABASE.TIMEZONE", "UTC")
	v.SetDefault("DATABASE.METRICS", false)
	v.SetDefault("DATABASE.CONNECTION_POOL.MAX_IDLE_CONN", 5)
	v.SetDefault("DATABASE.CONNECTION_POOL.MAX_OPEN_CONNS", 20)
	v.SetDefault("DATABASE.CONNECTION_POOL.CONN_MAX_LIFETIME", time.Hour)
	v.SetDefault("DATABASE.CONNECTION_POOL.CONN_MAX_IDLE_TIME", 10*time.Minute)
	v.SetDefault("REDIS.ADDR", "")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)
	v.SetDefault("REDIS.POOL_SIZE", 10)
	v.SetDefault("REDIS.POOL_TIMEOUT", 5*time.Second)
	v.SetDefault("EMBEDDING.API_KEY", "")
	v.SetDefault("EMBEDDING.BASE_URL", "")
	v.SetDefault("EMBEDDING.MODEL", "text-embedding-3-small")
	v.SetDefault("SEARCH.VECTOR_WEIGHT", 0.7)
	v.SetDefault("SEARCH.DEFAULT_LIMIT", 10)
	v.SetDefault("CACHE.AGENT_TTL", 5*time.Minute)
	v.SetDefault("SNOWFLAKE.NODE", 1)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The embedding credential is commonly exported under its vendor name.
	_ = v.BindEnv("EMBEDDING.API_KEY", "EMBEDDING_API_KEY", "OPENAI_API_KEY")
	return v
}

// Load reads config.yaml from the working directory (if any) and overlays
// environment variables.
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType(configType)
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func LoadConfig(p Params) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if p.Vault != nil {
		if err := applySecrets(context.Background(), p.Vault, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func applySecrets(ctx context.Context, client *vault.Client, cfg *Config) error {
	zap.L().Info("Starting Get Secrets", zap.String("path", cfg.AppEnv))
	secret, err := client.Secrets.KvV2Read(ctx, cfg.AppEnv, vault.WithMountPath("secret"))
	if err != nil {
		zap.L().Error("failed get secret from vault", zap.Error(err))
		return fmt.Errorf("vault read %s: %w", cfg.AppEnv, err)
	}
	zap.L().Info("Success Get Secret")

	get := func(key, fallback string) string {
		if val, ok := secret.Data.Data[key].(string); ok && val != "" {
			return val
		}
		return fallback
	}

	cfg.Database.User = get("database_user", cfg.Database.User)
	cfg.Database.Password = get("database_password", cfg.Database.Password)
	cfg.Redis.Password = get("redis_password", cfg.Redis.Password)
	cfg.Embedding.APIKey = get("embedding_api_key", cfg.Embedding.APIKey)
	return nil
}

// Current returns the most recent config loaded through LoadRemote.
func Current() *Config {
	if cfg, ok := configHolder.Load().(*Config); ok {
		return cfg
	}
	return nil
}

func LoadRemote(lc fx.Lifecycle, p Params) (*Config, error) {
	if v, ok := os.LookupEnv("REMOTE_CONFIG_PROVIDER"); ok {
		backend = v
	}

	if v, ok := os.LookupEnv("REMOTE_CONFIG_ADDR"); ok {
		backendAddr = v
	}

	if v, ok := os.LookupEnv("REMOTE_CONFIG_PATH"); ok {
		backendPath = v
	}

	v := newViper()
	v.SetConfigType(configType)
	if err := v.AddRemoteProvider(backend, backendAddr, backendPath); err != nil {
		return nil, fmt.Errorf("add remote provider: %w", err)
	}

	if err := v.ReadRemoteConfig(); err != nil {
		return nil, fmt.Errorf("read remote config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal remote config: %w", err)
	}

	if p.Vault != nil {
		if err := applySecrets(context.Background(), p.Vault, &cfg); err != nil {
			return nil, err
		}
	}
	configHolder.Store(&cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			if err := v.WatchRemoteConfig(); err != nil {
				zap.L().Error("unable to read remote config", zap.Error(err))
				continue
			}

			var next Config
			if err := v.Unmarshal(&next); err != nil {
				zap.L().Error("unable to unmarshal remote config", zap.Error(err))
				continue
			}
			// secrets are not part of the remote document
			next.Database.User = cfg.Database.User
			next.Database.Password = cfg.Database.Password
			next.Redis.Password = cfg.Redis.Password
			next.Embedding.APIKey = cfg.Embedding.APIKey
			configHolder.Store(&next)
		}
	}()

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})

	return &cfg, nil
}
