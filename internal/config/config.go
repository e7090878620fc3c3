package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr string `mapstructure:"http_addr"`

	MySQLDSN string `mapstructure:"mysql_dsn"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPoolSize int    `mapstructure:"redis_pool_size"`

	StreamName   string `mapstructure:"stream_name"`
	GroupName    string `mapstructure:"group_name"`
	ConsumerName string `mapstructure:"consumer_name"`

	ShopCacheTTL    time.Duration `mapstructure:"shop_cache_ttl"`
	VoucherCacheTTL time.Duration `mapstructure:"voucher_cache_ttl"`
	NullTTL         time.Duration `mapstructure:"null_ttl"`
	RebuildWorkers  int           `mapstructure:"rebuild_workers"`

	CacheLockTTL time.Duration `mapstructure:"cache_lock_ttl"`
	OrderLockTTL time.Duration `mapstructure:"order_lock_ttl"`

	WorkerBlockTimeout time.Duration `mapstructure:"worker_block_timeout"`
}

// Load reads config.yaml from the working directory when present and lets
// VOUCHERHUB_* environment variables override any field.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("mysql_dsn", "root:root@tcp(localhost:3306)/voucherhub?parseTime=true")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_pool_size", 100)
	v.SetDefault("stream_name", "stream:orders")
	v.SetDefault("group_name", "order-workers")
	v.SetDefault("consumer_name", "consumer-1")
	v.SetDefault("shop_cache_ttl", 30*time.Minute)
	v.SetDefault("voucher_cache_ttl", 30*time.Second)
	v.SetDefault("null_ttl", 2*time.Minute)
	v.SetDefault("rebuild_workers", 10)
	v.SetDefault("cache_lock_ttl", 10*time.Second)
	v.SetDefault("order_lock_ttl", 30*time.Second)
	v.SetDefault("worker_block_timeout", 2*time.Second)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("VOUCHERHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
