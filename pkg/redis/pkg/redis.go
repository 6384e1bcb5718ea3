package redis

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	redistrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/redis/go-redis.v9"
)

// Config carries the redis client settings. Timeouts and backoffs are in
// milliseconds.
type Config struct {
	Address         string
	Username        string
	Password        string
	DB              int32
	Namespace       string
	Debug           bool
	MaxRetries      int32
	MinRetryBackoff int32
	MaxRetryBackoff int32
	DialTimeout     int32
	ReadTimeout     int32
	WriteTimeout    int32
	PoolSize        int32
	PoolTimeout     int32
	MinIdleConns    int32
}

func ReadConfig() *Config {
	viper.BindEnv("redis.address", "REDIS_ADDRESS")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	return &Config{
		Address:      viper.GetString("redis.address"),
		Username:     viper.GetString("redis.username"),
		Password:     viper.GetString("redis.password"),
		DB:           viper.GetInt32("redis.db"),
		Namespace:    viper.GetString("redis.namespace"),
		Debug:        viper.GetBool("redis.debug"),
		MaxRetries:   viper.GetInt32("redis.max_retries"),
		DialTimeout:  viper.GetInt32("redis.dial_timeout"),
		ReadTimeout:  viper.GetInt32("redis.read_timeout"),
		WriteTimeout: viper.GetInt32("redis.write_timeout"),
		PoolSize:     viper.GetInt32("redis.pool_size"),
		MinIdleConns: viper.GetInt32("redis.min_idle_conns"),
	}
}

func New(config *Config, opts ...Option) (*redis.Client, error) {
	o := &Opt{
		Options: &redis.Options{
			Addr: config.Address,
		},
	}
	if len(config.Username) > 0 {
		o.Username = config.Username
	}
	if len(config.Password) > 0 {
		o.Password = config.Password
	}
	if config.DB > 0 {
		o.DB = int(config.DB)
	}
	if config.MaxRetries != 0 {
		o.MaxRetries = int(config.MaxRetries)
	}
	if config.MinRetryBackoff != 0 {
		o.MinRetryBackoff = time.Duration(config.MinRetryBackoff) * time.Millisecond
	}
	if config.MaxRetryBackoff != 0 {
		o.MaxRetryBackoff = time.Duration(config.MaxRetryBackoff) * time.Millisecond
	}
	if config.DialTimeout != 0 {
		o.DialTimeout = time.Duration(config.DialTimeout) * time.Millisecond
	}
	if config.ReadTimeout != 0 {
		o.ReadTimeout = time.Duration(config.ReadTimeout) * time.Millisecond
	}
	if config.WriteTimeout != 0 {
		o.WriteTimeout = time.Duration(config.WriteTimeout) * time.Millisecond
	}
	if config.PoolSize != 0 {
		o.PoolSize = int(config.PoolSize)
	}
	if config.PoolTimeout != 0 {
		o.PoolTimeout = time.Duration(config.PoolTimeout) * time.Millisecond
	}
	if config.MinIdleConns != 0 {
		o.MinIdleConns = int(config.MinIdleConns)
	}

	for _, o0 := range opts {
		o0.Apply(o)
	}

	client := redis.NewClient(o.Options)
	client.AddHook(&debugHook{config.Debug})

	redistrace.WrapClient(client, redistrace.WithServiceName("redis"))
	return client, client.Ping(context.Background()).Err()
}

type Opt struct {
	*redis.Options
}

type Option interface {
	Apply(o *Opt)
}

type OptionFunc func(*Opt)

func (f OptionFunc) Apply(o *Opt) {
	f(o)
}

// Limiter interface used to implemented circuit breaker or rate limiter.
func Limiter(limiter redis.Limiter) Option {
	return OptionFunc(func(o *Opt) {
		o.Limiter = limiter
	})
}
