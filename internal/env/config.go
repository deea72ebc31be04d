package env

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/pior/beanstalk"
)

type Config struct {
	Addr        string        `env:"BEANSTALK_ADDR,default=127.0.0.1:11300"`
	DialTimeout time.Duration `env:"BEANSTALK_DIAL_TIMEOUT,default=5s"`
	Tube        string        `env:"BEANSTALK_TUBE,default=default"`
	Priority    uint32        `env:"BEANSTALK_PRIORITY,default=1000"`
	TTR         time.Duration `env:"BEANSTALK_TTR,default=60s"`
	LogLevel    string        `env:"BEANSTALK_LOG_LEVEL,default=info"`

	// Circuit breaker, disabled when BreakerTimeout is zero
	BreakerMaxRequests uint32        `env:"BEANSTALK_BREAKER_MAX_REQUESTS,default=1"`
	BreakerInterval    time.Duration `env:"BEANSTALK_BREAKER_INTERVAL,default=1m"`
	BreakerTimeout     time.Duration `env:"BEANSTALK_BREAKER_TIMEOUT"`

	MetricsAddr string `env:"BEANSTALK_METRICS_ADDR"`
}

// LoadConfig reads the configuration from the environment, after loading
// .env.local when present.
func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}

// ClientConfig converts the configuration for beanstalk.NewClient.
func (c *Config) ClientConfig() beanstalk.Config {
	config := beanstalk.DefaultConfig()
	config.Addr = c.Addr
	config.DialTimeout = c.DialTimeout
	config.Priority = c.Priority
	config.TTR = c.TTR

	if c.BreakerTimeout > 0 {
		config.NewCircuitBreaker = beanstalk.NewCircuitBreakerConfig(c.BreakerMaxRequests, c.BreakerInterval, c.BreakerTimeout)
	}

	return config
}
