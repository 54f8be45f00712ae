package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Admin    AdminConfig
	DNS      DNSConfig
	Sweep    SweepConfig
	Mimir    MimirConfig
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MaxIdleConns   int
	AutoMigrate    bool
}

type RedisConfig struct {
	URL        string
	ResolveTTL time.Duration
}

type AdminConfig struct {
	Secret string
}

type DNSConfig struct {
	Servers []string
	Timeout time.Duration
	// Targets is the allow-list of CNAME targets a custom domain may point at.
	Targets []string
}

type SweepConfig struct {
	Interval         time.Duration
	Concurrency      int
	QueriesPerSecond float64
}

type MimirConfig struct {
	URL           string
	TenantID      string
	TenantHeader  string
	BatchSize     int
	FlushInterval time.Duration
	AuthToken     string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("DOMAINS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.maxconnections", 25)
	v.SetDefault("database.maxidleconns", 5)
	v.SetDefault("database.automigrate", true)
	v.SetDefault("redis.resolvettl", "5m")
	v.SetDefault("dns.servers", []string{"8.8.8.8:53", "1.1.1.1:53"})
	v.SetDefault("dns.timeout", "5s")
	v.SetDefault("dns.targets", []string{"cname.vercel-dns.com"})
	v.SetDefault("sweep.interval", "1h")
	v.SetDefault("sweep.concurrency", 8)
	v.SetDefault("sweep.queriespersecond", 20)
	v.SetDefault("mimir.tenantheader", "X-Scope-OrgID")
	v.SetDefault("mimir.batchsize", 1000)
	v.SetDefault("mimir.flushinterval", "15s")

	// Unmarshal only sees env values for keys viper already knows about.
	for _, key := range []string{"database.url", "redis.url", "admin.secret", "mimir.url", "mimir.tenantid", "mimir.authtoken"} {
		v.SetDefault(key, "")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Override with environment variables
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.Redis.URL = url
	}
	if key := os.Getenv("ADMIN_KEY"); key != "" {
		cfg.Admin.Secret = key
	}
	if url := os.Getenv("MIMIR_URL"); url != "" {
		cfg.Mimir.URL = url
	}
	if token := os.Getenv("MIMIR_AUTH_TOKEN"); token != "" {
		cfg.Mimir.AuthToken = token
	}
	if targets := os.Getenv("CNAME_TARGETS"); targets != "" {
		cfg.DNS.Targets = splitList(targets)
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}

	if len(cfg.DNS.Targets) == 0 {
		return nil, errors.New("dns.targets must list at least one CNAME target")
	}
	if cfg.Sweep.Interval <= 0 {
		return nil, fmt.Errorf("sweep.interval must be positive, got %s", cfg.Sweep.Interval)
	}

	return &cfg, nil
}

// ValidateSweeper rejects configurations the sweeper binary cannot run
// with. Without a database it would sweep a private, always empty store.
func (c *Config) ValidateSweeper() error {
	if c.Database.URL == "" {
		return errors.New("the sweeper needs database.url (DATABASE_URL) to see registered domains")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
