package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// DefaultContainerMap 与 TEI 部署脚本中的端口约定保持一致
const DefaultContainerMap = "8080=tei-bge-reranker-v2-m3,8081=tei-bge-reranker-base,8082=tei-jina-reranker-v2"

type Config struct {
	AdminUsername      string  `env:"ADMIN_USERNAME, default=admin"`
	AdminPassword      string  `env:"ADMIN_PASSWORD, default=admin123"`
	ServerPort         string  `env:"SERVER_PORT, default=16823"`
	DBPath             string  `env:"DB_PATH, default=./data/data.db"`
	JWTSecret          string  `env:"JWT_SECRET, default=tokenizer-manager-default-secret-change-in-production"`
	JWTIssuer          string  `env:"JWT_ISSUER, default=tokenizer-manager"`
	JWTAudience        string  `env:"JWT_AUDIENCE, default=tokenizer-manager-admin"`
	EncryptionKey      string  `env:"ENCRYPTION_KEY"`
	CORSAllowedOrigins string  `env:"CORS_ALLOWED_ORIGINS, default=*"`
	RateLimitAuthRPS   float64 `env:"RATE_LIMIT_AUTH_RPS, default=5"`
	LogLevel           string  `env:"LOG_LEVEL, default=info"`

	Tokenizer TokenizerConfig
}

type TokenizerConfig struct {
	CacheDir          string        `env:"TOKENIZER_CACHE_DIR, default=/data/cache"`
	ManagerScript     string        `env:"TOKENIZER_MANAGER_SCRIPT, default=/usr/local/bin/tokenizer_manager.py"`
	ContainerMap      string        `env:"TOKENIZER_CONTAINER_MAP"`
	DefaultContainer  string        `env:"TOKENIZER_DEFAULT_CONTAINER, default=tei-reranker"`
	ExecTimeout       time.Duration `env:"TOKENIZER_EXEC_TIMEOUT, default=5m"`
	VerifyConcurrency int           `env:"TOKENIZER_VERIFY_CONCURRENCY, default=4"`
	ProbeTimeout      time.Duration `env:"TOKENIZER_PROBE_TIMEOUT, default=3s"`
	DockerBin         string        `env:"DOCKER_BIN, default=docker"`
}

var cfg *Config

// Load 从进程环境读取配置并保存为全局配置
func Load() (*Config, error) {
	c, err := LoadWith(context.Background(), envconfig.OsLookuper())
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

// LoadWith 使用指定的 Lookuper 解析配置，不修改全局配置
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	c := &Config{}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   c,
		Lookuper: lookuper,
	}); err != nil {
		return nil, err
	}

	if c.Tokenizer.ContainerMap == "" {
		c.Tokenizer.ContainerMap = DefaultContainerMap
	}
	if c.Tokenizer.VerifyConcurrency < 1 {
		c.Tokenizer.VerifyConcurrency = 1
	}
	return c, nil
}

func Get() *Config {
	return cfg
}

// Set 替换全局配置，主要用于测试
func Set(c *Config) {
	cfg = c
}
