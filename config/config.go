package config

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type MQConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	// WorkerPort 后台进程的健康检查/指标端口
	WorkerPort string `yaml:"worker_port"`
}

// SMTPConfig 出站邮件中继配置；认证凭据按用户存储，不在这里
type SMTPConfig struct {
	Host      string `yaml:"host"` // host:port
	TLSVerify bool   `yaml:"tls_verify"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type JobsConfig struct {
	StallThresholdDays int `yaml:"stall_threshold_days"`
	ExpiryHorizonDays  int `yaml:"expiry_horizon_days"`
	ExpiryUrgentDays   int `yaml:"expiry_urgent_days"`
}

type Config struct {
	DB     DBConfig     `yaml:"db"`
	MQ     MQConfig     `yaml:"mq"`
	Redis  RedisConfig  `yaml:"redis"`
	JWT    JWTConfig    `yaml:"jwt"`
	Server ServerConfig `yaml:"server"`
	SMTP   SMTPConfig   `yaml:"smtp"`
	Jobs   JobsConfig   `yaml:"jobs"`
}

func Load() *Config {
	f, err := os.Open("config.yaml")
	if err != nil {
		log.Fatalf("failed to open config.yaml: %v", err)
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config.yaml: %v", err)
	}

	// 环境变量覆盖（生产环境使用）
	overrideFromEnv(&cfg)

	applyDefaults(&cfg)

	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Jobs.StallThresholdDays == 0 {
		cfg.Jobs.StallThresholdDays = 7
	}
	if cfg.Jobs.ExpiryHorizonDays == 0 {
		cfg.Jobs.ExpiryHorizonDays = 90
	}
	if cfg.Jobs.ExpiryUrgentDays == 0 {
		cfg.Jobs.ExpiryUrgentDays = 30
	}
	if cfg.SMTP.TimeoutMS == 0 {
		cfg.SMTP.TimeoutMS = 10000
	}
	if cfg.Server.WorkerPort == "" {
		cfg.Server.WorkerPort = ":9091"
	}
}

func overrideFromEnv(cfg *Config) {
	// DB配置
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DB.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.DB.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DB.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DB.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.DB.Name = name
	}

	// MQ配置
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.MQ.URL = url
	}

	// Redis配置
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	// JWT配置
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWT.Secret = secret
	}

	// Server配置
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Server.Port = port
	}
	if port := os.Getenv("WORKER_PORT"); port != "" {
		cfg.Server.WorkerPort = port
	}

	// SMTP配置
	if host := os.Getenv("SMTP_HOST"); host != "" {
		cfg.SMTP.Host = host
	}
}
