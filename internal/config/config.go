// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	JWT            JWTConfig            `mapstructure:"jwt"`
	Log            LogConfig            `mapstructure:"log"`
	Kafka          KafkaConfig          `mapstructure:"kafka"`
	Elasticsearch  ElasticsearchConfig  `mapstructure:"elasticsearch"`
	MinIO          MinIOConfig          `mapstructure:"minio"`
	Catalog        CatalogConfig        `mapstructure:"catalog"`
	LLM            LLMConfig            `mapstructure:"llm"`
	Onboarding     OnboardingConfig     `mapstructure:"onboarding"`
	Recommendation RecommendationConfig `mapstructure:"recommendation"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
// 令牌由外部认证服务签发，本服务只负责验证。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	CatalogObject   string `mapstructure:"catalog_object"`
}

// CatalogConfig 存储产品目录加载相关的配置。
type CatalogConfig struct {
	LocalPath string `mapstructure:"local_path"`
}

// LLMConfig 存储语言模型编排层（Provider Gateway）相关的配置。
type LLMConfig struct {
	AttemptTimeoutSeconds int                 `mapstructure:"attempt_timeout_seconds"`
	OverallTimeoutSeconds int                 `mapstructure:"overall_timeout_seconds"`
	FailureThreshold      int                 `mapstructure:"failure_threshold"`
	CooldownSeconds       int                 `mapstructure:"cooldown_seconds"`
	MockEnabled           bool                `mapstructure:"mock_enabled"`
	Gemini                ProviderConfig      `mapstructure:"gemini"`
	Mistral               ProviderConfig      `mapstructure:"mistral"`
	OpenAI                ProviderConfig      `mapstructure:"openai"`
	Generation            LLMGenerationConfig `mapstructure:"generation"`
}

// ProviderConfig 存储单个文本生成服务的凭证与端点。
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// OnboardingConfig 存储引导对话相关的配置。
type OnboardingConfig struct {
	RequiredTurns   int `mapstructure:"required_turns"`
	SessionTTLHours int `mapstructure:"session_ttl_hours"`
}

// RecommendationConfig 存储推荐引擎相关的配置。
type RecommendationConfig struct {
	TopK                  int     `mapstructure:"top_k"`
	HighPriorityThreshold float64 `mapstructure:"high_priority_threshold"`
	FeedbackPenalty       float64 `mapstructure:"feedback_penalty"`
	AuditRetentionDays    int     `mapstructure:"audit_retention_days"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
// 各 provider 的 API Key 允许通过环境变量覆盖，避免把凭证写进配置文件。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}

	// 环境变量覆盖凭证
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		Conf.LLM.Gemini.APIKey = v
	}
	if v := os.Getenv("MISTRAL_API_KEY"); v != "" {
		Conf.LLM.Mistral.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		Conf.LLM.OpenAI.APIKey = v
	}

	applyDefaults(&Conf)
}

// applyDefaults 为未显式配置的关键参数补充缺省值。
func applyDefaults(c *Config) {
	if c.Onboarding.RequiredTurns <= 0 {
		c.Onboarding.RequiredTurns = 4
	}
	if c.Onboarding.SessionTTLHours <= 0 {
		c.Onboarding.SessionTTLHours = 72
	}
	if c.LLM.AttemptTimeoutSeconds <= 0 {
		c.LLM.AttemptTimeoutSeconds = 30
	}
	if c.LLM.OverallTimeoutSeconds <= 0 {
		c.LLM.OverallTimeoutSeconds = 90
	}
	if c.LLM.FailureThreshold <= 0 {
		c.LLM.FailureThreshold = 3
	}
	if c.LLM.CooldownSeconds <= 0 {
		c.LLM.CooldownSeconds = 60
	}
	if c.Recommendation.TopK <= 0 {
		c.Recommendation.TopK = 3
	}
	if c.Recommendation.HighPriorityThreshold <= 0 {
		c.Recommendation.HighPriorityThreshold = 0.75
	}
	if c.Recommendation.FeedbackPenalty <= 0 || c.Recommendation.FeedbackPenalty >= 1 {
		c.Recommendation.FeedbackPenalty = 0.5
	}
	if c.Recommendation.AuditRetentionDays <= 0 {
		c.Recommendation.AuditRetentionDays = 90
	}
}

// Validate 检查配置是否允许服务启动。
// 未配置任何 provider 且兜底 mock 被禁用时，服务无法给出任何回答，必须拒绝启动。
func Validate(c *Config) error {
	if c.LLM.Gemini.APIKey == "" && c.LLM.Mistral.APIKey == "" && c.LLM.OpenAI.APIKey == "" && !c.LLM.MockEnabled {
		return errors.New("未配置任何文本生成 provider 且 mock 兜底被禁用")
	}
	if c.Database.MySQL.DSN == "" {
		return errors.New("缺少 MySQL DSN 配置")
	}
	return nil
}
