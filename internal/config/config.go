// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	OCR           OCRConfig           `mapstructure:"ocr"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Ingest        IngestConfig        `mapstructure:"ingest"`
	Query         QueryConfig         `mapstructure:"query"`
	Token         TokenConfig         `mapstructure:"token"`
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

// OCRConfig 存储 OCR 服务 (Tika 服务器) 相关的配置。
type OCRConfig struct {
	ServerURL string `mapstructure:"server_url"`
	Language  string `mapstructure:"language"`
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
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// IngestConfig 存储文档摄取相关的配置。
type IngestConfig struct {
	// MaxFileSize 单个上传文件的大小上限（字节）。
	MaxFileSize int64 `mapstructure:"max_file_size"`
	// ScannedTextThreshold PDF 页面原生提取文本少于该字符数时，
	// 判定为扫描页并改走 OCR。阈值是启发式的，误判只会多跑一次 OCR，不会丢内容。
	ScannedTextThreshold int `mapstructure:"scanned_text_threshold"`
}

// QueryConfig 存储查询流程相关的配置。
type QueryConfig struct {
	// SearchLimit 每次查询从向量索引召回的分块数量上限。
	SearchLimit int `mapstructure:"search_limit"`
	// HistorySize 在 Redis 中保留的最近查询条数。
	HistorySize int `mapstructure:"history_size"`
}

// TokenConfig 存储 WebSocket 会话令牌相关的配置。
type TokenConfig struct {
	Secret        string `mapstructure:"secret"`
	ExpireMinutes int    `mapstructure:"expire_minutes"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}

	applyDefaults()
}

// applyDefaults 为未配置的参数填入默认值。
func applyDefaults() {
	if Conf.Ingest.ScannedTextThreshold <= 0 {
		Conf.Ingest.ScannedTextThreshold = 50
	}
	if Conf.Ingest.MaxFileSize <= 0 {
		Conf.Ingest.MaxFileSize = 10 * 1024 * 1024
	}
	if Conf.Query.SearchLimit <= 0 {
		Conf.Query.SearchLimit = 50
	}
	if Conf.Query.HistorySize <= 0 {
		Conf.Query.HistorySize = 20
	}
	if Conf.Token.ExpireMinutes <= 0 {
		Conf.Token.ExpireMinutes = 30
	}
}
