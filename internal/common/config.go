package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Extraction ExtractionConfig
	LLM        LLMConfig
	Database   DatabaseConfig
	Log        LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr string
	GRPCAddr string
}

// ExtractionConfig holds the cascade knobs.
type ExtractionConfig struct {
	MinTextLength   int
	MaxTextLength   int
	GenericMinPrice float64
	ChunkSize       int
	Concurrency     int
	ChunkTimeout    time.Duration
	RatePerSecond   float64
	RateBurst       int
	FreeProducts    int
	CostPerProduct  float64
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
	Lenient     bool
}

// DatabaseConfig holds run log storage configuration. An empty DSN disables the run log.
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string
	Format string
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr: ":8080",
			GRPCAddr: ":9090",
		},
		Extraction: ExtractionConfig{
			MinTextLength:   50,
			MaxTextLength:   2_000_000,
			GenericMinPrice: 100,
			ChunkSize:       12_000,
			Concurrency:     3,
			ChunkTimeout:    60 * time.Second,
			RatePerSecond:   2,
			RateBurst:       3,
			FreeProducts:    25,
			CostPerProduct:  0.005,
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			BaseURL:     "https://api.openai.com/v1",
			Temperature: 0,
			Timeout:     45 * time.Second,
			Lenient:     true,
		},
		Database: DatabaseConfig{
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg
}

// LoadConfigFile overlays a YAML or TOML file on the defaults, then the environment.
// Environment values win over the file.
func LoadConfigFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError(CodeConfig, "read config file", err)
		}
		var fc fileConfig
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(raw, &fc)
		case ".toml":
			err = toml.Unmarshal(raw, &fc)
		default:
			return nil, NewAppError(CodeConfig, fmt.Sprintf("unsupported config extension %q", ext), ErrInvalidInput)
		}
		if err != nil {
			return nil, NewAppError(CodeConfig, "decode config file", err)
		}
		if err := fc.apply(cfg); err != nil {
			return nil, NewAppError(CodeConfig, "apply config file", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)

	x := &c.Extraction
	x.MinTextLength = getEnvAsInt("EXTRACT_MIN_TEXT_LENGTH", x.MinTextLength)
	x.MaxTextLength = getEnvAsInt("EXTRACT_MAX_TEXT_LENGTH", x.MaxTextLength)
	x.GenericMinPrice = getEnvAsFloat64("EXTRACT_GENERIC_MIN_PRICE", x.GenericMinPrice)
	x.ChunkSize = getEnvAsInt("EXTRACT_CHUNK_SIZE", x.ChunkSize)
	x.Concurrency = getEnvAsInt("EXTRACT_CONCURRENCY", x.Concurrency)
	x.ChunkTimeout = getEnvAsDuration("EXTRACT_CHUNK_TIMEOUT", x.ChunkTimeout)
	x.RatePerSecond = getEnvAsFloat64("EXTRACT_RATE_PER_SECOND", x.RatePerSecond)
	x.RateBurst = getEnvAsInt("EXTRACT_RATE_BURST", x.RateBurst)
	x.FreeProducts = getEnvAsInt("EXTRACT_FREE_PRODUCTS", x.FreeProducts)
	x.CostPerProduct = getEnvAsFloat64("EXTRACT_COST_PER_PRODUCT", x.CostPerProduct)

	c.LLM.Model = getEnv("OPENAI_MODEL", c.LLM.Model)
	c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = getEnv("OPENAI_BASE_URL", c.LLM.BaseURL)
	c.LLM.Temperature = getEnvAsFloat32("OPENAI_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvAsDuration("OPENAI_TIMEOUT", c.LLM.Timeout)
	c.LLM.Lenient = getEnvAsBool("OPENAI_LENIENT", c.LLM.Lenient)

	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// fileConfig is the on-disk shape. Durations are strings ("60s").
type fileConfig struct {
	Server struct {
		HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
		GRPCAddr string `yaml:"grpc_addr" toml:"grpc_addr"`
	} `yaml:"server" toml:"server"`
	Extraction struct {
		MinTextLength   int     `yaml:"min_text_length" toml:"min_text_length"`
		MaxTextLength   int     `yaml:"max_text_length" toml:"max_text_length"`
		GenericMinPrice float64 `yaml:"generic_min_price" toml:"generic_min_price"`
		ChunkSize       int     `yaml:"chunk_size" toml:"chunk_size"`
		Concurrency     int     `yaml:"concurrency" toml:"concurrency"`
		ChunkTimeout    string  `yaml:"chunk_timeout" toml:"chunk_timeout"`
		RatePerSecond   float64 `yaml:"rate_per_second" toml:"rate_per_second"`
		RateBurst       int     `yaml:"rate_burst" toml:"rate_burst"`
		FreeProducts    *int    `yaml:"free_products" toml:"free_products"`
		CostPerProduct  float64 `yaml:"cost_per_product" toml:"cost_per_product"`
	} `yaml:"extraction" toml:"extraction"`
	LLM struct {
		Model       string   `yaml:"model" toml:"model"`
		BaseURL     string   `yaml:"base_url" toml:"base_url"`
		Temperature *float32 `yaml:"temperature" toml:"temperature"`
		Timeout     string   `yaml:"timeout" toml:"timeout"`
		Lenient     *bool    `yaml:"lenient" toml:"lenient"`
	} `yaml:"llm" toml:"llm"`
	Database struct {
		DSN      string `yaml:"dsn" toml:"dsn"`
		MaxConns int32  `yaml:"max_conns" toml:"max_conns"`
		MinConns int32  `yaml:"min_conns" toml:"min_conns"`
	} `yaml:"database" toml:"database"`
	Log struct {
		Level  string `yaml:"level" toml:"level"`
		Format string `yaml:"format" toml:"format"`
	} `yaml:"log" toml:"log"`
}

func (fc fileConfig) apply(c *Config) error {
	setString(&c.Server.HTTPAddr, fc.Server.HTTPAddr)
	setString(&c.Server.GRPCAddr, fc.Server.GRPCAddr)

	x := &c.Extraction
	setInt(&x.MinTextLength, fc.Extraction.MinTextLength)
	setInt(&x.MaxTextLength, fc.Extraction.MaxTextLength)
	setFloat(&x.GenericMinPrice, fc.Extraction.GenericMinPrice)
	setInt(&x.ChunkSize, fc.Extraction.ChunkSize)
	setInt(&x.Concurrency, fc.Extraction.Concurrency)
	setFloat(&x.RatePerSecond, fc.Extraction.RatePerSecond)
	setInt(&x.RateBurst, fc.Extraction.RateBurst)
	setFloat(&x.CostPerProduct, fc.Extraction.CostPerProduct)
	if fc.Extraction.FreeProducts != nil {
		x.FreeProducts = *fc.Extraction.FreeProducts
	}
	if err := setDuration(&x.ChunkTimeout, fc.Extraction.ChunkTimeout); err != nil {
		return fmt.Errorf("extraction.chunk_timeout: %w", err)
	}

	setString(&c.LLM.Model, fc.LLM.Model)
	setString(&c.LLM.BaseURL, fc.LLM.BaseURL)
	if fc.LLM.Temperature != nil {
		c.LLM.Temperature = *fc.LLM.Temperature
	}
	if fc.LLM.Lenient != nil {
		c.LLM.Lenient = *fc.LLM.Lenient
	}
	if err := setDuration(&c.LLM.Timeout, fc.LLM.Timeout); err != nil {
		return fmt.Errorf("llm.timeout: %w", err)
	}

	setString(&c.Database.DSN, fc.Database.DSN)
	if fc.Database.MaxConns > 0 {
		c.Database.MaxConns = fc.Database.MaxConns
	}
	if fc.Database.MinConns > 0 {
		c.Database.MinConns = fc.Database.MinConns
	}

	setString(&c.Log.Level, fc.Log.Level)
	setString(&c.Log.Format, fc.Log.Format)
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the loaded configuration. requireLLM is false for runs that never reach the remote stage.
func (c *Config) Validate(requireLLM bool) error {
	x := c.Extraction
	if x.MinTextLength < 1 {
		return NewAppError(CodeConfig, "EXTRACT_MIN_TEXT_LENGTH must be positive", ErrInvalidInput)
	}
	if x.ChunkSize < 1000 {
		return NewAppError(CodeConfig, "EXTRACT_CHUNK_SIZE must be at least 1000", ErrInvalidInput)
	}
	if x.Concurrency < 1 {
		return NewAppError(CodeConfig, "EXTRACT_CONCURRENCY must be positive", ErrInvalidInput)
	}
	if x.ChunkTimeout <= 0 {
		return NewAppError(CodeConfig, "EXTRACT_CHUNK_TIMEOUT must be positive", ErrInvalidInput)
	}
	if x.GenericMinPrice < 0 || x.CostPerProduct < 0 || x.FreeProducts < 0 {
		return NewAppError(CodeConfig, "price and cost settings must not be negative", ErrInvalidInput)
	}
	if requireLLM && c.LLM.APIKey == "" {
		return NewAppError(CodeConfig, "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	return nil
}
