package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Maps      MapsConfig      `mapstructure:"maps"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Guard     GuardConfig     `mapstructure:"guard"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Listen string `mapstructure:"listen"`
	Debug  bool   `mapstructure:"debug"`
	Region string `mapstructure:"region"`
}

// LLMConfig contains the completion provider settings
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (c LLMConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	return nil
}

// MapsConfig contains the places/directions provider settings
type MapsConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

func (c MapsConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("maps.api_key is required")
	}
	return nil
}

// ChatConfig tunes the conversation loop
type ChatConfig struct {
	MaxIterations int           `mapstructure:"max_iterations"`
	ToolTimeout   time.Duration `mapstructure:"tool_timeout"`
	RetrievalTopK int           `mapstructure:"retrieval_top_k"`
	StripInvalid  bool          `mapstructure:"strip_invalid"`
}

func (c ChatConfig) Validate() error {
	if c.MaxIterations < 0 {
		return fmt.Errorf("chat.max_iterations cannot be negative")
	}
	return nil
}

// RetrievalConfig points at the knowledge-base index
type RetrievalConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	IndexPath string `mapstructure:"index_path"`
}

func (c RetrievalConfig) Validate() error {
	if c.Enabled && strings.TrimSpace(c.IndexPath) == "" {
		return fmt.Errorf("retrieval.index_path required when retrieval is enabled")
	}
	return nil
}

// RedisConfig contains Redis connection settings; optional, used by the
// directions cache and the usage guard
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Configured() bool { return strings.TrimSpace(r.Host) != "" }

func (r RedisConfig) Addr() string {
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return fmt.Sprintf("%s:%s", r.Host, port)
}

// GuardConfig controls the free-usage chat guard
type GuardConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	FreeChats int           `mapstructure:"free_chats"`
	Window    time.Duration `mapstructure:"window"`
}

// Normalize applies defaults for unset guard values.
func (g GuardConfig) Normalize() GuardConfig {
	if g.FreeChats <= 0 {
		g.FreeChats = 1
	}
	if g.Window <= 0 {
		g.Window = 24 * time.Hour
	}
	return g
}

// ProxyConfig controls the image proxy endpoint
type ProxyConfig struct {
	AllowedHosts []string `mapstructure:"allowed_hosts"`
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.listen", ":8080")
	viper.SetDefault("general.region", "Rhodes Island, Greece")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.max_tokens", 700)
	viper.SetDefault("llm.timeout", "60s")
	viper.SetDefault("maps.timeout", "5s")
	viper.SetDefault("maps.cache_ttl", "1h")
	viper.SetDefault("chat.max_iterations", 5)
	viper.SetDefault("chat.tool_timeout", "10s")
	viper.SetDefault("chat.retrieval_top_k", 3)
	viper.SetDefault("guard.free_chats", 1)
	viper.SetDefault("guard.window", "24h")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("WANDER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // WANDER_LLM_API_KEY and friends

	// Unmarshal only sees keys viper already knows about, so env-only keys
	// (no default, absent from the file) must be bound explicitly or they
	// vanish in a file-less deployment.
	for _, key := range []string{
		"general.listen", "general.debug", "general.region",
		"llm.api_key", "llm.base_url", "llm.model", "llm.temperature", "llm.max_tokens", "llm.timeout",
		"maps.api_key", "maps.base_url", "maps.timeout", "maps.cache_ttl",
		"chat.max_iterations", "chat.tool_timeout", "chat.retrieval_top_k", "chat.strip_invalid",
		"retrieval.enabled", "retrieval.index_path",
		"redis.host", "redis.port", "redis.password", "redis.db",
		"guard.enabled", "guard.free_chats", "guard.window",
		"proxy.allowed_hosts",
	} {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err != nil {
		// A missing file is fine when everything arrives via env.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.Guard = config.Guard.Normalize()

	if err := config.Chat.Validate(); err != nil {
		panic(err)
	}
	if err := config.Retrieval.Validate(); err != nil {
		panic(err)
	}
	return &config
}
