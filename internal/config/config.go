package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App            App            `mapstructure:"app"`
	AIDetection    AIDetection    `mapstructure:"ai_detection"`
	AIOptimization AIOptimization `mapstructure:"ai_optimization"`
	Performance    Performance    `mapstructure:"performance"`
	LLM            LLM            `mapstructure:"llm"`
	Gemini         Gemini         `mapstructure:"gemini"`
	Proxy          Proxy          `mapstructure:"proxy"`
	Detector       Detector       `mapstructure:"detector"`
	Publish        Publish        `mapstructure:"publish"`
	Server         Server         `mapstructure:"server"`
}

// App holds general application configuration
type App struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
}

// AIDetection holds the acceptance threshold for the external detector.
type AIDetection struct {
	Threshold float64 `mapstructure:"threshold"` // 0-100
}

// AIOptimization bounds the detect-optimise loop.
type AIOptimization struct {
	MaxAttempts       int `mapstructure:"max_attempts"`        // 1-20
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds"` // 0-60
}

// Performance holds the timing knobs the detector driver uses. A preset name
// overrides the whole block atomically.
type Performance struct {
	AIDetectionTimeout int     `mapstructure:"ai_detection_timeout"` // seconds, 5-60
	BrowserStartupWait float64 `mapstructure:"browser_startup_wait"` // seconds, 0.5-5
	PageLoadWait       float64 `mapstructure:"page_load_wait"`       // seconds, 1-10
	ElementFindTimeout int     `mapstructure:"element_find_timeout"` // seconds, 1-15
	Preset             string  `mapstructure:"preset"`               // ultra_fast | balanced | stable
}

// LLM holds the OpenAI-compatible endpoint configuration.
type LLM struct {
	EndpointURL  string `mapstructure:"endpoint_url"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
}

// Gemini holds the Google Gemini vendor configuration (alternate LLM backend).
type Gemini struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// Proxy holds egress rotation configuration.
type Proxy struct {
	ControllerURL string   `mapstructure:"controller_url"` // local proxy manager, optional
	Candidates    []string `mapstructure:"candidates"`     // enumerated proxy URLs
	EchoURL       string   `mapstructure:"echo_url"`       // public IP echo endpoint
}

// Detector holds the external detector's page configuration. The recognised
// failure phrases are locale-specific and therefore configurable.
type Detector struct {
	URL                 string   `mapstructure:"url"`
	Platform            string   `mapstructure:"platform"`
	Headless            bool     `mapstructure:"headless"`
	BrowserBin          string   `mapstructure:"browser_bin"`
	ProfileDirRoot      string   `mapstructure:"profile_dir_root"`
	QuotaPhrases        []string `mapstructure:"quota_phrases"`
	VerificationPhrases []string `mapstructure:"verification_phrases"`
}

// Publish holds the local publishing adapter configuration.
type Publish struct {
	Directory string `mapstructure:"directory"`
}

// Server holds the HTTP API configuration.
type Server struct {
	Addr string `mapstructure:"addr"`
}

var globalConfig *Config

// Load loads the configuration from .env, config file, environment and
// defaults, in the usual viper precedence order.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".redraft")
		viper.SetConfigType("yaml")
	}

	setDefaults()

	viper.SetEnvPrefix("REDRAFT")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Performance.Preset != "" {
		if err := ApplyPreset(config, config.Performance.Preset); err != nil {
			return nil, err
		}
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// Reset clears the cached configuration. Used by tests.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.data_dir", ".redraft")

	viper.SetDefault("ai_detection.threshold", 25.0)

	viper.SetDefault("ai_optimization.max_attempts", 5)
	viper.SetDefault("ai_optimization.retry_delay_seconds", 2)

	viper.SetDefault("performance.ai_detection_timeout", 15)
	viper.SetDefault("performance.browser_startup_wait", 1.0)
	viper.SetDefault("performance.page_load_wait", 3.0)
	viper.SetDefault("performance.element_find_timeout", 5)

	viper.SetDefault("llm.default_model", "gpt-4o-mini")

	viper.SetDefault("gemini.model", "gemini-flash-lite-latest")

	viper.SetDefault("proxy.echo_url", "https://api.ipify.org?format=json")

	viper.SetDefault("detector.platform", "zerogpt")
	viper.SetDefault("detector.headless", true)
	viper.SetDefault("detector.profile_dir_root", ".redraft/profiles")
	viper.SetDefault("detector.quota_phrases", []string{
		"今日检测次数已用完",
		"今日免费次数已用完",
		"daily quota exhausted",
		"quota exceeded",
	})
	viper.SetDefault("detector.verification_phrases", []string{
		"验证失败",
		"请完成验证",
		"verification failed",
		"complete the captcha",
	})

	viper.SetDefault("publish.directory", "published")

	viper.SetDefault("server.addr", ":8080")
}

// presets maps a preset name to a full performance block. Applying a preset
// replaces the block as a whole.
var presets = map[string]Performance{
	"ultra_fast": {
		AIDetectionTimeout: 5,
		BrowserStartupWait: 0.5,
		PageLoadWait:       1.0,
		ElementFindTimeout: 1,
	},
	"balanced": {
		AIDetectionTimeout: 15,
		BrowserStartupWait: 1.0,
		PageLoadWait:       3.0,
		ElementFindTimeout: 5,
	},
	"stable": {
		AIDetectionTimeout: 30,
		BrowserStartupWait: 2.0,
		PageLoadWait:       5.0,
		ElementFindTimeout: 10,
	},
}

// ApplyPreset overwrites the performance block with the named preset.
func ApplyPreset(config *Config, name string) error {
	preset, ok := presets[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("unknown performance preset %q (want ultra_fast, balanced or stable)", name)
	}
	preset.Preset = strings.ToLower(name)
	config.Performance = preset
	return nil
}

// validateConfig checks the numeric ranges the core recognises.
func validateConfig(config *Config) error {
	if t := config.AIDetection.Threshold; t < 0 || t > 100 {
		return fmt.Errorf("ai_detection.threshold must be between 0 and 100, got %v", t)
	}
	if n := config.AIOptimization.MaxAttempts; n < 1 || n > 20 {
		return fmt.Errorf("ai_optimization.max_attempts must be between 1 and 20, got %d", n)
	}
	if d := config.AIOptimization.RetryDelaySeconds; d < 0 || d > 60 {
		return fmt.Errorf("ai_optimization.retry_delay_seconds must be between 0 and 60, got %d", d)
	}
	if t := config.Performance.AIDetectionTimeout; t < 5 || t > 60 {
		return fmt.Errorf("performance.ai_detection_timeout must be between 5 and 60, got %d", t)
	}
	if w := config.Performance.BrowserStartupWait; w < 0.5 || w > 5 {
		return fmt.Errorf("performance.browser_startup_wait must be between 0.5 and 5, got %v", w)
	}
	if w := config.Performance.PageLoadWait; w < 1 || w > 10 {
		return fmt.Errorf("performance.page_load_wait must be between 1 and 10, got %v", w)
	}
	if t := config.Performance.ElementFindTimeout; t < 1 || t > 15 {
		return fmt.Errorf("performance.element_find_timeout must be between 1 and 15, got %d", t)
	}
	return nil
}
