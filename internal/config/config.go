package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds process configuration. Values come from the environment with
// the AGENT prefix; a .env file is loaded by main before processing.
type Config struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" default:"0.0.0.0"`
	ListenPort int    `envconfig:"LISTEN_PORT" default:"8080"`

	// Gemini reasoning service. Absence of the key disables the reasoning
	// path only; deterministic planning still works.
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`

	// Redis is optional; workstream persistence is skipped without it.
	RedisAddr string `envconfig:"REDIS_ADDR"`

	// Headless defaults to false: the user must be able to complete
	// CAPTCHAs in a visible browser window.
	Headless bool `envconfig:"HEADLESS" default:"false"`

	NavigationTimeout    time.Duration `envconfig:"NAVIGATION_TIMEOUT" default:"30s"`
	CaptchaMaxWait       time.Duration `envconfig:"CAPTCHA_MAX_WAIT" default:"300s"`
	CaptchaCheckInterval time.Duration `envconfig:"CAPTCHA_CHECK_INTERVAL" default:"3s"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("AGENT", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	return cfg, nil
}

func (c Config) Listen() string {
	return fmt.Sprintf("%s:%d", c.ListenAddr, c.ListenPort)
}
