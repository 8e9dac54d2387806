package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Output      string  `yaml:"output"`
	PageWorkers int     `yaml:"page_workers"`
	Retries     int     `yaml:"retries"`
	Timeout     string  `yaml:"timeout"`
	RateLimit   float64 `yaml:"rate_limit"`
	MaxPages    int     `yaml:"max_pages"`
	Debug       bool    `yaml:"debug"`

	// site layout
	Mode          string   `yaml:"mode"`
	ImageSelector string   `yaml:"image_selector"`
	URLAttr       string   `yaml:"url_attr"`
	NextSelector  string   `yaml:"next_selector"`
	AllowExt      []string `yaml:"allow_ext"`
	NumberAttr    string   `yaml:"number_attr"`
	NumberPattern string   `yaml:"number_pattern"`

	// archive naming
	NamePattern string `yaml:"name_pattern"`
	NameNumber  bool   `yaml:"name_number"`
	NamePadding int    `yaml:"name_padding"`

	DefaultURL string `yaml:"default_url"`

	Cookie     string `yaml:"cookie"`
	CookieFile string `yaml:"cookie_file"`
	UserAgent  string `yaml:"user_agent"`
}

type Options struct {
	IgnoreConfig bool
	Debug        bool
	Output       string
	Timeout      string
	RateLimit    float64
	MaxPages     int

	Mode          string
	ImageSelector string
	URLAttr       string
	NextSelector  string
	NumberAttr    string
	NumberPattern string

	NamePattern string
	NameNumber  bool
	NamePadding int

	Cookie     string
	CookieFile string
	UserAgent  string
}

func DefaultConfig() *Config {
	return &Config{
		Output:      ".",
		PageWorkers: 4,
		Retries:     3,
		Timeout:     "30s",
		RateLimit:   0,
		MaxPages:    1000,
		Debug:       false,
		Mode:        "gallery",
		AllowExt:    []string{"jpg", "jpeg", "png", "webp", "gif"},
	}
}

func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func loadYAML(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	return &c, nil
}

func LoadMerged(opts Options) (*Config, string, error) {
	if opts.IgnoreConfig {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(ignored config)", nil
	}

	activePath, err := ActiveConfigPath()
	if err == ErrNoConfig || activePath == "" {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(default config in memory)\nRun `comicdl config init` to create an actual config\n", nil
	}
	if err != nil {
		return nil, "", err
	}

	cfg, err := loadYAML(activePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config %s: %w", activePath, err)
	}

	mergeConfig(cfg, opts)
	normalizeDefaults(cfg)

	return cfg, activePath, nil
}

func mergeConfig(c *Config, o Options) {
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.Timeout != "" {
		c.Timeout = o.Timeout
	}
	if o.RateLimit != 0 {
		c.RateLimit = o.RateLimit
	}
	if o.MaxPages != 0 {
		c.MaxPages = o.MaxPages
	}
	if o.Debug {
		c.Debug = true
	}
	if o.Mode != "" {
		c.Mode = o.Mode
	}
	if o.ImageSelector != "" {
		c.ImageSelector = o.ImageSelector
	}
	if o.URLAttr != "" {
		c.URLAttr = o.URLAttr
	}
	if o.NextSelector != "" {
		c.NextSelector = o.NextSelector
	}
	if o.NumberAttr != "" {
		c.NumberAttr = o.NumberAttr
	}
	if o.NumberPattern != "" {
		c.NumberPattern = o.NumberPattern
	}
	if o.NamePattern != "" {
		c.NamePattern = o.NamePattern
	}
	if o.NameNumber {
		c.NameNumber = true
	}
	if o.NamePadding != 0 {
		c.NamePadding = o.NamePadding
	}
	if o.Cookie != "" {
		c.Cookie = o.Cookie
	}
	if o.CookieFile != "" {
		c.CookieFile = o.CookieFile
	}
	if o.UserAgent != "" {
		c.UserAgent = o.UserAgent
	}
}

// normalizeDefaults backfills unset fields. Zero and negative counts both
// fall back: a hand-edited profile may carry either.
func normalizeDefaults(c *Config) {
	if c.Output == "" {
		c.Output = "."
	}
	if c.PageWorkers <= 0 {
		c.PageWorkers = 4
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 1000
	}
	if c.Mode == "" {
		c.Mode = "gallery"
	}
}

func (c *Config) Print() {
	if c.Output != "" {
		fmt.Printf(" -output: %s\n", c.Output)
	}
	fmt.Printf(" -page_workers: %d\n", c.PageWorkers)
	fmt.Printf(" -retries: %d\n", c.Retries)
	fmt.Printf(" -timeout: %s\n", c.Timeout)
	if c.RateLimit > 0 {
		fmt.Printf(" -rate_limit: %.1f req/s per domain\n", c.RateLimit)
	}
	fmt.Printf(" -max_pages: %d\n", c.MaxPages)
	if c.Debug {
		fmt.Printf(" -debug: %t\n", c.Debug)
	}
	fmt.Printf(" -mode: %s\n", c.Mode)
	if c.ImageSelector != "" {
		fmt.Printf(" -image_selector: %s\n", c.ImageSelector)
	}
	if c.URLAttr != "" {
		fmt.Printf(" -url_attr: %s\n", c.URLAttr)
	}
	if c.NextSelector != "" {
		fmt.Printf(" -next_selector: %s\n", c.NextSelector)
	}
	if len(c.AllowExt) > 0 {
		fmt.Printf(" -allow_ext: %s\n", strings.Join(c.AllowExt, ", "))
	}
	if c.NumberAttr != "" {
		fmt.Printf(" -number_attr: %s\n", c.NumberAttr)
	}
	if c.NumberPattern != "" {
		fmt.Printf(" -number_pattern: %s\n", c.NumberPattern)
	}
	if c.NamePattern != "" {
		fmt.Printf(" -name_pattern: %s\n", c.NamePattern)
	}
	if c.NameNumber {
		fmt.Printf(" -name_number: %t\n", c.NameNumber)
	}
	if c.NamePadding != 0 {
		fmt.Printf(" -name_padding: %d\n", c.NamePadding)
	}
	if c.DefaultURL != "" {
		fmt.Printf(" -url: %s\n", c.DefaultURL)
	}
	if c.CookieFile != "" {
		fmt.Printf(" -cookie_file: %s\n", c.CookieFile)
	}
}
