package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"planline/internal/interval"
	"planline/internal/paint"
)

// ICSSource describes one ICS calendar subscription.
type ICSSource struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// FreeSlotDefaults seeds the free-slot form; every field can be overridden
// per request.
type FreeSlotDefaults struct {
	WindowStart        string `yaml:"window_start"`
	WindowEnd          string `yaml:"window_end"`
	MarginMinutes      int    `yaml:"margin_minutes"`
	MinDurationMinutes int    `yaml:"min_duration_minutes"`
	Weekdays           []int  `yaml:"weekdays"`
}

type PaintConfig struct {
	StartHour int               `yaml:"start_hour"`
	Palette   map[string]string `yaml:"palette"`
}

type CacheConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
}

type DigestConfig struct {
	At string `yaml:"at"`
}

type WebhookConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Config is the top-level application configuration (planline.yml).
type Config struct {
	Listen      string           `yaml:"listen"`
	Timezone    string           `yaml:"timezone"`
	DefaultUser string           `yaml:"default_user"`
	FreeSlots   FreeSlotDefaults `yaml:"free_slots"`
	Paint       PaintConfig      `yaml:"paint"`
	ICS         []ICSSource      `yaml:"ics"`
	Cache       CacheConfig      `yaml:"cache"`
	Digest      DigestConfig     `yaml:"digest"`
	Webhook     WebhookConfig    `yaml:"webhook"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:      "127.0.0.1:8686",
		Timezone:    "Asia/Tokyo",
		DefaultUser: "local-user",
		FreeSlots: FreeSlotDefaults{
			WindowStart:        "09:00",
			WindowEnd:          "22:00",
			MarginMinutes:      30,
			MinDurationMinutes: 60,
		},
		Paint: PaintConfig{
			StartHour: paint.DefaultStartHour,
			Palette:   map[string]string{},
		},
		Cache:  CacheConfig{TTLMinutes: 10},
		Digest: DigestConfig{At: "07:30"},
		Webhook: WebhookConfig{
			TimeoutSeconds: 10,
		},
	}
}

// Normalize fills missing values so partially-filled configs still behave.
func (c *Config) Normalize() {
	d := Default()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.DefaultUser == "" {
		c.DefaultUser = d.DefaultUser
	}
	if c.FreeSlots.WindowStart == "" {
		c.FreeSlots.WindowStart = d.FreeSlots.WindowStart
	}
	if c.FreeSlots.WindowEnd == "" {
		c.FreeSlots.WindowEnd = d.FreeSlots.WindowEnd
	}
	if c.FreeSlots.MinDurationMinutes <= 0 {
		c.FreeSlots.MinDurationMinutes = d.FreeSlots.MinDurationMinutes
	}
	if c.Paint.StartHour <= 0 {
		c.Paint.StartHour = d.Paint.StartHour
	}
	if c.Paint.Palette == nil {
		c.Paint.Palette = map[string]string{}
	}
	if c.Cache.TTLMinutes <= 0 {
		c.Cache.TTLMinutes = d.Cache.TTLMinutes
	}
	if c.Digest.At == "" {
		c.Digest.At = d.Digest.At
	}
	if c.Webhook.TimeoutSeconds <= 0 {
		c.Webhook.TimeoutSeconds = d.Webhook.TimeoutSeconds
	}
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config.timezone: %w", err)
	}
	if _, err := interval.ParseClock(c.FreeSlots.WindowStart); err != nil {
		return fmt.Errorf("config.free_slots.window_start: %w", err)
	}
	if _, err := interval.ParseClock(c.FreeSlots.WindowEnd); err != nil {
		return fmt.Errorf("config.free_slots.window_end: %w", err)
	}
	if c.FreeSlots.MarginMinutes < 0 {
		return fmt.Errorf("config.free_slots.margin_minutes must not be negative")
	}
	for _, wd := range c.FreeSlots.Weekdays {
		if wd < 0 || wd > 6 {
			return fmt.Errorf("config.free_slots.weekdays: %d out of range", wd)
		}
	}
	if _, err := interval.ParseClock(c.Digest.At); err != nil {
		return fmt.Errorf("config.digest.at: %w", err)
	}
	if err := c.PaintPalette().Validate(); err != nil {
		return fmt.Errorf("config.paint.palette: %w", err)
	}
	for i, src := range c.ICS {
		if src.URL == "" {
			return fmt.Errorf("config.ics[%d].url is required", i)
		}
		if src.ID == "" {
			return fmt.Errorf("config.ics[%d].id is required", i)
		}
	}
	return nil
}

// Location resolves the configured timezone. Validate first.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// PaintPalette converts the YAML palette into the typed paint palette.
func (c *Config) PaintPalette() paint.Palette {
	titles := make(map[paint.ColorKey]string, len(c.Paint.Palette))
	for k, v := range c.Paint.Palette {
		titles[paint.ColorKey(k)] = v
	}
	return paint.Palette{Titles: titles, StartHour: c.Paint.StartHour}
}

// Path returns the config file path inside a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".planline", "planline.yml")
}

// Load reads config from the workspace, writing a default file on first run.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := Default()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config with 0600 permissions via a temp file + rename.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".planline-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
