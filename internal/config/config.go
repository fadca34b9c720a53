// Package config loads Bella's settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every setting the bot and the maintenance CLI read.
type Config struct {
	DiscordToken  string   `env:"DISCORD_TOKEN"`
	CommandPrefix string   `env:"COMMAND_PREFIX" envDefault:"!"`
	BotNames      []string `env:"BOT_NAMES" envDefault:"bella,bela,bellaa,بيلا,بيله,بلا" envSeparator:","`

	Memory MemoryConfig
	AI     AIConfig
	Voice  VoiceConfig
	Image  ImageConfig

	DownloadTimeout  time.Duration `env:"DOWNLOAD_TIMEOUT" envDefault:"30s"`
	UnfilteredChance float64       `env:"UNFILTERED_CHANCE" envDefault:"0.3"`
	OwnerCacheTTL    time.Duration `env:"OWNER_CACHE_TTL" envDefault:"10m"`

	KeepaliveAddr     string        `env:"KEEPALIVE_ADDR" envDefault:":8080"`
	KeepaliveCacheTTL time.Duration `env:"KEEPALIVE_CACHE_TTL" envDefault:"10s"`

	PersonaFile string `env:"PERSONA_FILE"`

	Log LogConfig
}

// MemoryConfig configures the memory document and its upkeep.
type MemoryConfig struct {
	Path                string        `env:"MEMORY_PATH" envDefault:"bella_memory.json"`
	BackupDir           string        `env:"MEMORY_BACKUP_DIR" envDefault:"memory_backups"`
	BackupInterval      time.Duration `env:"MEMORY_BACKUP_INTERVAL" envDefault:"1h"`
	BackupKeep          int           `env:"MEMORY_BACKUP_KEEP" envDefault:"10"`
	Retention           time.Duration `env:"MEMORY_RETENTION" envDefault:"720h"`
	CompactThreshold    int           `env:"MEMORY_COMPACT_THRESHOLD" envDefault:"100"`
	MaintenanceInterval time.Duration `env:"MAINTENANCE_INTERVAL" envDefault:"1h"`
}

// AIConfig configures the completion provider.
type AIConfig struct {
	Provider    string        `env:"AI_PROVIDER" envDefault:"openai"`
	BaseURL     string        `env:"AI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta/openai/"`
	APIKey      string        `env:"AI_API_KEY"`
	Model       string        `env:"AI_MODEL" envDefault:"gemini-2.0-flash-exp"`
	VisionModel string        `env:"AI_VISION_MODEL" envDefault:"gemini-2.0-flash-exp"`
	Temperature float32       `env:"AI_TEMPERATURE" envDefault:"1.5"`
	TopP        float32       `env:"AI_TOP_P" envDefault:"0.85"`
	MaxTokens   int           `env:"AI_MAX_TOKENS" envDefault:"4096"`
	Timeout     time.Duration `env:"AI_TIMEOUT" envDefault:"60s"`
	MaxAttempts int           `env:"AI_MAX_ATTEMPTS" envDefault:"1"`
	Rate        float64       `env:"AI_RATE" envDefault:"2"`
}

// VoiceConfig configures voice transcription.
type VoiceConfig struct {
	BaseURL    string        `env:"TRANSCRIBE_BASE_URL" envDefault:"https://api.openai.com/v1"`
	APIKey     string        `env:"TRANSCRIBE_API_KEY"`
	Model      string        `env:"TRANSCRIBE_MODEL" envDefault:"whisper-1"`
	Timeout    time.Duration `env:"TRANSCRIBE_TIMEOUT" envDefault:"60s"`
	FFmpegPath string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
}

// ImageConfig configures image generation.
type ImageConfig struct {
	BaseURL string        `env:"IMAGE_BASE_URL" envDefault:"https://image.pollinations.ai/prompt/"`
	Width   int           `env:"IMAGE_WIDTH" envDefault:"1024"`
	Height  int           `env:"IMAGE_HEIGHT" envDefault:"1024"`
	Model   string        `env:"IMAGE_MODEL" envDefault:"stable-diffusion"`
	Timeout time.Duration `env:"IMAGE_TIMEOUT" envDefault:"30s"`
}

// LogConfig configures logging sinks.
type LogConfig struct {
	Level         string `env:"LOG_LEVEL" envDefault:"info"`
	File          string `env:"LOG_FILE"`
	FileMaxSizeMB int    `env:"LOG_FILE_MAX_SIZE_MB" envDefault:"20"`
	FileBackups   int    `env:"LOG_FILE_MAX_BACKUPS" envDefault:"5"`
	FileMaxAge    int    `env:"LOG_FILE_MAX_AGE_DAYS" envDefault:"14"`
}

// Load reads envFile when it exists and parses the environment. An empty
// envFile means ".env". A missing file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.BotNames = normalizeNames(cfg.BotNames)
	return cfg, nil
}

// Validate reports settings the bot cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.DiscordToken == "" {
		errs = append(errs, errors.New("DISCORD_TOKEN is not set"))
	}
	if c.CommandPrefix == "" {
		errs = append(errs, errors.New("COMMAND_PREFIX cannot be empty"))
	}
	switch c.AI.Provider {
	case "openai":
		if c.AI.APIKey == "" {
			errs = append(errs, errors.New("AI_API_KEY is required for the openai provider"))
		}
	case "pollinations":
	default:
		errs = append(errs, fmt.Errorf("unknown AI_PROVIDER %q", c.AI.Provider))
	}
	if c.UnfilteredChance < 0 || c.UnfilteredChance > 1 {
		errs = append(errs, fmt.Errorf("UNFILTERED_CHANCE must be within [0,1], got %v", c.UnfilteredChance))
	}
	return errors.Join(errs...)
}

// SlogLevel parses Log.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func normalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}
