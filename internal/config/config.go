package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	charmLog "github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"
)

// SeedMode selects the lists a fresh board starts with.
type SeedMode string

const (
	SeedSample SeedMode = "sample"
	SeedEmpty  SeedMode = "empty"
)

type Config struct {
	Board    BoardConfig    `toml:"board"`
	Drag     DragConfig     `toml:"drag"`
	Engine   EngineConfig   `toml:"engine"`
	Activity ActivityConfig `toml:"activity"`
	Logging  LoggingConfig  `toml:"logging"`
}

type BoardConfig struct {
	Seed             SeedMode `toml:"seed"`
	StrictColumnRefs bool     `toml:"strict_column_refs"`
}

type DragConfig struct {
	RollbackOnCancel  bool `toml:"rollback_on_cancel"`
	LiveColumnReorder bool `toml:"live_column_reorder"`
}

type EngineConfig struct {
	AssertInvariants bool `toml:"assert_invariants"`
}

type ActivityConfig struct {
	Enabled bool `toml:"enabled"`
	Limit   int  `toml:"limit"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

func Default() Config {
	return Config{
		Board: BoardConfig{
			Seed: SeedSample,
		},
		Activity: ActivityConfig{
			Enabled: true,
			Limit:   200,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".dragboard/log",
			},
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	switch SeedMode(strings.TrimSpace(strings.ToLower(string(c.Board.Seed)))) {
	case SeedSample, SeedEmpty:
	default:
		return fmt.Errorf("invalid board.seed: %q", c.Board.Seed)
	}
	if c.Activity.Limit < 0 {
		return fmt.Errorf("activity.limit must be >= 0")
	}
	if _, err := charmLog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	return nil
}

// SeedMode returns the normalized seed mode.
func (c Config) SeedMode() SeedMode {
	return SeedMode(strings.TrimSpace(strings.ToLower(string(c.Board.Seed))))
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
