// Package config handles Loom configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration structure for Loom.
type Config struct {
	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Compose settings for the input buffer.
	Compose ComposeConfig `yaml:"compose" mapstructure:"compose"`

	// Queue settings
	Queue QueueConfig `yaml:"queue" mapstructure:"queue"`

	// Dispatch settings
	Dispatch DispatchConfig `yaml:"dispatch" mapstructure:"dispatch"`

	// History settings
	History HistoryConfig `yaml:"history" mapstructure:"history"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path.
	File string `yaml:"file" mapstructure:"file"`
}

// ComposeConfig contains input-buffer settings.
type ComposeConfig struct {
	// CollapsePasteMinLines is the line count at which a paste is
	// collapsed into a placeholder part.
	CollapsePasteMinLines int `yaml:"collapse_paste_min_lines" mapstructure:"collapse_paste_min_lines"`

	// CollapsePasteMaxChars is the character count at which a paste is
	// collapsed even when it stays under the line threshold.
	CollapsePasteMaxChars int `yaml:"collapse_paste_max_chars" mapstructure:"collapse_paste_max_chars"`

	// DisablePasteCollapse inserts all pastes verbatim.
	DisablePasteCollapse bool `yaml:"disable_paste_collapse" mapstructure:"disable_paste_collapse"`
}

// QueueConfig contains queued-message settings.
type QueueConfig struct {
	// PreviewWidth is the maximum width of the queue preview line.
	PreviewWidth int `yaml:"preview_width" mapstructure:"preview_width"`
}

// DispatchConfig contains dispatch settings.
type DispatchConfig struct {
	// InterruptResetDelay is how long a single interrupt press stays
	// armed before it resets without escalating.
	InterruptResetDelay time.Duration `yaml:"interrupt_reset_delay" mapstructure:"interrupt_reset_delay"`
}

// HistoryConfig contains sent-message history settings.
type HistoryConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path" mapstructure:"path"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Compose: ComposeConfig{
			CollapsePasteMinLines: 3,
			CollapsePasteMaxChars: 150,
		},
		Queue: QueueConfig{
			PreviewWidth: 80,
		},
		Dispatch: DispatchConfig{
			InterruptResetDelay: 5 * time.Second,
		},
		History: HistoryConfig{
			Path: filepath.Join(homeDir, ".local", "share", "loom", "history.sqlite"),
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Compose.CollapsePasteMinLines < 1 {
		return fmt.Errorf("compose.collapse_paste_min_lines must be at least 1")
	}
	if c.Compose.CollapsePasteMaxChars < 1 {
		return fmt.Errorf("compose.collapse_paste_max_chars must be at least 1")
	}
	if c.Queue.PreviewWidth < 10 {
		return fmt.Errorf("queue.preview_width must be at least 10")
	}
	if c.Dispatch.InterruptResetDelay < 100*time.Millisecond {
		return fmt.Errorf("dispatch.interrupt_reset_delay must be at least 100ms")
	}
	if c.History.Path == "" {
		return fmt.Errorf("history.path is required")
	}
	return nil
}
