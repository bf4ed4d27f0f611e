// Package config loads the receiver's startup configuration. The schema
// uses pointer fields so a partial JSON file only overrides what it
// names; flags layered on top win over the file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Defaults applied when neither the config file nor flags specify a
// value.
const (
	DefaultListenAddress = ":5001"
	DefaultStatusAddress = ":8080"
	DefaultOutputDir     = "ml2_capture"
	DefaultDatabasePath  = "ml2_sessions.db"
	DefaultLogEvery      = 30
)

// ReceiverSettings is the on-disk configuration schema for the live
// receiver. All fields are optional.
type ReceiverSettings struct {
	ListenAddress *string `json:"listen_address,omitempty"`
	StatusAddress *string `json:"status_address,omitempty"`
	OutputDir     *string `json:"output_dir,omitempty"`
	DatabasePath  *string `json:"database_path,omitempty"`
	LogEvery      *int    `json:"log_every_frames,omitempty"`
}

// Receiver is the fully-resolved configuration the daemon runs with.
type Receiver struct {
	ListenAddress string
	StatusAddress string
	OutputDir     string
	DatabasePath  string
	LogEvery      int
}

// LoadReceiverSettings reads a partial configuration from a JSON file.
// The file must have a .json extension and stay under 1MB; both checks
// guard against pointing the flag at the wrong file.
func LoadReceiverSettings(path string) (*ReceiverSettings, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var s ReceiverSettings
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", cleanPath, err)
	}
	return &s, nil
}

// Resolve fills in defaults for every unset field and returns the
// concrete configuration. A nil receiver resolves to pure defaults.
func (s *ReceiverSettings) Resolve() Receiver {
	r := Receiver{
		ListenAddress: DefaultListenAddress,
		StatusAddress: DefaultStatusAddress,
		OutputDir:     DefaultOutputDir,
		DatabasePath:  DefaultDatabasePath,
		LogEvery:      DefaultLogEvery,
	}
	if s == nil {
		return r
	}
	if s.ListenAddress != nil {
		r.ListenAddress = *s.ListenAddress
	}
	if s.StatusAddress != nil {
		r.StatusAddress = *s.StatusAddress
	}
	if s.OutputDir != nil {
		r.OutputDir = *s.OutputDir
	}
	if s.DatabasePath != nil {
		r.DatabasePath = *s.DatabasePath
	}
	if s.LogEvery != nil {
		r.LogEvery = *s.LogEvery
	}
	return r
}
