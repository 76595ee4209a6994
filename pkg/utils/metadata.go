package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const DefaultMetadataPath = "resources/metadata.json"

// BuildMetadata describes the build that produced the binary. It is written
// by cmd/gen-metadata at build time and read back by LoadSettings.
type BuildMetadata struct {
	Version     string `json:"version"`
	Description string `json:"description"`
	Tag         string `json:"tag"`
	CommitHash  string `json:"commitHash"`
	BuildTime   string `json:"buildTime"`
	CommitTime  string `json:"commitTime"`
}

func ReadBuildMetadata(path string) (BuildMetadata, error) {
	var meta BuildMetadata
	b, err := os.ReadFile(path)
	if err != nil {
		return meta, fmt.Errorf("read metadata: %w", err)
	}
	if err := json.Unmarshal(b, &meta); err != nil {
		return meta, fmt.Errorf("decode metadata: %w", err)
	}
	return meta, nil
}

func WriteBuildMetadata(path string, meta BuildMetadata) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure metadata dir: %w", err)
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}
