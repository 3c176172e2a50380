package corestate

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/akyaiy/GoSally-connector/internal/core/utils"
)

const nodeIDDir = "uuid"

var ErrNodeIDLength = errors.New("decoded node id length mismatch")

// LoadNodeID returns the node id kept below metaDir, creating it on first
// start.
func LoadNodeID(metaDir string) (string, error) {
	dir := filepath.Join(metaDir, nodeIDDir)
	id, err := readNodeID(dir)
	if errors.Is(err, fs.ErrNotExist) {
		if err := writeNodeID(dir); err != nil {
			return "", fmt.Errorf("cannot generate node id: %w", err)
		}
		id, err = readNodeID(dir)
	}
	return id, err
}

func readNodeID(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "data"))
	if err != nil {
		return "", err
	}
	if len(data) != utils.NodeIDLength {
		return "", ErrNodeIDLength
	}
	return hex.EncodeToString(data), nil
}

func writeNodeID(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	raw, err := utils.NewUUIDRaw(utils.NodeIDLength)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "data"), raw, 0644); err != nil {
		return err
	}
	readme := `This directory holds the connector node id in the file named data.
Removing it gives the node a new identity on the next start.`
	return os.WriteFile(filepath.Join(dir, "README.txt"), []byte(readme), 0644)
}
