// SPDX-License-Identifier: MIT

package trainer

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"

	"github.com/katalvlaran/lvlnn/tensor"
)

// Sentinel errors.
var (
	// ErrCheckpointMismatch indicates the checkpoint does not cover the
	// model's parameters, or a stored shape disagrees.
	ErrCheckpointMismatch = errors.New("trainer: checkpoint does not match model parameters")
)

// checkpointEntry is one stored parameter.
type checkpointEntry struct {
	Rows, Cols int
	Data       []float64
}

// SaveCheckpoint writes every named parameter to path. The file fully
// determines the parameter values, so a later LoadCheckpoint restores
// identical forward and backward behavior.
func SaveCheckpoint(path string, params []*tensor.Tensor) error {
	entries := make(map[string]checkpointEntry, len(params))
	for _, p := range params {
		data := make([]float64, len(p.Data()))
		copy(data, p.Data())
		entries[p.Name()] = checkpointEntry{Rows: p.Rows(), Cols: p.Cols(), Data: data}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("SaveCheckpoint: %w", err)
	}
	defer f.Close()
	if err = gob.NewEncoder(f).Encode(entries); err != nil {
		return fmt.Errorf("SaveCheckpoint: %w", err)
	}
	return f.Sync()
}

// LoadCheckpoint restores params in place from path, matching entries by
// parameter name.
//
// Errors: ErrCheckpointMismatch on a missing name or shape disagreement,
// plus I/O and decode errors.
func LoadCheckpoint(path string, params []*tensor.Tensor) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("LoadCheckpoint: %w", err)
	}
	defer f.Close()

	var entries map[string]checkpointEntry
	if err = gob.NewDecoder(f).Decode(&entries); err != nil {
		return fmt.Errorf("LoadCheckpoint: %w", err)
	}

	for _, p := range params {
		e, ok := entries[p.Name()]
		if !ok {
			return fmt.Errorf("LoadCheckpoint: parameter %q: %w", p.Name(), ErrCheckpointMismatch)
		}
		if e.Rows != p.Rows() || e.Cols != p.Cols() || len(e.Data) != len(p.Data()) {
			return fmt.Errorf("LoadCheckpoint: parameter %q shape: %w", p.Name(), ErrCheckpointMismatch)
		}
		copy(p.Data(), e.Data)
	}
	return nil
}
