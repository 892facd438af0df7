package dashboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Rishwanth-M/finboard/api"
)

// ErrInvalidConfig is returned when imported data is not a dashboard export.
var ErrInvalidConfig = errors.New("invalid dashboard configuration")

// Export encodes widgets as an indented dashboard document. The version is
// always the current schema version.
func Export(widgets []api.Widget, now time.Time) ([]byte, error) {
	if widgets == nil {
		widgets = []api.Widget{}
	}
	data, err := json.MarshalIndent(api.Dashboard{
		Version:    api.SchemaVersion,
		ExportedAt: now.UTC(),
		Widgets:    widgets,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode dashboard: %w", err)
	}
	return data, nil
}

// Import decodes a dashboard document. The top level must be an object whose
// "widgets" member is an array; anything else is ErrInvalidConfig.
func Import(data []byte) ([]api.Widget, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if top == nil {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidConfig)
	}
	raw, ok := top["widgets"]
	if !ok {
		return nil, fmt.Errorf("%w: missing widgets", ErrInvalidConfig)
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: widgets is not an array", ErrInvalidConfig)
	}

	var widgets []api.Widget
	if err := json.Unmarshal(raw, &widgets); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return widgets, nil
}

// Export encodes the board's current widgets.
func (b *Board) Export() ([]byte, error) {
	return Export(b.List(), b.now())
}

// Import replaces the board's widgets with the decoded document. On error the
// board is left untouched.
func (b *Board) Import(data []byte) ([]api.Widget, error) {
	widgets, err := Import(data)
	if err != nil {
		return nil, err
	}
	b.Replace(widgets)
	return b.List(), nil
}

// SaveFile writes the board to path in export format, atomically.
func (b *Board) SaveFile(path string) error {
	data, err := b.Export()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dashboard dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".dashboard-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }() // no-op after rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write dashboard: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close dashboard: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename dashboard: %w", err)
	}
	return nil
}

// LoadFile replaces the board with the dashboard stored at path. A missing
// file leaves the board empty.
func (b *Board) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read dashboard: %w", err)
	}
	if _, err := b.Import(data); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
