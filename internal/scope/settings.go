package scope

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const LissajousKey = "lissajousMode"

type Settings struct {
	Lissajous bool
}

func (s Settings) Mode() Mode {
	if s.Lissajous {
		return FreeRunning
	}
	return Triggered
}

func (s *Settings) Reset() {
	s.Lissajous = false
}

// ToDoc serializes the settings as a key-value document. The flag is stored
// as an integer.
func (s Settings) ToDoc() map[string]any {
	v := 0
	if s.Lissajous {
		v = 1
	}
	return map[string]any{LissajousKey: v}
}

// FromDoc applies doc on top of the current values. Missing or non-numeric
// keys leave the current value alone.
func (s *Settings) FromDoc(doc map[string]any) {
	raw, ok := doc[LissajousKey]
	if !ok {
		return
	}

	switch v := raw.(type) {
	case bool:
		s.Lissajous = v
	case int:
		s.Lissajous = v != 0
	case int64:
		s.Lissajous = v != 0
	case float64:
		s.Lissajous = v != 0
	case json.Number:
		if n, err := v.Int64(); err == nil {
			s.Lissajous = n != 0
		}
	}
}

// LoadFile reads a JSON settings document. A missing file is not an error.
func (s *Settings) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse settings: %w", err)
	}
	s.FromDoc(doc)
	return nil
}

func (s Settings) SaveFile(path string) error {
	data, err := json.Marshal(s.ToDoc())
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
