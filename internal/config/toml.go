package config

import (
	"github.com/pelletier/go-toml/v2"
)

// tomlParser is a koanf.Parser for TOML config files.
type tomlParser struct{}

func (tomlParser) Unmarshal(b []byte) (map[string]any, error) {
	out := make(map[string]any)
	if err := toml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (tomlParser) Marshal(m map[string]any) ([]byte, error) {
	return toml.Marshal(m)
}
