package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// source resolves a single configuration key.
type source interface {
	Lookup(key string) (string, bool)
}

// layered consults each source in order and returns the first hit.
type layered []source

func (l layered) Lookup(key string) (string, bool) {
	for _, s := range l {
		if v, ok := s.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}

// envSource reads the process environment. Empty values count as unset.
type envSource struct{}

func (envSource) Lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

type emptySource struct{}

func (emptySource) Lookup(string) (string, bool) { return "", false }

// jsonSource is a flat JSON object, queried by top-level key.
type jsonSource struct {
	doc string
}

func (s jsonSource) Lookup(key string) (string, bool) {
	r := gjson.Get(s.doc, gjson.Escape(key))
	if !r.Exists() || r.Type == gjson.Null {
		return "", false
	}
	if r.IsArray() {
		parts := make([]string, 0, len(r.Array()))
		for _, item := range r.Array() {
			parts = append(parts, item.String())
		}
		return strings.Join(parts, ","), true
	}
	return r.String(), true
}

// mapSource holds values decoded from YAML.
type mapSource map[string]string

func (m mapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func openSource(path string) (source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		if !gjson.ValidBytes(data) {
			return nil, fmt.Errorf("parse config %s: invalid JSON", path)
		}
		if r := gjson.ParseBytes(data); !r.IsObject() {
			return nil, fmt.Errorf("parse config %s: top level must be an object", path)
		}
		return jsonSource{doc: string(data)}, nil
	}
}

func parseYAML(data []byte) (source, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	out := make(mapSource, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, fmt.Sprint(item))
			}
			out[k] = strings.Join(parts, ",")
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out, nil
}
