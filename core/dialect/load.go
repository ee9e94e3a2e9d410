package dialect

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a dialect from a JSON or YAML file, keyed on extension, and
// validates it.
func Load(path string) (*Dialect, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dialect: %w", err)
	}

	d := &Dialect{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, d); err != nil {
			return nil, fmt.Errorf("parsing dialect %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, d); err != nil {
			return nil, fmt.Errorf("parsing dialect %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("dialect %s: unsupported extension, want .json, .yaml or .yml", path)
	}

	if errs := d.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("dialect %s: %w", path, errs[0])
	}
	return d, nil
}

// LoadDir loads every dialect file in dir, sorted by file name. A missing
// directory is not an error; a file that fails to load is.
func LoadDir(dir string) ([]*Dialect, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading dialect directory: %w", err)
	}

	var dialects []*Dialect
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		d, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		dialects = append(dialects, d)
	}
	sort.Slice(dialects, func(i, j int) bool { return dialects[i].Name < dialects[j].Name })
	return dialects, nil
}

// Resolve finds a dialect by name or path: an existing file path wins, then
// a built-in name, then a dialect named in dir.
func Resolve(nameOrPath, dir string) (*Dialect, error) {
	if info, err := os.Stat(nameOrPath); err == nil && !info.IsDir() {
		return Load(nameOrPath)
	}
	if d, ok := Builtin(nameOrPath); ok {
		return d, nil
	}
	if dir != "" {
		dialects, err := LoadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, d := range dialects {
			if d.Name == nameOrPath {
				return d, nil
			}
		}
	}
	return nil, fmt.Errorf("unknown dialect %q (built-ins: %s)", nameOrPath, strings.Join(Names(), ", "))
}
