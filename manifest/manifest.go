// Package manifest handles jiki.toml exercise configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/jiki/lang"
	"github.com/chazu/jiki/vm"
)

// FileName is the manifest file looked up in an exercise directory.
const FileName = "jiki.toml"

// Manifest represents a jiki.toml exercise configuration.
type Manifest struct {
	Exercise  Exercise   `toml:"exercise"`
	Policy    vm.Policy  `toml:"policy"`
	Externals []External `toml:"externals"`

	// Dir is the directory containing the jiki.toml file (set at load time).
	Dir string `toml:"-"`
}

// Exercise names the exercise and the dialect students write it in.
type Exercise struct {
	Name    string `toml:"name"`
	Dialect string `toml:"dialect"`
	Entry   string `toml:"entry"`
}

// External declares a host function available to student code. The
// behaviour is data-driven: Echo returns the argument at that 1-based
// position, otherwise Returns is returned as a constant. Record appends each
// call's arguments to the run state under that key, and FinishAfter ends a
// game loop once the function has been called that many times.
type External struct {
	Name        string `toml:"name"`
	Arity       int    `toml:"arity"`
	Description string `toml:"description"`
	Returns     any    `toml:"returns"`
	Echo        int    `toml:"echo"`
	Record      string `toml:"record"`
	FinishAfter int    `toml:"finish-after"`
}

// Load parses a jiki.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes and validates manifest text. Policy fields the manifest
// leaves out keep their vm.DefaultPolicy values.
func Parse(data []byte) (*Manifest, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	m := Manifest{Policy: vm.DefaultPolicy()}
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	// Canonicalise aliases such as "js" and "jiki".
	mod, err := lang.Lookup(m.Exercise.Dialect)
	if err != nil {
		return nil, err
	}
	m.Exercise.Dialect = string(mod.Dialect())

	if err := m.Policy.Validate(); err != nil {
		return nil, err
	}
	for _, ext := range m.Externals {
		if ext.Echo > ext.Arity {
			return nil, fmt.Errorf("external %s echoes argument %d but takes %d", ext.Name, ext.Echo, ext.Arity)
		}
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a jiki.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return nil, nil
		}
		dir = parent
	}
}

// Module returns the language module for the exercise dialect.
func (m *Manifest) Module() (lang.Module, error) {
	return lang.Lookup(m.Exercise.Dialect)
}

// EntryPath returns the absolute path of the student's entry file, or ""
// when the manifest does not name one.
func (m *Manifest) EntryPath() string {
	if m.Exercise.Entry == "" {
		return ""
	}
	if filepath.IsAbs(m.Exercise.Entry) {
		return m.Exercise.Entry
	}
	return filepath.Join(m.Dir, m.Exercise.Entry)
}

// Options builds interpreter options for one run. state may be nil.
func (m *Manifest) Options(state map[string]any) (*vm.Options, error) {
	x, err := m.Bridge()
	if err != nil {
		return nil, err
	}
	policy := m.Policy
	return &vm.Options{Policy: &policy, Externals: x, State: state}, nil
}
