package grader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/chazu/jiki/lang"
	"github.com/chazu/jiki/vm"
)

// Suite is a YAML file of function-call scenarios run against one solution.
//
//	name: adder
//	dialect: js
//	file: solution.js
//	tests:
//	  - name: small numbers
//	    function: add
//	    args: [5, 3]
//	    expect: 8
//	    frames: 1
type Suite struct {
	Name    string `yaml:"name"`
	Dialect string `yaml:"dialect"`
	Source  string `yaml:"source"`
	File    string `yaml:"file"`
	Tests   []Case `yaml:"tests"`

	// Dir is the directory the suite was loaded from.
	Dir string `yaml:"-"`
}

// Case is one scenario. Expect, Frames, Error and Logs are checked only
// when present.
type Case struct {
	Name     string     `yaml:"name"`
	Function string     `yaml:"function"`
	Args     []any      `yaml:"args"`
	Expect   *yaml.Node `yaml:"expect"`
	Frames   *int       `yaml:"frames"`
	Error    string     `yaml:"error"`
	Logs     []string   `yaml:"logs"`
}

var (
	ErrNoSource = errors.New("suite has no source")
	ErrNoTests  = errors.New("suite has no tests")
)

// LoadSuite reads a suite file. A relative file: entry is resolved against
// the suite's directory, and the dialect defaults to the solution file's
// extension.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	s, err := ParseSuite(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	s.Dir = filepath.Dir(path)

	if s.Source == "" && s.File != "" {
		file := s.File
		if !filepath.IsAbs(file) {
			file = filepath.Join(s.Dir, file)
		}
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("cannot read solution: %w", err)
		}
		s.Source = string(src)
	}
	if s.Source == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrNoSource)
	}
	return s, nil
}

// ParseSuite decodes suite YAML without touching the filesystem.
func ParseSuite(data []byte) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if len(s.Tests) == 0 {
		return nil, ErrNoTests
	}
	for i, tc := range s.Tests {
		if tc.Function == "" {
			return nil, fmt.Errorf("test %d (%s) names no function", i+1, tc.Name)
		}
		if tc.Name == "" {
			s.Tests[i].Name = fmt.Sprintf("%s#%d", tc.Function, i+1)
		}
	}
	return &s, nil
}

// Module picks the dialect: the explicit dialect: key first, then the
// solution file's extension.
func (s *Suite) Module() (lang.Module, error) {
	if s.Dialect != "" {
		return lang.Lookup(s.Dialect)
	}
	if s.File != "" {
		return lang.ForFile(s.File)
	}
	return nil, fmt.Errorf("suite %s: %w: no dialect and no file", s.Name, lang.ErrUnknownDialect)
}

// expected decodes the expect: node into a plain Go value.
func (c *Case) expected() (any, error) {
	if c.Expect == nil {
		return nil, nil
	}
	var v any
	if err := c.Expect.Decode(&v); err != nil {
		return nil, err
	}
	return normalize(v)
}

// normalize routes a value through the runtime marshaller so ints and
// floats, and YAML maps and JSON maps, compare equal.
func normalize(x any) (any, error) {
	v, err := vm.FromNative(x)
	if err != nil {
		return nil, err
	}
	return vm.ToNative(v), nil
}
