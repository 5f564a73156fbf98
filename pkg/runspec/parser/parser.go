// Package parser parses and applies CLI overrides to runspec.RunSpec
// documents.
package parser

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jihwankim/ceflags/pkg/runspec"
)

// Parser parses RunSpec YAML with ${VAR}/$VAR substitution.
type Parser struct {
	Variables map[string]string
}

// New creates a Parser with optional seed variables.
func New(variables map[string]string) *Parser {
	if variables == nil {
		variables = make(map[string]string)
	}
	return &Parser{Variables: variables}
}

// ParseFile parses a RunSpec from a YAML file.
func (p *Parser) ParseFile(path string) (*runspec.RunSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run spec file: %w", err)
	}
	return p.Parse(data)
}

// Parse parses a RunSpec from YAML bytes.
func (p *Parser) Parse(data []byte) (*runspec.RunSpec, error) {
	substituted := p.substituteVariables(string(data))

	var rs runspec.RunSpec
	if err := yaml.Unmarshal([]byte(substituted), &rs); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := p.validateRequiredFields(&rs); err != nil {
		return nil, err
	}

	return &rs, nil
}

var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

func (p *Parser) substituteVariables(content string) string {
	return varPattern.ReplaceAllStringFunc(content, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}

		if val, ok := p.Variables[name]; ok {
			return val
		}
		if val := os.Getenv(name); val != "" {
			return val
		}
		return match
	})
}

// SetVariable sets a substitution variable.
func (p *Parser) SetVariable(key, value string) {
	p.Variables[key] = value
}

// ParseOverrides parses CLI override strings (--set key=value).
func ParseOverrides(overrides []string) (map[string]string, error) {
	result := make(map[string]string)
	for _, o := range overrides {
		parts := strings.SplitN(o, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid override format: %s (expected key=value)", o)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			return nil, fmt.Errorf("empty key in override: %s", o)
		}
		result[key] = value
	}
	return result, nil
}

// ApplyOverrides applies CLI overrides to a RunSpec.
func ApplyOverrides(rs *runspec.RunSpec, overrides map[string]string) error {
	for key, value := range overrides {
		switch key {
		case "cc", "spec.cc":
			rs.Spec.CC = value
		case "context", "spec.context":
			rs.Spec.Context = value
		case "benchmark", "spec.benchmark":
			rs.Spec.Benchmark = value
		case "processes", "spec.processes":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid processes override: %w", err)
			}
			rs.Spec.Processes = n
		case "drop_pessimizing_flags", "spec.drop_pessimizing_flags":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("invalid drop_pessimizing_flags override: %w", err)
			}
			rs.Spec.DropPessimizingFlags = b
		case "benchmark_timeout", "spec.benchmark_timeout":
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid benchmark_timeout override: %w", err)
			}
			rs.Spec.BenchmarkTimeout = d
		default:
			return fmt.Errorf("unsupported override key: %s", key)
		}
	}
	return nil
}

func (p *Parser) validateRequiredFields(rs *runspec.RunSpec) error {
	if rs.APIVersion == "" {
		return fmt.Errorf("apiVersion is required")
	}
	if rs.Kind == "" {
		return fmt.Errorf("kind is required")
	}
	if rs.Metadata.Name == "" {
		return fmt.Errorf("metadata.name is required")
	}
	if rs.Spec.Context == "" {
		return fmt.Errorf("spec.context is required")
	}
	if rs.Spec.ConfigPath == "" {
		return fmt.Errorf("spec.config_path is required")
	}
	return nil
}
