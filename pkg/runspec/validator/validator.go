// Package validator checks a runspec.RunSpec for internal consistency
// before it reaches the CLI's engine wiring.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jihwankim/ceflags/pkg/runspec"
)

// Validator accumulates errors and warnings about a RunSpec.
type Validator struct {
	Warnings []string
	Errors   []string
}

// New creates a Validator.
func New() *Validator {
	return &Validator{Warnings: make([]string, 0), Errors: make([]string, 0)}
}

// Validate validates rs, resetting prior results.
func (v *Validator) Validate(rs *runspec.RunSpec) error {
	v.Warnings = v.Warnings[:0]
	v.Errors = v.Errors[:0]

	v.validateAPIVersion(rs)
	v.validateKind(rs)
	v.validateMetadata(rs)
	v.validateSpec(rs)

	if len(v.Errors) > 0 {
		return fmt.Errorf("validation failed with %d errors", len(v.Errors))
	}
	return nil
}

// HasWarnings reports whether any warnings were recorded.
func (v *Validator) HasWarnings() bool { return len(v.Warnings) > 0 }

// HasErrors reports whether any errors were recorded.
func (v *Validator) HasErrors() bool { return len(v.Errors) > 0 }

// GetReport formats accumulated warnings and errors.
func (v *Validator) GetReport() string {
	var sb strings.Builder
	if len(v.Errors) > 0 {
		sb.WriteString("ERRORS:\n")
		for _, e := range v.Errors {
			sb.WriteString(fmt.Sprintf("  - %s\n", e))
		}
	}
	if len(v.Warnings) > 0 {
		sb.WriteString("\nWARNINGS:\n")
		for _, w := range v.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", w))
		}
	}
	if len(v.Errors) == 0 && len(v.Warnings) == 0 {
		sb.WriteString("Validation passed with no issues.\n")
	}
	return sb.String()
}

func (v *Validator) validateAPIVersion(rs *runspec.RunSpec) {
	if rs.APIVersion == "" {
		v.Errors = append(v.Errors, "apiVersion is required")
		return
	}
	if rs.APIVersion != "ceflags/v1" {
		v.Warnings = append(v.Warnings, fmt.Sprintf("apiVersion %q may not be supported (expected ceflags/v1)", rs.APIVersion))
	}
}

func (v *Validator) validateKind(rs *runspec.RunSpec) {
	if rs.Kind == "" {
		v.Errors = append(v.Errors, "kind is required")
		return
	}
	if rs.Kind != "CERun" {
		v.Warnings = append(v.Warnings, fmt.Sprintf("kind %q may not be supported (expected CERun)", rs.Kind))
	}
}

var nameRegex = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

func (v *Validator) validateMetadata(rs *runspec.RunSpec) {
	if rs.Metadata.Name == "" {
		v.Errors = append(v.Errors, "metadata.name is required")
		return
	}
	if !nameRegex.MatchString(rs.Metadata.Name) {
		v.Errors = append(v.Errors, "metadata.name must be lowercase alphanumeric with hyphens")
	}
}

func (v *Validator) validateSpec(rs *runspec.RunSpec) {
	s := rs.Spec

	if s.Mode != "" && s.Mode != "search" && s.Mode != "minimize" {
		v.Errors = append(v.Errors, fmt.Sprintf("spec.mode %q is invalid (must be 'search' or 'minimize')", s.Mode))
	}

	if s.Context == "" {
		v.Errors = append(v.Errors, "spec.context is required")
	}

	if s.ConfigPath == "" {
		v.Errors = append(v.Errors, "spec.config_path is required")
	}

	if s.CC == "" {
		v.Warnings = append(v.Warnings, "spec.cc not set; the CLI's --cc flag or CEFLAGS_CC must supply it")
	}

	if s.Processes < 0 {
		v.Errors = append(v.Errors, "spec.processes cannot be negative")
	}

	if s.Mode == "minimize" && s.MinimizeTarget == 0 {
		v.Warnings = append(v.Warnings, "spec.minimize_target is 0; confirm this is the intended target score, not an omitted field")
	}

	if s.BenchmarkTimeout < 0 {
		v.Errors = append(v.Errors, "spec.benchmark_timeout cannot be negative")
	}
}
