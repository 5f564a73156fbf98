package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingPathReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := DefaultConfig()
	if cfg.Compiler.CC != want.Compiler.CC || cfg.Reporting.OutputDir != want.Reporting.OutputDir {
		t.Fatalf("got %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadMergesOverPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "compiler:\n  cc: clang\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Compiler.CC != "clang" {
		t.Fatalf("got CC %q, want clang", cfg.Compiler.CC)
	}
	// Fields absent from the file retain their defaults.
	if cfg.Reporting.OutputDir != "./workspace" {
		t.Fatalf("got OutputDir %q, want default ./workspace", cfg.Reporting.OutputDir)
	}
}

func TestLoadExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("CEFLAGS_BASE_OPT", "-O3")
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "compiler:\n  cc: gcc\n  base_opt: ${CEFLAGS_BASE_OPT}\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Compiler.BaseOpt != "-O3" {
		t.Fatalf("got BaseOpt %q, want -O3 (expanded from env)", cfg.Compiler.BaseOpt)
	}
}

func TestLoadCEFLAGSCCOverridesFile(t *testing.T) {
	t.Setenv("CEFLAGS_CC", "clang-17")
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "compiler:\n  cc: gcc\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Compiler.CC != "clang-17" {
		t.Fatalf("got CC %q, want clang-17 (CEFLAGS_CC override)", cfg.Compiler.CC)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Compiler.CC = "gcc-13"
	cfg.Pool.Processes = 8

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Compiler.CC != "gcc-13" || loaded.Pool.Processes != 8 {
		t.Fatalf("got %+v, want CC=gcc-13 Processes=8", loaded)
	}
}

func TestValidateRequiresCompilerCC(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Compiler.CC = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject an empty compiler.cc")
	}
}

func TestValidateRequiresOutputDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Reporting.OutputDir = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject an empty reporting.output_dir")
	}
}

func TestValidateRejectsNegativeProcesses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pool.Processes = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject negative pool.processes")
	}
}

func TestValidateRejectsNegativeMinimizeTolerance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.MinimizeTolerance = -0.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject negative engine.minimize_tolerance")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("expected default config to validate, got: %v", err)
	}
}
