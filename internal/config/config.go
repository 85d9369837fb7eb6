// Package config assembles process-wide configuration from flags and
// environment into a single struct that is injected into constructors,
// replacing the teacher's package-level globals (handler.Setup) with an
// explicit value per spec's Design Note on global singletons.
package config

import (
	"os"
	"strconv"
)

// Config holds every knob listed in spec §6.5 plus the toolchain/mock
// runtime locations needed to wire internal/toolchain and internal/artifact.
type Config struct {
	// Port is the HTTP listen port. Default 3000.
	Port string
	// Production is true when NODE_ENV is "production". No component
	// reads it: logging and error bodies are the same in both modes.
	Production bool
	// DisableRateLimit turns off the per-IP token bucket, for tests.
	DisableRateLimit bool

	// CompilerPath names the external compiler binary invoked by
	// internal/toolchain.GCCToolchain; a single gcc-compatible invocation
	// both compiles and links (spec §4.1), so no separate linker knob.
	CompilerPath string
	// MockRuntimePath points at the opaque Arduino mock runtime asset
	// (spec §6.4) prepended to every merged source by internal/artifact.
	MockRuntimePath string
	// ExamplesDir is the root directory served by /api/examples and
	// /examples/<path>.
	ExamplesDir string
	// BuildRoot is the parent directory under which per-compile temp
	// dirs are created and removed (spec §4.1, §5).
	BuildRoot string

	// MaxUploadBytes caps request bodies on /api/compile and /api/upload.
	MaxUploadBytes int64
	// DefaultSimulationTimeout is set to 0 and is not read by any
	// component: a start_simulation request that omits timeoutMs runs
	// with no timeout.
	DefaultSimulationTimeout int
}

// FromEnv builds a Config from the environment variables named in spec
// §6.5, applying the documented defaults.
func FromEnv() Config {
	cfg := Config{
		Port:                     envOr("PORT", "3000"),
		Production:               os.Getenv("NODE_ENV") == "production",
		DisableRateLimit:         envBool("DISABLE_RATE_LIMIT"),
		CompilerPath:             envOr("UNOSIM_CC", "gcc"),
		MockRuntimePath:          envOr("UNOSIM_MOCK_RUNTIME", "runtime/arduino_mock.cpp"),
		ExamplesDir:              envOr("UNOSIM_EXAMPLES_DIR", "examples"),
		BuildRoot:                envOr("UNOSIM_BUILD_ROOT", os.TempDir()),
		MaxUploadBytes:           1 << 20,
		DefaultSimulationTimeout: 0,
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}
