// Package toolchain drives the external compile+link invocation used to
// turn a merged sketch source into a native simulation binary (spec
// §4.1, component C1). The concrete compiler/linker pair is pluggable;
// spec.md explicitly treats "the exact form of the native toolchain
// invocation" as an external collaborator.
package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/arduino/go-paths-helper"
	"github.com/pkg/errors"
)

// sketchSyntheticName is the stable filename diagnostics are normalized
// to, regardless of where the real temp file lives on disk.
const sketchSyntheticName = "sketch.ino"

// ErrToolchainUnavailable is returned when the configured compiler or
// linker binary cannot be located or started, distinct from a normal
// compile failure (spec §4.1, §7.3).
var ErrToolchainUnavailable = errors.New("toolchain unavailable")

// Result is the outcome of one Compile call.
type Result struct {
	Success bool
	// BinaryPath is the produced executable, valid only when Success.
	BinaryPath string
	// Stdout/Stderr are the raw compiler/linker streams.
	Stdout string
	Stderr string
	// RewrittenDiagnostics is Stderr with paths normalized to
	// sketch.ino and line numbers rewritten by lineOffset.
	RewrittenDiagnostics string
	// ProgramSize and RAMUsage are the verbatim size-report lines, when
	// the toolchain emitted them.
	ProgramSize string
	RAMUsage    string
}

// Header is a bundle member written to disk alongside the merged
// source, letting angle-style includes resolve against the real
// filesystem too (spec §4.3).
type Header struct {
	Name    string
	Content string
}

// Toolchain compiles and links a merged source file into a native
// binary ready for internal/runner to execute.
type Toolchain interface {
	// Compile builds mergedSource (already containing the mock runtime
	// + inlined headers + user sketch) into a native binary, with
	// headers also materialized on disk alongside it. lineOffset is
	// subtracted from every sketch.ino:N: diagnostic so locations are
	// reported in the user's own source coordinates.
	Compile(ctx context.Context, mergedSource string, headers []Header, lineOffset int) (Result, error)
}

// GCCToolchain invokes a gcc-compatible compiler and linker. Each call
// runs in its own temp directory, removed on return, per spec §4.1 and
// the teacher's generateBuildEnvironment isolation pattern.
type GCCToolchain struct {
	CompilerPath string
	BuildRoot    string
}

var programSizeRE = regexp.MustCompile(`(?i)^(Sketch uses|Program:)\s.*bytes.*$`)
var ramUsageRE = regexp.MustCompile(`(?i)^(Global variables use|Data:)\s.*bytes.*$`)
var diagLineRE = regexp.MustCompile(sketchSyntheticName + `:(\d+):`)

// Compile implements Toolchain.
func (t GCCToolchain) Compile(ctx context.Context, mergedSource string, headers []Header, lineOffset int) (Result, error) {
	buildDir, err := paths.MkTempDir(t.BuildRoot, "unosim-build")
	if err != nil {
		return Result{}, errors.Wrap(err, "creating isolated build directory")
	}
	defer buildDir.RemoveAll()

	sourcePath := buildDir.Join(sketchSyntheticName)
	if err := sourcePath.WriteFile([]byte(mergedSource)); err != nil {
		return Result{}, errors.Wrap(err, "writing merged source into build directory")
	}
	for _, h := range headers {
		if err := buildDir.Join(h.Name).WriteFile([]byte(h.Content)); err != nil {
			return Result{}, errors.Wrapf(err, "writing header %s into build directory", h.Name)
		}
	}
	binaryPath := buildDir.Join("sketch").String()

	args := []string{sourcePath.String(), "-o", binaryPath, "-x", "c++", "-std=c++17"}
	cmd := exec.CommandContext(ctx, t.compiler(), args...)
	cmd.Dir = buildDir.String()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil {
		if isNotFoundErr(runErr) {
			return Result{}, errors.Wrap(ErrToolchainUnavailable, runErr.Error())
		}
	}

	normalized := normalizeDiagnostics(stderr.String(), sourcePath.String(), lineOffset)
	res := Result{
		Success:              runErr == nil,
		Stdout:               stdout.String(),
		Stderr:               stderr.String(),
		RewrittenDiagnostics: normalized,
		ProgramSize:          firstMatch(programSizeRE, stdout.String()),
		RAMUsage:             firstMatch(ramUsageRE, stdout.String()),
	}
	if res.Success {
		// buildDir is removed on return, so the binary is moved out of it
		// into its own uniquely named file under BuildRoot first.
		kept, err := os.CreateTemp(t.BuildRoot, "unosim-sim-")
		if err != nil {
			return Result{}, errors.Wrap(err, "creating simulation binary file")
		}
		_ = kept.Close()
		if err := os.Rename(binaryPath, kept.Name()); err != nil {
			return Result{}, errors.Wrap(err, "moving simulation binary out of build directory")
		}
		res.BinaryPath = kept.Name()
	}
	return res, nil
}

func (t GCCToolchain) compiler() string {
	if t.CompilerPath != "" {
		return t.CompilerPath
	}
	return "gcc"
}

func isNotFoundErr(err error) bool {
	var execErr *exec.Error
	if !errors.As(err, &execErr) {
		return false
	}
	// A bare compiler name (e.g. the "gcc" default) fails PATH lookup
	// with exec.ErrNotFound; a name given as an explicit path instead
	// fails with a plain stat error, so both must be treated as
	// "toolchain unavailable" rather than just the sentinel.
	return execErr.Err == exec.ErrNotFound || os.IsNotExist(execErr.Err)
}

// normalizeDiagnostics strips the real temp file path, replacing it with
// sketch.ino, and rewrites every sketch.ino:N: occurrence to
// sketch.ino:max(1,N-lineOffset): per spec's §4.1 invariant.
func normalizeDiagnostics(raw, realPath string, lineOffset int) string {
	text := strings.ReplaceAll(raw, realPath, sketchSyntheticName)
	return diagLineRE.ReplaceAllStringFunc(text, func(m string) string {
		sub := diagLineRE.FindStringSubmatch(m)
		n, err := strconv.Atoi(sub[1])
		if err != nil {
			return m
		}
		rewritten := n - lineOffset
		if rewritten < 1 {
			rewritten = 1
		}
		return fmt.Sprintf("%s:%d:", sketchSyntheticName, rewritten)
	})
}

func firstMatch(re *regexp.Regexp, text string) string {
	for _, line := range strings.Split(text, "\n") {
		if re.MatchString(line) {
			return strings.TrimSpace(line)
		}
	}
	return ""
}
