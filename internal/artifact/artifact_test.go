package artifact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mockRuntime = "// mock runtime preamble\n// line two\n"

func TestBuildMergesMockRuntimeAndSketch(t *testing.T) {
	bundle := Bundle{
		MainName: "sketch.ino",
		Files: []File{
			{Name: "sketch.ino", Content: "void setup(){}\nvoid loop(){}\n"},
		},
	}
	art, err := Build(bundle, mockRuntime)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(art.MergedSource, mockRuntime))
	assert.Contains(t, art.MergedSource, `#line 1 "sketch.ino"`)
	assert.Equal(t, 0, art.LineOffset)
}

func TestBuildMissingEntryPointsFails(t *testing.T) {
	bundle := Bundle{
		MainName: "sketch.ino",
		Files:    []File{{Name: "sketch.ino", Content: "int x = 1;\n"}},
	}
	_, err := Build(bundle, mockRuntime)
	assert.ErrorIs(t, err, ErrMissingEntryPoints)
}

func TestBuildInlinesQuotedHeaderWithFramingComments(t *testing.T) {
	bundle := Bundle{
		MainName: "sketch.ino",
		Files: []File{
			{Name: "sketch.ino", Content: "#include \"h.h\"\nvoid setup(){}\nvoid loop(){ undefinedFn(); }\n"},
			{Name: "h.h", Content: strings.Repeat("// comment line\n", 10)},
		},
	}
	art, err := Build(bundle, mockRuntime)
	require.NoError(t, err)
	assert.Contains(t, art.MergedSource, "--- Start of h.h ---")
	assert.Contains(t, art.MergedSource, "--- End of h.h ---")
	// 10 newlines from the header body plus the two newlines the framing
	// template itself introduces around it.
	assert.Equal(t, 12, art.LineOffset)
}

func TestBuildLineOffsetMapsDiagnosticBackToUserLine(t *testing.T) {
	// Spec scenario: a 10-line header pushes the real undefinedFn() call
	// (user line 3) down inside the merged translation unit; LineOffset
	// must be exactly what's needed to map it back.
	header := strings.Repeat("// pad\n", 10)
	bundle := Bundle{
		MainName: "sketch.ino",
		Files: []File{
			{Name: "sketch.ino", Content: "#include \"h.h\"\nvoid setup(){}\nvoid loop(){ undefinedFn(); }\n"},
			{Name: "h.h", Content: header},
		},
	}
	art, err := Build(bundle, mockRuntime)
	require.NoError(t, err)

	lines := strings.Split(art.MergedSource, "\n")
	mergedLineNum := -1
	for i, l := range lines {
		if strings.Contains(l, "undefinedFn()") {
			mergedLineNum = i + 1
			break
		}
	}
	require.NotEqual(t, -1, mergedLineNum)

	// The #line directive resets the counter to 1 at the first user
	// source line, so the compiler-visible line number (independent of
	// the mock runtime preamble) is mergedLineNum minus the preamble's
	// own line count.
	preambleLines := strings.Count(mockRuntime, "\n") + 1 // + the #line directive itself
	compilerLineNum := mergedLineNum - preambleLines
	userLine := compilerLineNum - art.LineOffset
	assert.Equal(t, 3, userLine)
}

func TestBuildUnresolvedIncludeLeftUntouched(t *testing.T) {
	bundle := Bundle{
		MainName: "sketch.ino",
		Files: []File{
			{Name: "sketch.ino", Content: "#include \"missing.h\"\nvoid setup(){}\nvoid loop(){}\n"},
		},
	}
	art, err := Build(bundle, mockRuntime)
	require.NoError(t, err)
	assert.Contains(t, art.MergedSource, `#include "missing.h"`)
	assert.Equal(t, 0, art.LineOffset)
}

func TestHeaderFilesExcludesMain(t *testing.T) {
	bundle := Bundle{
		MainName: "sketch.ino",
		Files: []File{
			{Name: "sketch.ino", Content: ""},
			{Name: "h.h", Content: "int x;"},
		},
	}
	headers := HeaderFiles(bundle)
	require.Len(t, headers, 1)
	assert.Equal(t, "h.h", headers[0].Name)
}
