package api

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MoDevIO/unosim/internal/artifact"
)

// compileRequest is the body of POST /api/compile and /api/upload (spec §6.1).
type compileRequest struct {
	Code    string       `json:"code"`
	Headers []headerFile `json:"headers"`
}

type headerFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCompileRequest(w, r)
	if !ok {
		return
	}
	bundle := toBundle(req)
	result, _ := s.runCompile(r.Context(), bundle)
	writeJSON(w, http.StatusOK, result)
}

// handleUpload mirrors handleCompile but with the §6.1 upload response
// shape: {success: true} on success, otherwise {success: false, raw}
// carrying the toolchain's stderr.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCompileRequest(w, r)
	if !ok {
		return
	}
	bundle := toBundle(req)
	result, tcResult := s.runCompile(r.Context(), bundle)
	if result.Success {
		writeJSON(w, http.StatusOK, struct {
			Success bool `json:"success"`
		}{true})
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool   `json:"success"`
		Raw     string `json:"raw,omitempty"`
	}{false, tcResult.Stderr})
}

func (s *Server) decodeCompileRequest(w http.ResponseWriter, r *http.Request) (compileRequest, bool) {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	var req compileRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return compileRequest{}, false
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "code must not be empty")
		return compileRequest{}, false
	}
	return req, true
}

func toBundle(req compileRequest) artifact.Bundle {
	files := []artifact.File{{Name: "sketch.ino", Content: req.Code}}
	for _, h := range req.Headers {
		files = append(files, artifact.File{Name: h.Name, Content: h.Content})
	}
	return artifact.Bundle{MainName: "sketch.ino", Files: files}
}

func (s *Server) handleListExamples(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.examples.List())
}

func (s *Server) handleGetExample(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	path = strings.TrimPrefix(path, "/examples/")
	content, err := s.examples.Read(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "example not found")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(content)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{message})
}

// exampleCatalog lists and serves the bundled example sketches, rooted
// at cfg.ExamplesDir (spec §6.1).
type exampleCatalog struct {
	root string
}

func newExampleCatalog(root string) *exampleCatalog {
	return &exampleCatalog{root: root}
}

// exampleMeta is one GET /api/examples entry: a relative path plus its
// display title, derived from a leading "// Title:" comment line
// (SPEC_FULL.md's example-catalog supplement).
type exampleMeta struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

// List returns every example's path and title, sorted by path for
// deterministic output.
func (c *exampleCatalog) List() []exampleMeta {
	var paths []string
	_ = walk(c.root, func(rel string) {
		if strings.HasSuffix(rel, ".ino") {
			paths = append(paths, rel)
		}
	})
	sort.Strings(paths)

	metas := make([]exampleMeta, len(paths))
	for i, p := range paths {
		metas[i] = exampleMeta{Path: p, Title: titleFor(p, c.root)}
	}
	return metas
}

// titleFor extracts the "// Title: <text>" leading-comment convention
// from a sketch, falling back to its file name when absent, mirroring
// the teacher's readProperties line-oriented scan in
// handler/properties.go.
func titleFor(relPath, root string) string {
	f, err := os.Open(filepath.Join(root, relPath))
	if err != nil {
		return filepath.Base(relPath)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if title, ok := strings.CutPrefix(line, "// Title:"); ok {
			return strings.TrimSpace(title)
		}
		if line != "" && !strings.HasPrefix(line, "//") {
			break
		}
	}
	return filepath.Base(relPath)
}

// Read returns the content of one example file by its relative path,
// rejecting any attempt to escape the catalog root.
func (c *exampleCatalog) Read(relPath string) ([]byte, error) {
	clean := filepath.Clean("/" + relPath)[1:]
	if clean == "" || strings.HasPrefix(clean, "..") {
		return nil, io.ErrUnexpectedEOF
	}
	return readFile(filepath.Join(c.root, clean))
}
