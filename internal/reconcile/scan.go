package reconcile

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/leapstack-labs/sqgen/pkg/core"
)

// Defaults for scanning Gradle build scripts.
const (
	DefaultPrefix = "com.squareup.sqldelight:gradle-plugin:"
)

// DefaultConfigFiles are the configuration file names scanned by default.
var DefaultConfigFiles = []string{"build.gradle", "build.gradle.kts"}

// Declaration is a version token found in a configuration file.
type Declaration struct {
	Path    string
	Version string
	Span    core.Span // Location of the version text, excluding quotes
	Stamp   uint64    // Stamp of the file content the span refers to
}

// ScanResult is the outcome of scanning a project.
type ScanResult struct {
	// Declaration is the first match in walk order, or nil.
	Declaration *Declaration

	// HasManagedFiles reports whether any file of the managed extension exists.
	HasManagedFiles bool

	// Errors holds one *core.ConfigScanError per unreadable configuration file.
	Errors []error
}

// Scanner finds the plugin version declared in a project's configuration.
type Scanner struct {
	configFiles map[string]bool
	extension   string
	skipDirs    map[string]bool
	pattern     *regexp.Regexp
}

// NewScanner creates a Scanner looking for a quoted literal that starts with
// prefix. Empty configFiles selects DefaultConfigFiles.
func NewScanner(prefix string, configFiles []string, extension string, skipDirs []string) *Scanner {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if len(configFiles) == 0 {
		configFiles = DefaultConfigFiles
	}
	names := make(map[string]bool, len(configFiles))
	for _, name := range configFiles {
		names[name] = true
	}
	skip := make(map[string]bool, len(skipDirs))
	for _, dir := range skipDirs {
		skip[core.CleanPath(dir)] = true
	}
	return &Scanner{
		configFiles: names,
		extension:   extension,
		skipDirs:    skip,
		pattern:     regexp.MustCompile(`['"]` + regexp.QuoteMeta(prefix) + `([^'"\s]*)['"]`),
	}
}

// Scan walks root in lexical order.
func (s *Scanner) Scan(root string) (*ScanResult, error) {
	res := &ScanResult{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			res.Errors = append(res.Errors, &core.ConfigScanError{Path: path, Err: err})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), ".") || s.skipDirs[core.CleanPath(path)]) {
				return filepath.SkipDir
			}
			return nil
		}

		if core.HasExtension(path, s.extension) {
			res.HasManagedFiles = true
		}
		if res.Declaration != nil || !s.configFiles[d.Name()] {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			res.Errors = append(res.Errors, &core.ConfigScanError{Path: path, Err: err})
			return nil
		}
		if decl, ok := s.Find(path, content); ok {
			res.Declaration = decl
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return res, nil
}

// Find returns the first declaration in content that is a string literal,
// not text inside a comment.
func (s *Scanner) Find(path string, content []byte) (*Declaration, bool) {
	comments := commentSpans(content)
	for _, m := range s.pattern.FindAllSubmatchIndex(content, -1) {
		if inSpans(comments, m[0]) {
			continue
		}
		start, end := m[2], m[3]
		line := bytes.Count(content[:start], []byte("\n")) + 1
		column := start - bytes.LastIndexByte(content[:start], '\n')
		return &Declaration{
			Path:    path,
			Version: string(content[start:end]),
			Span:    core.Span{Start: start, End: end, Line: line, Column: column},
			Stamp:   core.Stamp(content),
		}, true
	}
	return nil, false
}

// commentSpans returns the [start, end) byte ranges of line and block
// comments in Groovy or Kotlin source. Quoted strings, including triple
// quoted ones, are skipped so a "//" inside a URL is not a comment.
func commentSpans(src []byte) [][2]int {
	var spans [][2]int
	for i := 0; i < len(src); {
		switch {
		case bytes.HasPrefix(src[i:], []byte("//")):
			end := bytes.IndexByte(src[i:], '\n')
			if end < 0 {
				end = len(src) - i
			}
			spans = append(spans, [2]int{i, i + end})
			i += end
		case bytes.HasPrefix(src[i:], []byte("/*")):
			end := bytes.Index(src[i+2:], []byte("*/"))
			if end < 0 {
				spans = append(spans, [2]int{i, len(src)})
				return spans
			}
			spans = append(spans, [2]int{i, i + 2 + end + 2})
			i += 2 + end + 2
		case src[i] == '\'' || src[i] == '"':
			i = skipString(src, i)
		default:
			i++
		}
	}
	return spans
}

// skipString returns the index after the string literal opening at i.
func skipString(src []byte, i int) int {
	q := src[i]
	triple := []byte{q, q, q}
	if bytes.HasPrefix(src[i:], triple) {
		end := bytes.Index(src[i+3:], triple)
		if end < 0 {
			return len(src)
		}
		return i + 3 + end + 3
	}
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case q:
			return j + 1
		case '\n':
			return j
		}
	}
	return len(src)
}

func inSpans(spans [][2]int, pos int) bool {
	for _, sp := range spans {
		if pos >= sp[0] && pos < sp[1] {
			return true
		}
	}
	return false
}
