// Package scan walks a repository tree and builds an immutable
// RepoStructure: the file and directory inventory plus per-language
// line totals that every downstream analyzer consumes.
package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrNotDirectory is returned when the scan root is missing or not a
// directory. It is the only fatal condition; every per-file problem is
// recorded on the FileInfo and the scan continues.
var ErrNotDirectory = errors.New("scan root is not a directory")

// Options control a single scan. The zero value means: 2MB size guard
// disabled (unbounded), no ignore file, no glob filters.
type Options struct {
	// MaxFileSize caps how many bytes of a file are eligible for
	// reading; larger files are recorded without content. <= 0 means
	// unbounded.
	MaxFileSize int64
	// RespectIgnoreFile applies .gitignore patterns found at the root.
	RespectIgnoreFile bool
	// IncludeGlobs, when non-empty, restricts files to those matching
	// at least one glob (repo-relative, doublestar syntax).
	IncludeGlobs []string
	// ExcludeGlobs drops any matching file.
	ExcludeGlobs []string
}

// FileInfo describes a single scanned file. Content is nil for binary
// files, oversized files, and files that failed to read; ReadError
// carries the reason in the latter two cases.
type FileInfo struct {
	Path      string  `json:"path"`
	RelPath   string  `json:"relative_path"`
	Ext       string  `json:"extension"`
	Size      int64   `json:"size_bytes"`
	Content   *string `json:"-"`
	LineCount int     `json:"line_count"`
	IsBinary  bool    `json:"is_binary"`
	ReadError string  `json:"read_error,omitempty"`
}

// Text returns the file content, or "" when none was read.
func (f *FileInfo) Text() string {
	if f.Content == nil {
		return ""
	}
	return *f.Content
}

// DirectoryInfo describes one directory with its immediate child counts.
type DirectoryInfo struct {
	Path        string `json:"path"`
	RelPath     string `json:"relative_path"`
	FileCount   int    `json:"file_count"`
	SubdirCount int    `json:"subdir_count"`
}

// LanguageCount is one entry of the per-language line totals.
type LanguageCount struct {
	Name  string `json:"name"`
	Files int    `json:"files"`
	Lines int    `json:"lines"`
}

// RepoStructure is the complete result of one scan. It is built once
// and never mutated afterwards; concurrent readers need no locking.
type RepoStructure struct {
	RootPath    string          `json:"root_path"`
	Files       []FileInfo      `json:"files"`
	Directories []DirectoryInfo `json:"directories"`
	TotalFiles  int             `json:"total_files"`
	TotalLines  int             `json:"total_lines"`
	// Languages is sorted by line count descending, name ascending on
	// ties, so serialized output is deterministic.
	Languages []LanguageCount `json:"languages_detected"`
}

// FilesByExt returns the files carrying the given extension (lowercase,
// with dot), preserving scan order.
func (s *RepoStructure) FilesByExt(ext string) []FileInfo {
	var out []FileInfo
	for _, f := range s.Files {
		if f.Ext == ext {
			out = append(out, f)
		}
	}
	return out
}

// FindFile returns the first file whose base name matches name.
func (s *RepoStructure) FindFile(name string) *FileInfo {
	for i := range s.Files {
		if filepath.Base(s.Files[i].RelPath) == name {
			return &s.Files[i]
		}
	}
	return nil
}

// TopLevel returns the directories and files sitting directly under the
// root.
func (s *RepoStructure) TopLevel() ([]DirectoryInfo, []FileInfo) {
	var dirs []DirectoryInfo
	var files []FileInfo
	for _, d := range s.Directories {
		if !strings.Contains(d.RelPath, "/") {
			dirs = append(dirs, d)
		}
	}
	for _, f := range s.Files {
		if !strings.Contains(f.RelPath, "/") {
			files = append(files, f)
		}
	}
	return dirs, files
}

// FileVisit carries per-file progress metadata to user callbacks.
type FileVisit struct {
	// RelPath is the repo-relative path using forward slashes.
	RelPath string
	Size    int64
	Skipped bool
}

// VisitFunc is an optional callback invoked for every visited file,
// useful for progress reporting. It runs on the scanning goroutine.
type VisitFunc func(v FileVisit)

// Scan walks root and returns the repository structure. Traversal order
// is lexicographic, so scanning an unmodified tree twice yields
// identical output. Only a missing or non-directory root is fatal.
func Scan(root string, opts Options) (*RepoStructure, error) {
	return ScanWithCallback(root, opts, nil)
}

// ScanWithCallback is Scan plus a per-file progress callback.
func ScanWithCallback(root string, opts Options, cb VisitFunc) (*RepoStructure, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}
	st, err := os.Stat(abs)
	if err != nil || !st.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	var ignore *ignoreMatcher
	if opts.RespectIgnoreFile {
		ignore = loadIgnoreFile(abs)
	}

	structure := &RepoStructure{RootPath: abs}
	langLines := map[string]int{}
	langFiles := map[string]int{}

	walkErr := filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == abs {
				return fmt.Errorf("%w: %s", ErrNotDirectory, root)
			}
			return nil // unreadable entry, keep going
		}
		if p == abs {
			return nil
		}
		rel, relErr := filepath.Rel(abs, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if hasIgnoredSegment(rel) || ignore.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			structure.Directories = append(structure.Directories, describeDir(p, rel))
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !includesFile(opts, rel) {
			return nil
		}

		fi := readFile(p, rel, opts)
		structure.Files = append(structure.Files, fi)
		structure.TotalLines += fi.LineCount
		if lang := LanguageFor(fi.Ext); lang != "" {
			langLines[lang] += fi.LineCount
			langFiles[lang]++
		}
		if cb != nil {
			cb(FileVisit{RelPath: rel, Size: fi.Size, Skipped: fi.Content == nil})
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	structure.TotalFiles = len(structure.Files)
	structure.Languages = sortLanguages(langLines, langFiles)
	return structure, nil
}

func hasIgnoredSegment(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if isIgnoredSegment(seg) {
			return true
		}
	}
	return false
}

func includesFile(opts Options, rel string) bool {
	if len(opts.IncludeGlobs) > 0 {
		matched := false
		for _, g := range opts.IncludeGlobs {
			if ok, _ := doublestar.Match(g, rel); ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, g := range opts.ExcludeGlobs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return false
		}
	}
	return true
}

func describeDir(p, rel string) DirectoryInfo {
	info := DirectoryInfo{Path: p, RelPath: rel}
	entries, err := os.ReadDir(p)
	if err != nil {
		return info
	}
	for _, e := range entries {
		if e.IsDir() {
			info.SubdirCount++
		} else {
			info.FileCount++
		}
	}
	return info
}

func readFile(p, rel string, opts Options) FileInfo {
	fi := FileInfo{
		Path:    p,
		RelPath: rel,
		Ext:     strings.ToLower(filepath.Ext(rel)),
	}
	if st, err := os.Stat(p); err == nil {
		fi.Size = st.Size()
	} else {
		fi.ReadError = err.Error()
		return fi
	}
	fi.IsBinary = IsBinaryPath(rel)

	if opts.MaxFileSize > 0 && fi.Size > opts.MaxFileSize {
		fi.ReadError = fmt.Sprintf("skipped: file size %d exceeds limit %d", fi.Size, opts.MaxFileSize)
		return fi
	}
	if fi.IsBinary {
		return fi
	}

	raw, err := os.ReadFile(p)
	if err != nil {
		fi.ReadError = err.Error()
		return fi
	}
	text := decodeText(raw)
	fi.Content = &text
	fi.LineCount = countLines(text)
	return fi
}

// decodeText interprets raw as UTF-8 and falls back to Latin-1, which
// can represent any byte sequence, so decoding itself never fails.
func decodeText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes)
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}

func sortLanguages(langLines, langFiles map[string]int) []LanguageCount {
	out := make([]LanguageCount, 0, len(langLines))
	for name, lines := range langLines {
		out = append(out, LanguageCount{Name: name, Files: langFiles[name], Lines: lines})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Lines != out[j].Lines {
			return out[i].Lines > out[j].Lines
		}
		return out[i].Name < out[j].Name
	})
	return out
}
