package scan

import (
	"path/filepath"
	"strings"
)

// Directories never descended into: VCS internals, caches, build output,
// dependency installs, virtual environments.
var ignoredDirs = map[string]bool{
	".git":          true,
	".hg":           true,
	".svn":          true,
	"__pycache__":   true,
	".pytest_cache": true,
	".mypy_cache":   true,
	".ruff_cache":   true,
	"node_modules":  true,
	".venv":         true,
	"venv":          true,
	"env":           true,
	".env":          true,
	"dist":          true,
	"build":         true,
	".tox":          true,
	".nox":          true,
	"htmlcov":       true,
	".coverage":     true,
	"eggs":          true,
	".idea":         true,
	".vscode":       true,
}

var binaryExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".webp": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true,
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".7z": true, ".rar": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true,
	".pyc": true, ".pyo": true, ".class": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wav": true,
	".sqlite": true, ".db": true,
}

var langByExt = map[string]string{
	".py":    "Python",
	".js":    "JavaScript",
	".ts":    "TypeScript",
	".jsx":   "JavaScript (React)",
	".tsx":   "TypeScript (React)",
	".java":  "Java",
	".go":    "Go",
	".rs":    "Rust",
	".rb":    "Ruby",
	".php":   "PHP",
	".cs":    "C#",
	".cpp":   "C++",
	".c":     "C",
	".h":     "C/C++ Header",
	".hpp":   "C++ Header",
	".swift": "Swift",
	".kt":    "Kotlin",
	".scala": "Scala",
	".sql":   "SQL",
	".sh":    "Shell",
	".bash":  "Bash",
	".zsh":   "Zsh",
	".yml":   "YAML",
	".yaml":  "YAML",
	".json":  "JSON",
	".xml":   "XML",
	".html":  "HTML",
	".css":   "CSS",
	".scss":  "SCSS",
	".sass":  "Sass",
	".less":  "Less",
	".md":    "Markdown",
	".rst":   "reStructuredText",
	".toml":  "TOML",
	".ini":   "INI",
	".cfg":   "Config",
	".conf":  "Config",
}

// LanguageFor maps a file extension (with leading dot) to a language
// label, or "" when the extension is unknown.
func LanguageFor(ext string) string {
	return langByExt[strings.ToLower(ext)]
}

// IsBinaryPath reports whether a path looks binary judging by extension.
func IsBinaryPath(p string) bool {
	return binaryExts[strings.ToLower(filepath.Ext(p))]
}

func isIgnoredSegment(seg string) bool {
	if ignoredDirs[seg] {
		return true
	}
	return strings.HasSuffix(seg, ".egg-info")
}
