package project

import (
	"path/filepath"
	"strings"
)

var extensions = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".kt":    "kotlin",
	".kts":   "kotlin",
	".rs":    "rust",
	".rb":    "ruby",
	".php":   "php",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".cxx":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".swift": "swift",
	".scala": "scala",
	".ex":    "elixir",
	".exs":   "elixir",
	".lua":   "lua",
	".sh":    "bash",
	".bash":  "bash",
	".sql":   "sql",
	".r":     "r",
	".dart":  "dart",
	".hs":    "haskell",
}

// LanguageFor returns the language for a file name, or "" if the
// extension is unknown.
func LanguageFor(name string) string {
	return extensions[strings.ToLower(filepath.Ext(name))]
}

// Resolve picks the language for a request: an explicit choice wins,
// then the file extension, then the project in dir.
func Resolve(explicit, file, dir string) string {
	if explicit != "" {
		return strings.ToLower(explicit)
	}
	if lang := LanguageFor(file); lang != "" {
		return lang
	}
	if dir == "" {
		return ""
	}
	return Detect(dir).Language
}
