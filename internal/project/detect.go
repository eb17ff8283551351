// Package project guesses the programming language of the code kx is asked
// about, from file extensions and from the project around the working
// directory.
package project

import (
	"os"
	"path/filepath"
	"strings"
)

// Info holds detected project metadata.
type Info struct {
	Language    string   // e.g. "go", "javascript", "python"; empty when unknown
	Dir         string   // directory that was inspected
	DirName     string   // basename of Dir
	HasGit      bool     // is this a git repo
	ConfigFiles []string // detected marker files
}

// markers maps file names to languages.
var markers = map[string]string{
	"go.mod":           "go",
	"go.sum":           "go",
	"package.json":     "javascript",
	"yarn.lock":        "javascript",
	"pnpm-lock.yaml":   "javascript",
	"tsconfig.json":    "typescript",
	"requirements.txt": "python",
	"pyproject.toml":   "python",
	"Pipfile":          "python",
	"setup.py":         "python",
	"Cargo.toml":       "rust",
	"Gemfile":          "ruby",
	"composer.json":    "php",
	"build.gradle":     "java",
	"pom.xml":          "java",
	"build.gradle.kts": "kotlin",
	"CMakeLists.txt":   "cpp",
	"Package.swift":    "swift",
	"mix.exs":          "elixir",
}

// refines lists marker languages that override a more generic one found
// in the same directory.
var refines = map[string]string{
	"typescript": "javascript",
	"kotlin":     "java",
}

// Detect inspects dir and returns what it finds. A directory that cannot
// be read yields an Info with no language.
func Detect(dir string) *Info {
	info := &Info{
		Dir:     dir,
		DirName: filepath.Base(dir),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return info
	}

	for _, entry := range entries {
		name := entry.Name()

		if name == ".git" {
			info.HasGit = true
			continue
		}

		if lang, ok := markers[name]; ok {
			info.ConfigFiles = append(info.ConfigFiles, name)
			if info.Language == "" || refines[lang] == info.Language {
				info.Language = lang
			}
		}
	}

	return info
}

// DetectCwd runs Detect on the working directory.
func DetectCwd() *Info {
	cwd, _ := os.Getwd()
	return Detect(cwd)
}

// Summary returns a human-readable description for `kx doctor`.
func (p *Info) Summary() string {
	var parts []string

	parts = append(parts, "Current directory: "+p.Dir)

	if p.Language != "" {
		parts = append(parts, "Project language: "+p.Language)
	}

	if p.HasGit {
		parts = append(parts, "Git repository: yes")
	}

	if len(p.ConfigFiles) > 0 {
		parts = append(parts, "Config files: "+strings.Join(p.ConfigFiles, ", "))
	}

	return strings.Join(parts, "\n")
}
