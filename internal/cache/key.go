// Path: internal/cache/key.go
package cache

import (
	"path/filepath"
	"regexp"
)

const (
	globalCacheName = "top_loras"
	maxNameLength   = 200
)

var (
	unsafeChars = regexp.MustCompile(`[\\/:*?"<>|]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// SanitizeFilename makes a filesystem-safe name. Empty input becomes "model".
func SanitizeFilename(name string) string {
	if name == "" {
		name = "model"
	}
	name = unsafeChars.ReplaceAllString(name, "_")
	name = whitespace.ReplaceAllString(name, "_")
	if r := []rune(name); len(r) > maxNameLength {
		name = string(r[:maxNameLength])
	}
	return name
}

// Paths are the roots that cache documents and cover images live under.
type Paths struct {
	Dir       string
	ImagesDir string
}

// Location is where one fetch reads and writes its cache document and images.
type Location struct {
	CacheFile string
	ImagesDir string
}

// Key is the cache key for the location: its document path.
func (l Location) Key() string {
	return l.CacheFile
}

// Resolve derives the location for a task. With perTask set and a task given,
// the document and image directory are task-scoped so that concurrent runs
// for different tasks never share files.
func Resolve(p Paths, task string, perTask bool) Location {
	if perTask && task != "" {
		safe := SanitizeFilename(task)
		return Location{
			CacheFile: filepath.Join(p.Dir, globalCacheName+"_"+safe+".json"),
			ImagesDir: filepath.Join(p.ImagesDir, safe),
		}
	}
	return Location{
		CacheFile: filepath.Join(p.Dir, globalCacheName+".json"),
		ImagesDir: p.ImagesDir,
	}
}
