// Package discover finds component documents in a project.
package discover

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/remotefn/internal/lang"
)

// FileEntry represents a discovered document.
type FileEntry struct {
	Path     string // Relative to the project root
	Language string
}

// Options narrows a discovery walk.
type Options struct {
	// Dir is the directory to walk, relative to the root. Empty walks the
	// whole root.
	Dir string
	// Extensions lists the accepted file extensions. Empty accepts every
	// extension with a registered grammar.
	Extensions []string
	// Exclude lists additional directory names to skip.
	Exclude []string
}

var skipDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	".hg":          {},
	".svn":         {},
	".svelte-kit":  {},
	".vercel":      {},
	".netlify":     {},
	"build":        {},
	"dist":         {},
}

// Files discovers documents under root. Hidden and dependency directories are
// skipped, as is anything git ignores.
func Files(root string, opts Options) ([]FileEntry, error) {
	exts := make(map[string]struct{}, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}
	excluded := make(map[string]struct{}, len(opts.Exclude))
	for _, d := range opts.Exclude {
		excluded[d] = struct{}{}
	}
	gitFiles := gitLsFiles(root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(root)
	}

	start := root
	if opts.Dir != "" {
		start = filepath.Join(root, opts.Dir)
	}
	if _, err := os.Stat(start); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var results []FileEntry

	err := filepath.WalkDir(start, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()

		if d.IsDir() {
			if path == start {
				return nil
			}
			if SkipDir(name) {
				return filepath.SkipDir
			}
			if _, ok := excluded[name]; ok {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		if gitFiles != nil {
			if _, ok := gitFiles[filepath.ToSlash(rel)]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(name))
		langName := lang.ForExtension(ext)
		if len(exts) > 0 {
			if _, ok := exts[ext]; !ok {
				return nil
			}
		} else if langName == "" {
			return nil
		}

		results = append(results, FileEntry{Path: rel, Language: langName})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

// SkipDir reports whether a directory with the given name is never searched
// for documents.
func SkipDir(name string) bool {
	if _, skip := skipDirs[name]; skip {
		return true
	}
	return strings.HasPrefix(name, ".")
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
