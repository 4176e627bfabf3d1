// workspace.go holds the temporary workspace and source collection shared
// by all commands.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kolkov/sledgehammer/cmd/sledgehammer/gomod"
	"github.com/kolkov/sledgehammer/cmd/sledgehammer/instrument"
)

// workspace represents a temporary workspace for instrumented code.
type workspace struct {
	// Root directory of workspace
	dir string

	// Source directory (where instrumented .go files go)
	srcDir string
}

// createWorkspace creates a temporary workspace for building instrumented code.
func createWorkspace() (*workspace, error) {
	dir, err := os.MkdirTemp("", "sledgehammer-build-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	srcDir := filepath.Join(dir, "src")
	if err := os.MkdirAll(srcDir, 0755); err != nil {
		_ = os.RemoveAll(dir) // Cleanup on error, ignore removal errors
		return nil, fmt.Errorf("failed to create src directory: %w", err)
	}

	return &workspace{
		dir:    dir,
		srcDir: srcDir,
	}, nil
}

// cleanup removes the temporary workspace.
func (w *workspace) cleanup() {
	if w.dir != "" {
		_ = os.RemoveAll(w.dir) // Best effort cleanup, ignore errors
	}
}

// overlayPath is where the workspace's go build overlay is written.
func (w *workspace) overlayPath() string {
	return filepath.Join(w.dir, "overlay.json")
}

// mirrorPath maps an absolute source path into the workspace, keeping the
// full directory structure so files from different packages never collide.
func (w *workspace) mirrorPath(srcPath string) string {
	rel := filepath.ToSlash(srcPath)
	rel = strings.ReplaceAll(rel, ":", "_") // Windows volume names
	rel = strings.TrimLeft(rel, "/")
	return filepath.Join(w.srcDir, filepath.FromSlash(rel))
}

// instrumentOptions controls instrumentIntoOverlay.
type instrumentOptions struct {
	verbose bool
	quiet   bool
}

// instrumentIntoOverlay instruments every file and records the rewritten
// ones in an overlay. Files without markers are left to the go command
// untouched.
//
// Any instrumentation error aborts the whole operation.
func instrumentIntoOverlay(goFiles []string, ws *workspace, opts instrumentOptions) (*gomod.Overlay, error) {
	overlay := gomod.NewOverlay()

	for _, srcPath := range goFiles {
		result, err := instrument.InstrumentFile(srcPath, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to instrument %s: %w", srcPath, err)
		}
		if !result.Changed {
			continue
		}

		outPath := ws.mirrorPath(srcPath)
		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", outPath, err)
		}
		if err := os.WriteFile(outPath, []byte(result.Code), 0644); err != nil {
			return nil, fmt.Errorf("failed to write instrumented file %s: %w", outPath, err)
		}
		if err := overlay.Add(srcPath, outPath); err != nil {
			return nil, err
		}

		if !opts.quiet {
			fmt.Printf("Instrumented: %s\n", srcPath)
		}
		if opts.verbose {
			printStats(result.Stats)
		}
	}

	if overlay.Len() == 0 && !opts.quiet {
		fmt.Fprintf(os.Stderr, "Warning: no %s markers found\n", instrument.MarkerDirective)
	}

	if err := overlay.Write(ws.overlayPath()); err != nil {
		return nil, err
	}
	return overlay, nil
}

func printStats(stats instrument.InstrumentStats) {
	fmt.Printf("  - %d functions traced\n", stats.FunctionsRewritten)
	fmt.Printf("  - %d statements traced (%d range loops bracketed)\n",
		stats.StatementsTraced, stats.LoopsBracketed)
	fmt.Printf("  Total: %d trace statements inserted\n", stats.Total())
}

// collectGoFiles finds all .go files from the given sources.
//
// Sources can be:
//   - .go files directly
//   - directories (scans for .go files)
//   - "." for current directory
//   - recursive patterns such as "./..." or "./internal/..."
//
// Test files are included only when withTests is set. Files matching the
// project configuration's exclude patterns are skipped.
func collectGoFiles(sources []string, workDir string, withTests bool, cfg *projectConfig) ([]string, error) {
	var goFiles []string
	seen := make(map[string]bool)

	add := func(path string) {
		if seen[path] || cfg.excluded(path, workDir) {
			return
		}
		seen[path] = true
		goFiles = append(goFiles, path)
	}

	for _, src := range sources {
		if strings.HasSuffix(src, ".go") {
			srcPath := src
			if !filepath.IsAbs(srcPath) {
				srcPath = filepath.Join(workDir, src)
			}
			if _, err := os.Stat(srcPath); err != nil {
				return nil, fmt.Errorf("cannot access %s: %w", src, err)
			}
			add(srcPath)
			continue
		}

		dirs, err := resolvePackagePatterns([]string{src}, workDir)
		if err != nil {
			return nil, err
		}
		for _, dir := range dirs {
			info, err := os.Stat(dir)
			if err != nil {
				return nil, fmt.Errorf("cannot access %s: %w", src, err)
			}
			if !info.IsDir() {
				return nil, fmt.Errorf("%s is not a directory or .go file", src)
			}
			files, err := listGoFiles(dir, withTests)
			if err != nil {
				return nil, fmt.Errorf("cannot read directory %s: %w", dir, err)
			}
			for _, f := range files {
				add(f)
			}
		}
	}

	return goFiles, nil
}

// listGoFiles lists the .go files directly inside dir.
func listGoFiles(dir string, withTests bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var goFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".go") {
			continue
		}
		if !withTests && strings.HasSuffix(name, "_test.go") {
			continue
		}
		goFiles = append(goFiles, filepath.Join(dir, name))
	}
	return goFiles, nil
}

// resolvePackagePatterns resolves package patterns like "./..." to directories.
func resolvePackagePatterns(patterns []string, workDir string) ([]string, error) {
	var dirs []string
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		if strings.HasSuffix(pattern, "/...") || strings.HasSuffix(pattern, "\\...") {
			baseDir := strings.TrimSuffix(strings.TrimSuffix(pattern, "/..."), "\\...")
			if baseDir == "." || baseDir == "" {
				baseDir = workDir
			} else if !filepath.IsAbs(baseDir) {
				baseDir = filepath.Join(workDir, baseDir)
			}

			err := filepath.WalkDir(baseDir, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() {
					return nil
				}
				// Skip hidden directories, vendor and testdata, as the go command does
				name := d.Name()
				if path != baseDir && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") ||
					name == "vendor" || name == "testdata") {
					return filepath.SkipDir
				}
				hasGo, _ := hasGoFiles(path)
				if hasGo && !seen[path] {
					dirs = append(dirs, path)
					seen[path] = true
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("failed to walk %s: %w", baseDir, err)
			}
			continue
		}

		dir := pattern
		if pattern == "." {
			dir = workDir
		} else if !filepath.IsAbs(dir) {
			dir = filepath.Join(workDir, pattern)
		}
		if !seen[dir] {
			dirs = append(dirs, dir)
			seen[dir] = true
		}
	}

	return dirs, nil
}

// hasGoFiles checks if a directory contains any .go files.
func hasGoFiles(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".go") {
			return true, nil
		}
	}

	return false, nil
}
