// Package gomod prepares module metadata for building rewritten sources.
//
// Rewritten files are written outside the user's tree. Two mechanisms make
// them buildable:
//   - an overlay file for `go build -overlay`, which substitutes rewritten
//     files for the originals inside the user's own module (see overlay.go);
//   - a go.mod written next to a standalone output directory. It declares a
//     module of its own that requires the user's module, replaced by the
//     module's root directory, so sibling packages still resolve.
package gomod

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

// DefaultModulePath is the module path used when the sources do not belong
// to any module.
const DefaultModulePath = "instrumented"

// TracedModuleSuffix is appended to the source module path to name the
// module of a standalone output directory.
const TracedModuleSuffix = "/traced"

// DefaultGoVersion is the go directive written for sources without a module.
// Range over integers needs at least Go 1.22.
const DefaultGoVersion = "1.22"

// FindGoMod finds the go.mod file of the project being instrumented.
//
// This walks up from the given directory looking for go.mod file.
//
// Parameters:
//   - startDir: Directory to start searching from (usually the source file's directory)
//
// Returns:
//   - Path to go.mod file
//   - Empty string if no go.mod found
func FindGoMod(startDir string) string {
	dir := startDir
	for {
		modPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(modPath); err == nil {
			return modPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// ModulePath returns the module path declared by the go.mod governing dir,
// or DefaultModulePath if there is none.
func ModulePath(dir string) (string, error) {
	goModPath := FindGoMod(dir)
	if goModPath == "" {
		return DefaultModulePath, nil
	}
	f, err := parseModFile(goModPath)
	if err != nil {
		return "", err
	}
	if f.Module == nil {
		return "", fmt.Errorf("%s: missing module directive", goModPath)
	}
	return f.Module.Mod.Path, nil
}

// WriteModFile writes a go.mod (and go.sum, if any) into outDir so that
// rewritten files of a single package copied there build on their own.
//
// The go.mod starts from the one governing sourceDir, with every local
// replace target converted to an absolute path since outDir has a different
// location. Its module is renamed to the source module path plus
// TracedModuleSuffix, and it requires the source module replaced by the
// source module's root, so imports of other packages of that module keep
// resolving to their sources. Without a governing go.mod a minimal module
// named DefaultModulePath is written.
//
// Returns:
//   - Path of the written go.mod
//   - Error if the original cannot be parsed or the output cannot be written
func WriteModFile(outDir, sourceDir string) (string, error) {
	var (
		f       *modfile.File
		goSum   string
		outPath = filepath.Join(outDir, "go.mod")
	)

	srcModule, err := ModulePath(sourceDir)
	if err != nil {
		return "", err
	}

	if goModPath := FindGoMod(sourceDir); goModPath != "" {
		f, err = parseModFile(goModPath)
		if err != nil {
			return "", err
		}
		root, err := filepath.Abs(filepath.Dir(goModPath))
		if err != nil {
			return "", fmt.Errorf("failed to resolve module root %s: %w", filepath.Dir(goModPath), err)
		}
		if err := absolutizeReplaces(f, root); err != nil {
			return "", err
		}
		if err := linkSourceModule(f, srcModule, root); err != nil {
			return "", err
		}
		goSum = filepath.Join(root, "go.sum")
	} else {
		f = new(modfile.File)
		if err := f.AddModuleStmt(DefaultModulePath); err != nil {
			return "", fmt.Errorf("failed to create go.mod: %w", err)
		}
		if err := f.AddGoStmt(DefaultGoVersion); err != nil {
			return "", fmt.Errorf("failed to create go.mod: %w", err)
		}
	}

	data, err := f.Format()
	if err != nil {
		return "", fmt.Errorf("failed to format go.mod: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write go.mod: %w", err)
	}

	if goSum != "" {
		if sum, err := os.ReadFile(goSum); err == nil {
			if err := os.WriteFile(filepath.Join(outDir, "go.sum"), sum, 0644); err != nil {
				return "", fmt.Errorf("failed to write go.sum: %w", err)
			}
		}
	}

	return outPath, nil
}

// linkSourceModule turns f into the go.mod of a module next to srcModule:
// it is renamed, and requires srcModule from the directory root.
func linkSourceModule(f *modfile.File, srcModule, root string) error {
	if err := f.AddModuleStmt(srcModule + TracedModuleSuffix); err != nil {
		return fmt.Errorf("failed to rename module: %w", err)
	}
	if err := f.AddRequire(srcModule, "v0.0.0"); err != nil {
		return fmt.Errorf("failed to require %s: %w", srcModule, err)
	}
	if err := f.AddReplace(srcModule, "", root, ""); err != nil {
		return fmt.Errorf("failed to replace %s: %w", srcModule, err)
	}
	return nil
}

func parseModFile(goModPath string) (*modfile.File, error) {
	data, err := os.ReadFile(goModPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", goModPath, err)
	}
	f, err := modfile.Parse(goModPath, data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", goModPath, err)
	}
	return f, nil
}

// absolutizeReplaces rewrites relative local replace targets of f against
// goModDir. Module replacements (with a version) are kept as they are.
func absolutizeReplaces(f *modfile.File, goModDir string) error {
	// AddReplace edits f.Replace, so iterate over a snapshot.
	replaces := append([]*modfile.Replace(nil), f.Replace...)
	for _, rep := range replaces {
		newPath := rep.New.Path
		if rep.New.Version != "" || !isLocalPath(newPath) || filepath.IsAbs(newPath) {
			continue
		}

		absPath, err := filepath.Abs(filepath.Join(goModDir, newPath))
		if err != nil {
			return fmt.Errorf("failed to resolve replace %s => %s: %w", rep.Old.Path, newPath, err)
		}
		if err := f.AddReplace(rep.Old.Path, rep.Old.Version, absPath, ""); err != nil {
			return fmt.Errorf("failed to rewrite replace %s: %w", rep.Old.Path, err)
		}
	}
	f.Cleanup()
	return nil
}

// isLocalPath checks if a path is a local filesystem path (not a module path).
//
// Local paths start with ./, ../, /, or a drive letter on Windows.
func isLocalPath(path string) bool {
	if strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") {
		return true
	}
	if path == "." || path == ".." {
		return true
	}
	if filepath.IsAbs(path) {
		return true
	}
	// Windows drive letter check (e.g., C:\)
	if len(path) >= 2 && path[1] == ':' {
		return true
	}
	return false
}
