// link_test.go tests go.mod discovery and generation.
package gomod

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/mod/modfile"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// TestFindGoMod verifies go.mod lookup walks up directories.
func TestFindGoMod(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), "module example.com/app\n\ngo 1.22\n")
	nested := filepath.Join(root, "internal", "deep")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	if got := FindGoMod(nested); got != filepath.Join(root, "go.mod") {
		t.Errorf("FindGoMod() = %q, want %q", got, filepath.Join(root, "go.mod"))
	}
}

// TestModulePath verifies module path extraction.
func TestModulePath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), "module example.com/app\n\ngo 1.22\n")

	got, err := ModulePath(root)
	if err != nil {
		t.Fatalf("ModulePath() error: %v", err)
	}
	if got != "example.com/app" {
		t.Errorf("ModulePath() = %q, want example.com/app", got)
	}
}

// TestWriteModFile_ReplaceDirectives verifies local replaces become absolute.
func TestWriteModFile_ReplaceDirectives(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), `module example.com/app

go 1.22

require (
	example.com/lib v0.0.0
	example.com/remote v1.2.0
)

replace example.com/lib => ../lib

replace example.com/remote v1.2.0 => example.com/fork v1.2.1
`)
	writeFile(t, filepath.Join(root, "go.sum"), "example.com/fork v1.2.1 h1:abc=\n")

	outDir := t.TempDir()
	path, err := WriteModFile(outDir, root)
	if err != nil {
		t.Fatalf("WriteModFile() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	f, err := modfile.Parse(path, data, nil)
	if err != nil {
		t.Fatalf("Generated go.mod does not parse: %v\n%s", err, data)
	}

	if f.Module.Mod.Path != "example.com/app"+TracedModuleSuffix {
		t.Errorf("module = %q, want example.com/app%s", f.Module.Mod.Path, TracedModuleSuffix)
	}
	if len(f.Replace) != 3 {
		t.Fatalf("Got %d replace directives, want 3", len(f.Replace))
	}

	requiresApp := false
	for _, req := range f.Require {
		if req.Mod.Path == "example.com/app" {
			requiresApp = true
		}
	}
	if !requiresApp {
		t.Errorf("Source module not required:\n%s", data)
	}

	wantLib := filepath.Join(filepath.Dir(root), "lib")
	for _, rep := range f.Replace {
		switch rep.Old.Path {
		case "example.com/app":
			if rep.New.Path != root || rep.New.Version != "" {
				t.Errorf("app replace = %q %q, want %q", rep.New.Path, rep.New.Version, root)
			}
		case "example.com/lib":
			if rep.New.Path != wantLib {
				t.Errorf("lib replace = %q, want %q", rep.New.Path, wantLib)
			}
		case "example.com/remote":
			if rep.New.Path != "example.com/fork" || rep.New.Version != "v1.2.1" {
				t.Errorf("module replace changed: %s %s", rep.New.Path, rep.New.Version)
			}
		default:
			t.Errorf("Unexpected replace of %s", rep.Old.Path)
		}
	}

	sum, err := os.ReadFile(filepath.Join(outDir, "go.sum"))
	if err != nil {
		t.Fatalf("go.sum not copied: %v", err)
	}
	if !strings.Contains(string(sum), "example.com/fork") {
		t.Errorf("go.sum content not preserved")
	}
}

// TestWriteModFile_NoModule verifies a minimal module is generated.
func TestWriteModFile_NoModule(t *testing.T) {
	// A fresh temp dir normally has no go.mod above it.
	srcDir := t.TempDir()
	if FindGoMod(srcDir) != "" {
		t.Skip("temp directory is inside a module")
	}

	outDir := t.TempDir()
	path, err := WriteModFile(outDir, srcDir)
	if err != nil {
		t.Fatalf("WriteModFile() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "module "+DefaultModulePath) {
		t.Errorf("go.mod missing module directive:\n%s", content)
	}
	if !strings.Contains(content, "go "+DefaultGoVersion) {
		t.Errorf("go.mod missing go directive:\n%s", content)
	}
	if _, err := os.Stat(filepath.Join(outDir, "go.sum")); !os.IsNotExist(err) {
		t.Errorf("go.sum written without a source go.sum")
	}
}

// TestWriteModFile_Invalid verifies parse errors are reported.
func TestWriteModFile_Invalid(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), "this is not a go.mod\n")

	if _, err := WriteModFile(t.TempDir(), root); err == nil {
		t.Error("Expected error for invalid go.mod")
	}
}

// TestIsLocalPath tests local path detection.
func TestIsLocalPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"./lib", true},
		{"../lib", true},
		{"..", true},
		{"/abs/lib", true},
		{"C:\\lib", true},
		{"example.com/lib", false},
		{"github.com/user/repo", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := isLocalPath(tt.path); got != tt.want {
				t.Errorf("isLocalPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
