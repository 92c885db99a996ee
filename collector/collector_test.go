package collector

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("content\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func relPaths(files []File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.RelPath)
	}
	return out
}

func TestCollect(t *testing.T) {
	root := t.TempDir()

	writeFile(t, root, "main.go")
	writeFile(t, root, "README.md")
	writeFile(t, root, "src/app.ts")
	writeFile(t, root, "src/style.css")
	writeFile(t, root, "src/image.png")            // extension not allowed
	writeFile(t, root, "node_modules/lib/dep.js")  // ignored dir
	writeFile(t, root, ".git/config.json")         // ignored dir
	writeFile(t, root, "docs/__pycache__/mod.py")  // ignored nested dir
	writeFile(t, root, "docs/guide.md")
	writeFile(t, root, ".env")
	writeFile(t, root, "vite.config.mjs")          // config file pattern
	writeFile(t, root, "binary")                   // no extension

	files, err := Collect(root)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	want := []string{
		".env",
		"README.md",
		"docs/guide.md",
		"main.go",
		"src/app.ts",
		"src/style.css",
		"vite.config.mjs",
	}
	if got := relPaths(files); !reflect.DeepEqual(got, want) {
		t.Errorf("Collect = %v, want %v", got, want)
	}

	for _, f := range files {
		if !filepath.IsAbs(f.Path) {
			t.Errorf("expected absolute path, got %q", f.Path)
		}
	}
}

func TestCollect_Deterministic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.go")
	writeFile(t, root, "a.go")
	writeFile(t, root, "sub/c.go")
	writeFile(t, root, "sub/a.md")

	first, err := Collect(root)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	second, err := Collect(root)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("two collections of the same tree differ")
	}
}

func TestCollect_MissingRoot(t *testing.T) {
	_, err := Collect(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("expected error for missing root, got nil")
	}
}
