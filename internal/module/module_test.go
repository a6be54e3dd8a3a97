package module

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"slate/internal/value"
	"slate/internal/vm"
)

func writeFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func TestLoadExportsTopLevelGlobals(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "greet.slt", "var message = \"hi\"\n")

	loader := NewFileModuleLoader(dir, nil)
	mod, err := loader.Load(nil, "greet")
	if err != nil {
		t.Fatalf("Load: unexpected error %v", err)
	}
	v, ok := mod.Exports["message"]
	if !ok {
		t.Fatalf("module exports did not include \"message\": %v", mod.Exports)
	}
	if value.HeapOf(v).(*value.StringObj).Value != "hi" {
		t.Errorf("message = %v, want \"hi\"", v)
	}
}

func TestLoadCachesByResolvedPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "once.slt", "var n = 1\n")

	loader := NewFileModuleLoader(dir, nil)
	first, err := loader.Load(nil, "once")
	if err != nil {
		t.Fatalf("Load: unexpected error %v", err)
	}
	second, err := loader.Load(nil, "once")
	if err != nil {
		t.Fatalf("Load (cached): unexpected error %v", err)
	}
	if first != second {
		t.Error("a second Load of the same path should return the cached module")
	}
}

func TestFindModuleTriesIndexFile(t *testing.T) {
	dir := t.TempDir()
	pkgDir := filepath.Join(dir, "pkg")
	if err := os.Mkdir(pkgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, pkgDir, "index.slt", "var ok = true\n")

	loader := NewFileModuleLoader(dir, nil)
	resolved, err := loader.findModule("pkg")
	if err != nil {
		t.Fatalf("findModule: unexpected error %v", err)
	}
	want := filepath.Clean(filepath.Join(pkgDir, "index.slt"))
	if resolved != want {
		t.Errorf("findModule(\"pkg\") = %q, want %q", resolved, want)
	}
}

func TestFindModuleMissing(t *testing.T) {
	loader := NewFileModuleLoader(t.TempDir(), nil)
	if _, err := loader.findModule("nope"); err == nil {
		t.Error("findModule should fail for a module that does not exist")
	}
}

func TestLoaderSatisfiesVMInterface(t *testing.T) {
	var _ vm.ModuleLoader = NewFileModuleLoader(t.TempDir(), nil)
}

func TestLoadReloadsWhenFileChangesOnDisk(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hot.slt", "var n = 1\n")

	loader := NewFileModuleLoader(dir, nil)
	resolved, err := loader.findModule("hot")
	if err != nil {
		t.Fatalf("findModule: unexpected error %v", err)
	}

	first, err := loader.Load(nil, "hot")
	if err != nil {
		t.Fatalf("Load: unexpected error %v", err)
	}
	firstGen, ok := loader.Generation(resolved)
	if !ok {
		t.Fatal("Generation reported no id after a successful Load")
	}

	// Bump the file's mtime into the future so the change is observed
	// regardless of filesystem mtime resolution.
	future := time.Now().Add(time.Hour)
	writeFile(t, dir, "hot.slt", "var n = 2\n")
	if err := os.Chtimes(filepath.Join(dir, "hot.slt"), future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	second, err := loader.Load(nil, "hot")
	if err != nil {
		t.Fatalf("Load (after change): unexpected error %v", err)
	}
	if first == second {
		t.Error("Load should have reloaded the module after its file changed on disk")
	}
	secondGen, ok := loader.Generation(resolved)
	if !ok {
		t.Fatal("Generation reported no id after the reload")
	}
	if secondGen == firstGen {
		t.Error("Generation should change after a reload")
	}

	v, ok := second.Exports["n"]
	if !ok {
		t.Fatal("reloaded module did not export n")
	}
	if v.AsInt32() != 2 {
		t.Errorf("reloaded module's n = %d, want 2", v.AsInt32())
	}
}
