// Package module implements the file-based ModuleLoader the VM calls
// through for every IMPORT_MODULE instruction: resolving an import path
// against a search-path list, compiling it, running it to completion on
// its own VM, and handing back its globals as a namespace object. Grounded
// on the teacher's internal/module.ModuleLoader (search-path resolution,
// caching map, findModule's direct/index-file/nested-path fallbacks) but
// rewritten end to end against the rebuilt lexer/parser/compiler/vm
// packages, which share nothing with the teacher's old value model.
package module

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"slate/internal/ast"
	"slate/internal/compiler"
	"slate/internal/lexer"
	"slate/internal/parser"
	"slate/internal/vm"
)

// Registerer installs a module's builtins before it runs. cmd/slate and
// the REPL both pass builtins.Register here; module stays decoupled from
// package builtins to avoid an import cycle (builtins never needs to load
// modules itself).
type Registerer func(*vm.VM)

// FileModuleLoader resolves slate import paths against a list of search
// roots, compiles and runs each module once and caches the resulting
// exports keyed by resolved file path, recompiling a module whose file's
// modification time is newer than at its last load.
type FileModuleLoader struct {
	mu         sync.Mutex
	searchPath []string
	cache      map[string]*vm.ModuleObj
	loading    map[string]bool
	register   Registerer

	// generation tags every freshly (re)loaded module with a fresh id;
	// Generation exposes it so a host embedding the loader can tell a
	// cache hit from a real reload from the outside. mtime backs the
	// invalidation check Load runs on every call: a module whose file has
	// been touched since its last load is evicted and recompiled instead
	// of served from cache.
	generation map[string]uuid.UUID
	mtime      map[string]time.Time
}

// Generation reports the cache-generation id assigned to resolved's most
// recent load, and whether resolved has been loaded at all.
func (l *FileModuleLoader) Generation(resolved string) (uuid.UUID, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.generation[resolved]
	return id, ok
}

// NewFileModuleLoader creates a loader rooted at dir plus whatever
// additional directories AddSearchPath is called with before first use.
// register installs builtins into each module's private VM.
func NewFileModuleLoader(dir string, register Registerer) *FileModuleLoader {
	return &FileModuleLoader{
		searchPath: []string{dir},
		cache:      map[string]*vm.ModuleObj{},
		loading:    map[string]bool{},
		generation: map[string]uuid.UUID{},
		mtime:      map[string]time.Time{},
		register:   register,
	}
}

// AddSearchPath appends another directory to try when resolving import
// paths, tried in the order added after the loader's root directory.
func (l *FileModuleLoader) AddSearchPath(dir string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.searchPath = append(l.searchPath, dir)
}

// Load implements vm.ModuleLoader. It is called by the importing VM's
// IMPORT_MODULE handler; the returned ModuleObj is owned by the caller
// (one Retain held on behalf of the import site), matching every other
// heap constructor in this codebase.
func (l *FileModuleLoader) Load(_ *vm.VM, path string) (*vm.ModuleObj, error) {
	resolved, err := l.findModule(path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	if mod, ok := l.cache[resolved]; ok && !l.staleLocked(resolved) {
		l.mu.Unlock()
		mod.Retain()
		return mod, nil
	}
	if l.loading[resolved] {
		l.mu.Unlock()
		return nil, errors.Errorf("circular import: %s", resolved)
	}
	l.loading[resolved] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.loading, resolved)
		l.mu.Unlock()
	}()

	mod, err := l.compileAndRun(resolved)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[resolved] = mod
	l.generation[resolved] = uuid.New()
	if info, err := os.Stat(resolved); err == nil {
		l.mtime[resolved] = info.ModTime()
	}
	l.mu.Unlock()

	mod.Retain()
	return mod, nil
}

// staleLocked reports whether resolved's file has been modified since its
// last load. Called with l.mu held. A stat failure is treated as "not
// stale". Load resolves the path before consulting the cache, so an import
// of a module whose file has been deleted fails at resolution.
func (l *FileModuleLoader) staleLocked(resolved string) bool {
	info, err := os.Stat(resolved)
	if err != nil {
		return false
	}
	last, ok := l.mtime[resolved]
	return ok && info.ModTime().After(last)
}

// compileAndRun reads, lexes, parses, compiles and executes the module at
// resolved on a fresh VM of its own (§5: a module never shares state with
// its importer's VM; each gets its own stack, globals and heap), then
// snapshots the finished VM's globals into the returned module's exports.
func (l *FileModuleLoader) compileAndRun(resolved string) (*vm.ModuleObj, error) {
	src, err := os.ReadFile(resolved)
	if err != nil {
		return nil, errors.Wrapf(err, "reading module %s", resolved)
	}

	toks := lexer.NewLexer(string(src), resolved).Tokenize()
	p := parser.New(toks, string(src), resolved, parser.STRICT)
	stmts := p.ParseProgram()
	if len(p.Errors) > 0 {
		return nil, p.Errors[0]
	}

	if err := l.prefetchSiblingImports(stmts); err != nil {
		return nil, err
	}

	c := compiler.New(resolved, string(src))
	fn := c.Compile(stmts)
	if len(c.Errors) > 0 {
		return nil, c.Errors[0]
	}

	sub := vm.New(resolved)
	sub.Loader = l
	sub.Stdout = func(string) {}
	if l.register != nil {
		l.register(sub)
	}
	if _, err := sub.Run(fn); err != nil {
		return nil, errors.Wrapf(err, "running module %s", resolved)
	}

	mod := vm.NewModule(resolved)
	for name, v := range sub.Globals() {
		mod.Exports[name] = v
	}
	return mod, nil
}

// prefetchSiblingImports warms the OS page cache for every import this
// module references before compiling it, by reading (never compiling or
// running) each sibling's source concurrently. This is the one place the
// loader uses goroutines: plain file I/O fanned out with errgroup, ahead
// of the fully serial, single-VM-at-a-time compile-and-execute pipeline
// every module goes through one at a time.
func (l *FileModuleLoader) prefetchSiblingImports(stmts []ast.Stmt) error {
	var paths []string
	for _, s := range stmts {
		if imp, ok := s.(*ast.Import); ok {
			paths = append(paths, imp.Path)
		}
	}
	if len(paths) == 0 {
		return nil
	}

	var g errgroup.Group
	for _, importPath := range paths {
		importPath := importPath
		g.Go(func() error {
			resolved, err := l.findModule(importPath)
			if err != nil {
				// Unresolvable here just means compileAndRun's own
				// recursive Load call will report it properly; warming
				// the cache is best-effort only.
				return nil
			}
			_, _ = os.ReadFile(resolved)
			return nil
		})
	}
	return g.Wait()
}

// findModule resolves name to a file under the search path, trying the
// bare path with a .slt extension, then name/index.slt, the way the
// teacher's findModule tries a direct file before a package-index file.
func (l *FileModuleLoader) findModule(name string) (string, error) {
	l.mu.Lock()
	roots := append([]string(nil), l.searchPath...)
	l.mu.Unlock()

	candidates := moduleCandidates(name)
	for _, root := range roots {
		for _, c := range candidates {
			full := filepath.Join(root, c)
			if fileExists(full) {
				return filepath.Clean(full), nil
			}
		}
	}
	return "", fmt.Errorf("module not found: %s (searched %s)", name, strings.Join(roots, ", "))
}

func moduleCandidates(name string) []string {
	clean := strings.TrimSuffix(name, ".slt")
	return []string{
		clean + ".slt",
		filepath.Join(clean, "index.slt"),
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
