// Package impact finds the functions changed by the working-tree diff
// of a repo, builds a call graph among them, and reports the roots:
// changed functions no other changed function calls. Those are the
// natural entry points to trace after an edit.
package impact

import (
	"context"
	"encoding/json"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/flowlens/flowlens/pkg/providers"
)

// Analyzer runs the change analysis for one repo.
type Analyzer struct {
	Repo     string
	Executor providers.CommandExecutor
}

// Report is the analysis outcome. Function ids use the canonical
// "/<rel-path>::<name>" form.
type Report struct {
	Changed map[string][]string `json:"changed"`   // file -> changed function names
	Bodies  map[string]string   `json:"functions"` // full id -> source text
	Graph   map[string][]string `json:"call_graph"`
	Parents []string            `json:"parents"`
}

// Analyze diffs the working tree and derives changed functions, their
// call graph, and the parent set.
func (a *Analyzer) Analyze(ctx context.Context) (*Report, error) {
	result, err := a.Executor.Execute(ctx, "git", []string{
		"-C", a.Repo, "diff",
		"--relative", "--ignore-space-at-eol", "-b", "-w", "--ignore-blank-lines",
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("run git diff: %w", err)
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("git diff failed: %s", strings.TrimSpace(string(result.Stderr)))
	}
	return a.analyzeDiff(string(result.Stdout))
}

func (a *Analyzer) analyzeDiff(diff string) (*Report, error) {
	report := &Report{
		Changed: make(map[string][]string),
		Bodies:  make(map[string]string),
		Graph:   make(map[string][]string),
		Parents: []string{},
	}

	files := ParseDiff(diff)
	changed := changedFunctions(files)
	if len(changed) == 0 {
		return report, nil
	}
	report.Changed = changed

	index := buildIndex(a.Repo)
	module := modulePath(a.Repo)

	for relFile, names := range changed {
		funcs, err := extractFunctions(a.Repo, relFile, names)
		if err != nil {
			continue
		}
		for _, fn := range funcs {
			fullID := "/" + relFile + "::" + fn.name
			report.Bodies[fullID] = fn.body
			report.Graph[fullID] = fn.resolveCalls(relFile, module, index)
		}
	}

	report.Parents = parents(report.Graph)
	return report, nil
}

// changedFunctions maps each diffed file to the top-level functions its
// important hunks touch.
func changedFunctions(files []FileDiff) map[string][]string {
	changed := make(map[string][]string)
	for _, f := range files {
		if !strings.HasSuffix(f.Path, ".go") {
			continue
		}
		seen := make(map[string]bool)
		for _, h := range f.Hunks {
			for _, line := range h.Lines {
				if !strings.HasPrefix(line, "+") && !strings.HasPrefix(line, " ") {
					continue
				}
				if name := defName(line[1:]); name != "" {
					seen[name] = true
				}
			}
		}
		if len(seen) > 0 {
			names := make([]string, 0, len(seen))
			for name := range seen {
				names = append(names, name)
			}
			sort.Strings(names)
			changed[f.Path] = names
		}
	}
	return changed
}

// changedFunc is one changed function body plus the context needed to
// resolve its calls.
type changedFunc struct {
	name    string
	body    string
	decl    *ast.FuncDecl
	file    *ast.File
	imports map[string]string // local name -> import path
	defined map[string]bool   // top-level functions in the same file
}

// extractFunctions parses relFile and pulls out the named top-level
// functions with their source text.
func extractFunctions(repo, relFile string, names []string) ([]changedFunc, error) {
	path := filepath.Join(repo, filepath.FromSlash(relFile))
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, 0)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool)
	for _, name := range names {
		wanted[name] = true
	}
	imports := importBindings(file)
	defined := make(map[string]bool)
	for _, decl := range file.Decls {
		if fd, ok := decl.(*ast.FuncDecl); ok && fd.Recv == nil {
			defined[fd.Name.Name] = true
		}
	}

	var out []changedFunc
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Recv != nil || !wanted[fd.Name.Name] {
			continue
		}
		start := fset.Position(fd.Pos()).Offset
		end := fset.Position(fd.End()).Offset
		out = append(out, changedFunc{
			name:    fd.Name.Name,
			body:    string(src[start:end]),
			decl:    fd,
			file:    file,
			imports: imports,
			defined: defined,
		})
	}
	return out, nil
}

func importBindings(file *ast.File) map[string]string {
	binds := make(map[string]string)
	for _, imp := range file.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		name := path[strings.LastIndex(path, "/")+1:]
		if imp.Name != nil {
			name = imp.Name.Name
		}
		if name != "_" && name != "." {
			binds[name] = path
		}
	}
	return binds
}

// resolveCalls lists the call targets of a function, qualifying each as
// "/<rel-path>::<name>" when the target lives inside the repo and
// leaving it a plain name otherwise.
func (fn changedFunc) resolveCalls(relFile, module string, index map[string][]string) []string {
	calls := []string{}
	ast.Inspect(fn.decl, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		switch f := call.Fun.(type) {
		case *ast.Ident:
			calls = append(calls, fn.resolveLocal(f.Name, relFile, index))
		case *ast.SelectorExpr:
			if pkg, ok := f.X.(*ast.Ident); ok {
				calls = append(calls, fn.resolveQualified(pkg.Name, f.Sel.Name, module, index))
			}
		}
		return true
	})
	return calls
}

func (fn changedFunc) resolveLocal(name, relFile string, index map[string][]string) string {
	if fn.defined[name] {
		return "/" + relFile + "::" + name
	}
	if candidates := index[name]; len(candidates) == 1 {
		return "/" + candidates[0] + "::" + name
	}
	return name
}

func (fn changedFunc) resolveQualified(pkg, name, module string, index map[string][]string) string {
	path, ok := fn.imports[pkg]
	if !ok || module == "" || !strings.HasPrefix(path, module+"/") {
		// selector on a local variable or an external package
		return pkg + "." + name
	}
	dir := strings.TrimPrefix(path, module+"/")
	for _, candidate := range index[name] {
		if filepath.ToSlash(filepath.Dir(candidate)) == dir {
			return "/" + candidate + "::" + name
		}
	}
	return pkg + "." + name
}

// buildIndex walks the repo and maps each top-level function name to
// the repo-relative files that define it.
func buildIndex(repo string) map[string][]string {
	index := make(map[string][]string)
	filepath.WalkDir(repo, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if name == ".git" || name == "vendor" || name == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		rel, err := filepath.Rel(repo, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, path, nil, 0)
		if err != nil {
			return nil
		}
		for _, decl := range file.Decls {
			if fd, ok := decl.(*ast.FuncDecl); ok && fd.Recv == nil {
				index[fd.Name.Name] = append(index[fd.Name.Name], rel)
			}
		}
		return nil
	})
	return index
}

// modulePath reads the module line from the repo's go.mod, or "" when
// there is none.
func modulePath(repo string) string {
	data, err := os.ReadFile(filepath.Join(repo, "go.mod"))
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "module ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "module "))
		}
	}
	return ""
}

// parents returns the changed functions that no other changed function
// calls, sorted for stable output.
func parents(graph map[string][]string) []string {
	all := make(map[string]bool, len(graph))
	for id := range graph {
		all[id] = true
	}

	called := make(map[string]bool)
	for _, calls := range graph {
		for _, c := range calls {
			target := ""
			if strings.Contains(c, "::") {
				target = c
			} else {
				var matches []string
				for id := range all {
					if strings.HasSuffix(id, "::"+c) {
						matches = append(matches, id)
					}
				}
				if len(matches) == 1 {
					target = matches[0]
				}
			}
			if target != "" && all[target] {
				called[target] = true
			}
		}
	}

	roots := []string{}
	for id := range all {
		if !called[id] {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// WriteArtifacts persists the report as the three analysis files in
// dir: functions.json, call_graph.json, and parent_functions.json.
func (r *Report) WriteArtifacts(dir string) error {
	artifacts := map[string]interface{}{
		"functions.json":        r.Bodies,
		"call_graph.json":       r.Graph,
		"parent_functions.json": r.Parents,
	}
	for name, payload := range artifacts {
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}
