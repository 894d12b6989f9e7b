// Package instrument rewrites a Go source file so every statement in
// its top-level functions reports to the probe before executing. The
// rewritten source imports the synthetic "flowprobe" package, whose
// symbols the interpreter injects at load time.
package instrument

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"os"
	"strconv"
	"strings"
)

// ProbeImport is the import path the instrumented source uses to reach
// the checkpoint function.
const ProbeImport = "flowprobe"

// FuncInfo describes one instrumented top-level function.
type FuncInfo struct {
	Name      string   `json:"name"`
	Params    []string `json:"params"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
}

// Result is the outcome of instrumenting one source file.
type Result struct {
	Source  string              // instrumented source text
	Package string              // package name of the file
	Funcs   map[string]FuncInfo // top-level functions by name
	Globals []string            // package-level variable names
}

// File reads and instruments the source file at path.
func File(path string) (*Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading target file: %w", err)
	}
	return Source(src, path)
}

// Source instruments src, using filename for line positions. Every
// statement in every top-level function body gains a preceding
// checkpoint call carrying the original line number, the function
// name, and the locals and globals visible at that point.
func Source(src []byte, filename string) (*Result, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parsing target file: %w", err)
	}

	res := &Result{
		Package: file.Name.Name,
		Funcs:   make(map[string]FuncInfo),
		Globals: packageVars(file),
	}

	ins := &inserter{fset: fset, globals: res.Globals}
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil {
			continue
		}
		name := funcName(fn)
		res.Funcs[name] = FuncInfo{
			Name:      name,
			Params:    paramNames(fn.Type),
			StartLine: fset.Position(fn.Pos()).Line,
			EndLine:   fset.Position(fn.End()).Line,
		}

		ins.fn = name
		ins.scopes = [][]string{funcScope(fn)}
		fn.Body.List = ins.block(fn.Body.List)
	}

	injectProbeImport(file)

	var buf strings.Builder
	if err := printer.Fprint(&buf, fset, file); err != nil {
		return nil, fmt.Errorf("rendering instrumented source: %w", err)
	}
	res.Source = buf.String()
	return res, nil
}

// funcName names a declaration, qualifying methods by receiver type.
func funcName(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return fn.Name.Name
	}
	return receiverType(fn.Recv.List[0].Type) + "." + fn.Name.Name
}

func receiverType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverType(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return receiverType(t.X)
	case *ast.IndexListExpr:
		return receiverType(t.X)
	}
	return "?"
}

// paramNames lists declared parameter names in order, skipping blanks.
func paramNames(ft *ast.FuncType) []string {
	var names []string
	if ft.Params == nil {
		return names
	}
	for _, field := range ft.Params.List {
		for _, name := range field.Names {
			if name.Name != "_" {
				names = append(names, name.Name)
			}
		}
	}
	return names
}

// funcScope seeds a function's outermost scope with its parameters,
// receiver, and named results.
func funcScope(fn *ast.FuncDecl) []string {
	var names []string
	if fn.Recv != nil {
		for _, field := range fn.Recv.List {
			for _, name := range field.Names {
				if name.Name != "_" {
					names = append(names, name.Name)
				}
			}
		}
	}
	names = append(names, paramNames(fn.Type)...)
	if fn.Type.Results != nil {
		for _, field := range fn.Type.Results.List {
			for _, name := range field.Names {
				if name.Name != "_" {
					names = append(names, name.Name)
				}
			}
		}
	}
	return names
}

// packageVars collects package-level variable names, leaving out
// functions, types, constants, and imports.
func packageVars(file *ast.File) []string {
	var names []string
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.VAR {
			continue
		}
		for _, spec := range gd.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			for _, name := range vs.Names {
				if name.Name != "_" {
					names = append(names, name.Name)
				}
			}
		}
	}
	return names
}

// inserter walks statement lists, prefixing each statement with a
// checkpoint call that carries the names visible at that point.
type inserter struct {
	fset    *token.FileSet
	fn      string
	globals []string
	scopes  [][]string
}

func (in *inserter) push() { in.scopes = append(in.scopes, nil) }
func (in *inserter) pop()  { in.scopes = in.scopes[:len(in.scopes)-1] }

func (in *inserter) declare(name string) {
	if name == "" || name == "_" {
		return
	}
	top := len(in.scopes) - 1
	in.scopes[top] = append(in.scopes[top], name)
}

// visible flattens the scope stack, innermost declaration winning when
// a name is shadowed.
func (in *inserter) visible() []string {
	seen := make(map[string]bool)
	var names []string
	for i := len(in.scopes) - 1; i >= 0; i-- {
		for j := len(in.scopes[i]) - 1; j >= 0; j-- {
			name := in.scopes[i][j]
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	// Reverse back to declaration order for stable output.
	for l, r := 0, len(names)-1; l < r; l, r = l+1, r-1 {
		names[l], names[r] = names[r], names[l]
	}
	return names
}

// block instruments a statement list, returning the expanded list with
// one checkpoint before each original statement.
func (in *inserter) block(stmts []ast.Stmt) []ast.Stmt {
	out := make([]ast.Stmt, 0, len(stmts)*2)
	for _, stmt := range stmts {
		line := in.fset.Position(stmt.Pos()).Line
		out = append(out, in.checkpoint(line), in.stmt(stmt))
		in.declareFrom(stmt)
	}
	return out
}

// declareFrom records names a statement introduces into the current
// scope for the statements that follow it.
func (in *inserter) declareFrom(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.AssignStmt:
		if s.Tok == token.DEFINE {
			for _, lhs := range s.Lhs {
				if id, ok := lhs.(*ast.Ident); ok {
					in.declare(id.Name)
				}
			}
		}
	case *ast.DeclStmt:
		gd, ok := s.Decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.VAR {
			return
		}
		for _, spec := range gd.Specs {
			if vs, ok := spec.(*ast.ValueSpec); ok {
				for _, name := range vs.Names {
					in.declare(name.Name)
				}
			}
		}
	}
}

// stmt instruments the bodies nested inside a statement. Function
// literal bodies are left alone: only the entry function's own
// statements report.
func (in *inserter) stmt(stmt ast.Stmt) ast.Stmt {
	switch s := stmt.(type) {
	case *ast.BlockStmt:
		in.push()
		s.List = in.block(s.List)
		in.pop()
	case *ast.IfStmt:
		in.push()
		in.declareFrom(s.Init)
		s.Body.List = in.block(s.Body.List)
		if s.Else != nil {
			s.Else = in.stmt(s.Else)
		}
		in.pop()
	case *ast.ForStmt:
		in.push()
		in.declareFrom(s.Init)
		s.Body.List = in.block(s.Body.List)
		in.pop()
	case *ast.RangeStmt:
		in.push()
		if s.Tok == token.DEFINE {
			if id, ok := s.Key.(*ast.Ident); ok {
				in.declare(id.Name)
			}
			if id, ok := s.Value.(*ast.Ident); ok {
				in.declare(id.Name)
			}
		}
		s.Body.List = in.block(s.Body.List)
		in.pop()
	case *ast.SwitchStmt:
		in.push()
		in.declareFrom(s.Init)
		for _, clause := range s.Body.List {
			if cc, ok := clause.(*ast.CaseClause); ok {
				in.push()
				cc.Body = in.block(cc.Body)
				in.pop()
			}
		}
		in.pop()
	case *ast.TypeSwitchStmt:
		in.push()
		in.declareFrom(s.Init)
		in.declareFrom(s.Assign)
		for _, clause := range s.Body.List {
			if cc, ok := clause.(*ast.CaseClause); ok {
				in.push()
				cc.Body = in.block(cc.Body)
				in.pop()
			}
		}
		in.pop()
	case *ast.SelectStmt:
		for _, clause := range s.Body.List {
			if cc, ok := clause.(*ast.CommClause); ok {
				in.push()
				in.declareFrom(cc.Comm)
				cc.Body = in.block(cc.Body)
				in.pop()
			}
		}
	case *ast.LabeledStmt:
		s.Stmt = in.stmt(s.Stmt)
	}
	return stmt
}

// checkpoint builds the flowprobe.Step call for one original line.
func (in *inserter) checkpoint(line int) ast.Stmt {
	return &ast.ExprStmt{
		X: &ast.CallExpr{
			Fun: &ast.SelectorExpr{
				X:   ast.NewIdent(ProbeImport),
				Sel: ast.NewIdent("Step"),
			},
			Args: []ast.Expr{
				&ast.BasicLit{Kind: token.INT, Value: strconv.Itoa(line)},
				&ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(in.fn)},
				nameMap(in.visible()),
				nameMap(in.globals),
			},
		},
	}
}

// nameMap builds a map[string]interface{}{"name": name, ...} literal
// over the given identifiers.
func nameMap(names []string) ast.Expr {
	lit := &ast.CompositeLit{
		Type: &ast.MapType{
			Key:   ast.NewIdent("string"),
			Value: &ast.InterfaceType{Methods: &ast.FieldList{}},
		},
	}
	for _, name := range names {
		lit.Elts = append(lit.Elts, &ast.KeyValueExpr{
			Key:   &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(name)},
			Value: ast.NewIdent(name),
		})
	}
	return lit
}

// injectProbeImport prepends the flowprobe import declaration.
func injectProbeImport(file *ast.File) {
	spec := &ast.ImportSpec{
		Path: &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(ProbeImport)},
	}
	decl := &ast.GenDecl{
		Tok:   token.IMPORT,
		Specs: []ast.Spec{spec},
	}
	file.Decls = append([]ast.Decl{decl}, file.Decls...)
	file.Imports = append(file.Imports, spec)
}
