// Package entry loads a target source file into the interpreter with
// checkpoints installed and resolves the requested function to a
// callable value.
package entry

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/flowlens/flowlens/pkg/instrument"
	"github.com/flowlens/flowlens/pkg/probe"
	"github.com/flowlens/flowlens/pkg/schema"
)

var (
	// ErrEntryNotFound means the file loaded but the named function is
	// not a top-level function in it.
	ErrEntryNotFound = errors.New("entry function not found")
	// ErrModuleLoadFailed means the target file could not be read,
	// parsed, or evaluated.
	ErrModuleLoadFailed = errors.New("target file failed to load")
)

// Entry is a resolved target: the instrumented function, callable via
// reflection, plus the metadata needed to bind its arguments.
type Entry struct {
	Point   schema.EntryPoint
	Fn      reflect.Value
	Info    instrument.FuncInfo
	Package string
	Globals []string
}

// Resolve instruments the file named by point under repoRoot, loads it
// into a fresh interpreter wired to p, and looks up the entry function.
// Failures carry ErrModuleLoadFailed or ErrEntryNotFound so callers can
// tell setup problems apart.
func Resolve(repoRoot string, point schema.EntryPoint, p *probe.Probe) (*Entry, error) {
	path := filepath.Join(repoRoot, filepath.FromSlash(point.File))
	res, err := instrument.File(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModuleLoadFailed, err)
	}

	info, ok := res.Funcs[point.Function]
	if !ok {
		return nil, fmt.Errorf("%w: no function %q in %s (have %s)",
			ErrEntryNotFound, point.Function, point.File, strings.Join(funcNames(res.Funcs), ", "))
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("%w: loading interpreter symbols: %v", ErrModuleLoadFailed, err)
	}
	exports := interp.Exports{
		instrument.ProbeImport + "/" + instrument.ProbeImport: {
			"Step": reflect.ValueOf(p.Step),
		},
	}
	if err := i.Use(exports); err != nil {
		return nil, fmt.Errorf("%w: wiring probe symbols: %v", ErrModuleLoadFailed, err)
	}

	if _, err := i.Eval(res.Source); err != nil {
		return nil, fmt.Errorf("%w: evaluating %s: %v", ErrModuleLoadFailed, point.File, err)
	}

	fn, err := i.Eval(res.Package + "." + point.Function)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %s.%s: %v", ErrEntryNotFound, res.Package, point.Function, err)
	}
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %s.%s is not a function", ErrEntryNotFound, res.Package, point.Function)
	}

	return &Entry{
		Point:   point,
		Fn:      fn,
		Info:    info,
		Package: res.Package,
		Globals: res.Globals,
	}, nil
}

func funcNames(funcs map[string]instrument.FuncInfo) []string {
	names := make([]string, 0, len(funcs))
	for name := range funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildArgs binds decoded arguments to the entry function's parameters.
// Positional arguments fill parameters in order, named arguments fill
// the parameters they name, and anything unbound or undecodable stays
// at its zero value. Surplus arguments are dropped.
func (e *Entry) BuildArgs(args schema.Arguments) []reflect.Value {
	ft := e.Fn.Type()
	ordered := args.Ordered(e.Info.Params)

	fixed := ft.NumIn()
	if ft.IsVariadic() {
		fixed--
	}

	out := make([]reflect.Value, 0, ft.NumIn())
	for i := 0; i < fixed; i++ {
		out = append(out, decodeArg(ft.In(i), rawAt(ordered, i)))
	}
	if ft.IsVariadic() {
		elem := ft.In(fixed).Elem()
		for i := fixed; i < len(ordered); i++ {
			if ordered[i] == "" {
				continue
			}
			out = append(out, decodeArg(elem, ordered[i]))
		}
	}
	return out
}

func rawAt(ordered []string, i int) string {
	if i < len(ordered) {
		return ordered[i]
	}
	return ""
}

// decodeArg decodes one raw JSON value into a parameter type, falling
// back to the zero value rather than failing.
func decodeArg(t reflect.Type, raw string) reflect.Value {
	v := reflect.New(t)
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), v.Interface()); err != nil {
			return reflect.Zero(t)
		}
	}
	return v.Elem()
}
