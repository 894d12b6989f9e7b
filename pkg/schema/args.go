package schema

import (
	"github.com/tidwall/gjson"
)

// Arguments holds decoded call arguments: positional values in order,
// plus named values keyed by parameter name.
type Arguments struct {
	Args   []interface{}
	Kwargs map[string]interface{}

	// Raw JSON per argument, used to decode into the target parameter
	// types once the function signature is known.
	RawArgs   []string
	RawKwargs map[string]string
}

// DecodeArgs parses an argument document of the form
// {"args": [...], "kwargs": {...}}. Malformed or missing input is never
// fatal: anything unparseable decodes to empty argument lists.
func DecodeArgs(argsJSON string) Arguments {
	out := Arguments{
		Kwargs:    make(map[string]interface{}),
		RawKwargs: make(map[string]string),
	}
	if argsJSON == "" || !gjson.Valid(argsJSON) {
		return out
	}

	if args := gjson.Get(argsJSON, "args"); args.IsArray() {
		for _, el := range args.Array() {
			out.Args = append(out.Args, el.Value())
			out.RawArgs = append(out.RawArgs, el.Raw)
		}
	}
	if kwargs := gjson.Get(argsJSON, "kwargs"); kwargs.IsObject() {
		kwargs.ForEach(func(key, value gjson.Result) bool {
			out.Kwargs[key.String()] = value.Value()
			out.RawKwargs[key.String()] = value.Raw
			return true
		})
	}
	return out
}

// Ordered merges positional and named arguments into a single positional
// list using the declared parameter names. Positional values win; named
// values fill the parameters they name; parameters with neither stay nil.
// Surplus arguments are dropped rather than rejected.
func (a Arguments) Ordered(paramNames []string) []string {
	ordered := make([]string, len(paramNames))
	for i := range paramNames {
		if i < len(a.RawArgs) {
			ordered[i] = a.RawArgs[i]
			continue
		}
		if raw, ok := a.RawKwargs[paramNames[i]]; ok {
			ordered[i] = raw
		}
	}
	return ordered
}
