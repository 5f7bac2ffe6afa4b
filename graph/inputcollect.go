package graph

import "reflect"

// collectInputs gathers the values for every input n declares, following
// this precedence order: the current state value, then the
// graph's binding table, then the node's signature default. Since run-time
// values supplied to Run are seeded into state at version 1 before the
// first superstep, "provided to the run" is already
// covered by the state lookup and needs no separate branch here.
//
// Alongside the input map, collectInputs returns the per-parameter version
// each value was read at (0 for a bound or defaulted value that never
// lives in state), which the caller records via RunState.RecordExecution
// so the next superstep's staleness check has something to compare
// against. wait_for names are folded into the same map under their own
// name, even though they are never passed to the callable, so the
// ready-rule's freshness check can read it back the same
// way.
func collectInputs(g *Graph, state *RunState, n Node) (map[string]any, map[string]uint64, error) {
	inputs := make(map[string]any, len(n.Inputs()))
	consumed := make(map[string]uint64, len(n.Inputs())+len(n.WaitFor()))
	var missing []string

	for _, p := range n.Inputs() {
		if v, ok := state.Get(p); ok {
			inputs[p] = v
			consumed[p] = state.Version(p)
			continue
		}
		if v, ok := g.Bindings()[p]; ok {
			inputs[p] = v
			consumed[p] = 0
			continue
		}
		if n.HasDefault(p) {
			v, err := materializeDefault(n.GetDefault(p))
			if err != nil {
				return nil, nil, &GraphConfigError{
					Node:    n.Name(),
					Param:   p,
					Message: "signature default is not safely copyable: " + err.Error(),
					Hint:    "bind(...) the parameter instead of giving it a mutable, non-copyable default",
				}
			}
			inputs[p] = v
			consumed[p] = 0
			continue
		}
		missing = append(missing, p)
	}
	if len(missing) > 0 {
		return nil, nil, &MissingInputError{Missing: missing, Provided: providedNames(state, g)}
	}

	for _, w := range n.WaitFor() {
		if v, ok := state.Get(w); ok {
			consumed[w] = state.Version(w)
			_ = v
		}
	}

	return inputs, consumed, nil
}

func providedNames(state *RunState, g *Graph) []string {
	var out []string
	for k := range state.values {
		out = append(out, k)
	}
	for k := range g.Bindings() {
		out = append(out, k)
	}
	return out
}

// materializeDefault deep-copies a signature default if it is a mutable
// container (map or slice), so repeated executions of the same node never
// observe mutations a previous execution made to the shared default.
// Non-container values pass through unchanged; a container that
// cannot be copied (e.g. one holding a function or channel deep inside)
// falls back to a shallow copy rather than failing outright, matching the
// "deep-copy failure falls back to shallow copy with a warning" clause —
// the warning is the caller's GraphConfigError path only for the narrower
// case of genuinely uncopyable top-level values (chan, func).
func materializeDefault(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Chan, reflect.Func:
		return nil, errNonCopyableDefault
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Ptr:
		return deepCopyValue(v), nil
	default:
		return v, nil
	}
}

var errNonCopyableDefault = nonCopyableErr{}

type nonCopyableErr struct{}

func (nonCopyableErr) Error() string { return "default holds a channel or function value" }

// deepCopyValue recursively copies maps and slices so that broadcasting a
// value across a map_config iteration or reusing a signature
// default across executions never lets one consumer's in-place mutation
// leak into another's view of the same data. Anything else (scalars,
// structs, pointers to structs) is returned as-is: the Go ecosystem has no
// universal deep-copy primitive, and reflecting into arbitrary struct
// graphs risks copying something that was never meant to be duplicated
// (a mutex, a database handle). Maps and slices are exactly the shapes the
// spec calls out.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), reflect.ValueOf(deepCopyValue(iter.Value().Interface())))
		}
		return out.Interface()
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(reflect.ValueOf(deepCopyValue(rv.Index(i).Interface())))
		}
		return out.Interface()
	default:
		return v
	}
}
