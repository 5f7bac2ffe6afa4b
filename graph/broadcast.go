package graph

import (
	"fmt"
	"reflect"
)

// expandMapConfig turns one collected input map into a list of per-
// iteration input maps, broadcasting the parameters named in cfg.Params
// as lists and leaving every other input constant across iterations.
// Every value handed to an iteration — broadcast or constant —
// is deep-copied so in-place mutation inside one iteration's subgraph run
// can never leak into another's.
func expandMapConfig(cfg *MapConfig, inputs map[string]any) ([]map[string]any, error) {
	lists := make(map[string][]any, len(cfg.Params))
	length := -1
	for _, p := range cfg.Params {
		v, ok := inputs[p]
		if !ok {
			return nil, &GraphConfigError{Param: p, Message: "map_config parameter has no value to broadcast"}
		}
		items, err := toSlice(v)
		if err != nil {
			return nil, &GraphConfigError{Param: p, Message: "map_config parameter is not a list: " + err.Error()}
		}
		lists[p] = items
		if cfg.Mode == MapModeZip || cfg.Mode == "" {
			if length == -1 {
				length = len(items)
			} else if len(items) != length {
				return nil, &GraphConfigError{Message: fmt.Sprintf(
					"zip map_config requires equal-length lists; %q has %d, expected %d", p, len(items), length)}
			}
		}
	}

	var combos []map[string]int // param -> chosen index, one per iteration
	switch cfg.Mode {
	case MapModeZip, "":
		for i := 0; i < length; i++ {
			idx := make(map[string]int, len(cfg.Params))
			for _, p := range cfg.Params {
				idx[p] = i
			}
			combos = append(combos, idx)
		}
	case MapModeProduct:
		combos = cartesianIndices(cfg.Params, lists)
	default:
		return nil, &GraphConfigError{Message: fmt.Sprintf("unknown map_config mode %q", cfg.Mode)}
	}

	out := make([]map[string]any, 0, len(combos))
	for _, idx := range combos {
		iter := make(map[string]any, len(inputs))
		for k, v := range inputs {
			if i, broadcast := idx[k]; broadcast {
				iter[k] = deepCopyValue(lists[k][i])
			} else {
				iter[k] = deepCopyValue(v)
			}
		}
		out = append(out, iter)
	}
	return out, nil
}

// cartesianIndices enumerates the cartesian product of every params[i]'s
// index range, in params order (fastest-varying last), matching the
// conventional nested-loop product ordering.
func cartesianIndices(params []string, lists map[string][]any) []map[string]int {
	if len(params) == 0 {
		return nil
	}
	var out []map[string]int
	var walk func(i int, acc map[string]int)
	walk = func(i int, acc map[string]int) {
		if i == len(params) {
			cp := make(map[string]int, len(acc))
			for k, v := range acc {
				cp[k] = v
			}
			out = append(out, cp)
			return
		}
		p := params[i]
		for idx := range lists[p] {
			acc[p] = idx
			walk(i+1, acc)
		}
	}
	walk(0, map[string]int{})
	return out
}

// toSlice reflects v into a []any, erroring if v is not slice- or
// array-shaped.
func toSlice(v any) ([]any, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
}

// collectOutputLists gathers per-iteration subgraph outputs into
// per-output-name lists. A nil entry (continue-mode failure)
// contributes nil at its index so every output list stays aligned with
// the iteration count.
func collectOutputLists(outputNames []string, perIteration []map[string]any) map[string]any {
	lists := make(map[string][]any, len(outputNames))
	for _, name := range outputNames {
		lists[name] = make([]any, len(perIteration))
	}
	for i, outputs := range perIteration {
		for _, name := range outputNames {
			if outputs == nil {
				lists[name][i] = nil
				continue
			}
			lists[name][i] = outputs[name]
		}
	}
	out := make(map[string]any, len(outputNames))
	for _, name := range outputNames {
		out[name] = lists[name]
	}
	return out
}
