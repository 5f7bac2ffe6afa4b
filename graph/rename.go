package graph

import (
	"fmt"
	"sort"
	"sync/atomic"
)

// RenameEntry records one rename applied to a node's name, inputs, or
// outputs. Entries sharing a batchID came from the same With* call and are
// applied as a parallel substitution rather than a sequential chain — so a
// batch renaming {x: y, y: x} swaps the two names instead of collapsing
// them to one.
type RenameEntry struct {
	Kind    string // "name", "inputs", or "outputs"
	Old     string
	New     string
	BatchID uint64
}

var renameBatchCounter uint64

// nextBatchID returns a new identifier shared by every RenameEntry produced
// by a single With* call.
func nextBatchID() uint64 {
	return atomic.AddUint64(&renameBatchCounter, 1)
}

// RenameError is raised when a rename references a name that is not
// present, or when applying a rename batch would collide two names
// together.
type RenameError struct {
	Message string
}

func (e *RenameError) Error() string { return e.Message }

// applyRename renames entries in values according to mapping, recording
// history under a single batch id. Renaming a name not present in values is
// an error; the message includes the rename chain already recorded in
// history so a caller renaming a name that was already renamed gets a
// diagnostic rather than a bare "not found."
func applyRename(values []string, mapping map[string]string, kind string, history []RenameEntry) ([]string, []RenameEntry, error) {
	if len(mapping) == 0 {
		return values, history, nil
	}

	valid := make(map[string]bool, len(values))
	for _, v := range values {
		valid[v] = true
	}

	var unknown []string
	for old := range mapping {
		if !valid[old] {
			unknown = append(unknown, old)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, nil, &RenameError{Message: fmt.Sprintf(
			"cannot rename unknown %s %v: %s", kind, unknown, renameChainHint(unknown, history, kind)),
		}
	}

	batch := nextBatchID()
	out := make([]string, len(values))
	newEntries := make([]RenameEntry, 0, len(mapping))
	for i, v := range values {
		if nv, ok := mapping[v]; ok {
			out[i] = nv
			newEntries = append(newEntries, RenameEntry{Kind: kind, Old: v, New: nv, BatchID: batch})
		} else {
			out[i] = v
		}
	}

	seen := make(map[string]bool, len(out))
	var dups []string
	for _, v := range out {
		if seen[v] {
			dups = append(dups, v)
		}
		seen[v] = true
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		return nil, nil, &RenameError{Message: fmt.Sprintf("rename produces duplicate %s: %v", kind, dups)}
	}

	return out, append(append([]RenameEntry{}, history...), newEntries...), nil
}

// renameChainHint builds a human-readable rename chain (a -> x -> z) for
// names that could not be found, to help a caller understand that the name
// they tried to rename had already been renamed away.
func renameChainHint(unknown []string, history []RenameEntry, kind string) string {
	hint := ""
	for _, name := range unknown {
		chain := getRenameChain(name, history, kind)
		if len(chain) > 1 {
			if hint != "" {
				hint += "; "
			}
			hint += fmt.Sprintf("%q was renamed: %v", name, chain)
		}
	}
	if hint == "" {
		return "no such name was ever present"
	}
	return hint
}

// getRenameChain walks history forward from name, following New pointers,
// to build the full a -> x -> z chain for diagnostics.
func getRenameChain(name string, history []RenameEntry, kind string) []string {
	chain := []string{name}
	current := name
	for {
		found := false
		for _, e := range history {
			if e.Kind == kind && e.Old == current {
				chain = append(chain, e.New)
				current = e.New
				found = true
				break
			}
		}
		if !found {
			break
		}
	}
	return chain
}

// buildForwardRenameMap returns original-name -> current-name for the given
// kind ("inputs" or "outputs"), honoring batch-parallel semantics: renames
// within the same batch are resolved against the map state before the
// batch, not against each other.
func buildForwardRenameMap(history []RenameEntry, kind string) map[string]string {
	return buildRenameMap(history, kind, true)
}

// buildReverseRenameMap returns current-name -> original-name.
func buildReverseRenameMap(history []RenameEntry, kind string) map[string]string {
	return buildRenameMap(history, kind, false)
}

func buildRenameMap(history []RenameEntry, kind string, forward bool) map[string]string {
	var entries []RenameEntry
	for _, e := range history {
		if e.Kind == kind {
			entries = append(entries, e)
		}
	}
	if len(entries) == 0 {
		return map[string]string{}
	}

	var batchOrder []uint64
	batches := map[uint64][]RenameEntry{}
	for _, e := range entries {
		if _, ok := batches[e.BatchID]; !ok {
			batchOrder = append(batchOrder, e.BatchID)
		}
		batches[e.BatchID] = append(batches[e.BatchID], e)
	}

	result := map[string]string{}
	for _, id := range batchOrder {
		updates := map[string]string{}
		for _, e := range batches[id] {
			if forward {
				// find key k such that result[k] == e.Old, else e.Old itself
				original := e.Old
				for k, v := range result {
					if v == e.Old {
						original = k
						break
					}
				}
				updates[original] = e.New
			} else {
				original := result[e.Old]
				if original == "" {
					original = e.Old
				}
				updates[e.New] = original
			}
		}
		for k, v := range updates {
			result[k] = v
		}
	}
	return result
}
