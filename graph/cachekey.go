package graph

import (
	"encoding/json"
	"sort"
)

// routingDecisionCacheKey names a reserved field for embedding a routing
// decision in a cached output map. Nothing reads or writes it: CacheEntry
// carries decisions in its own Decision field, and gate nodes are never
// cached.
const routingDecisionCacheKey = "__routing_decision__"

// CacheKey derives the cache key for one node execution: a SHA-256
// (via hashParts) of the node's definition hash plus its consumed inputs,
// serialized after sorting by key so map iteration order never perturbs
// the hash.
func CacheKey(definitionHash string, inputs map[string]any) (string, error) {
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		ordered = append(ordered, k, inputs[k])
	}
	payload, err := json.Marshal(ordered)
	if err != nil {
		return "", err
	}
	return hashParts(definitionHash, string(payload)), nil
}
