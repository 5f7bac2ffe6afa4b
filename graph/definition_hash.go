package graph

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashParts is the shared content-addressing primitive behind every node
// variant's DefinitionHash and Graph.DefinitionHash: a SHA-256 over
// the UTF-8 concatenation of parts, each already formatted by the caller
// into a stable, unambiguous representation (name, sorted input/output
// lists, a content tag). Centralized here so every variant hashes the same
// way instead of each rolling its own sha256.Sum256/hex.EncodeToString
// pair.
func hashParts(parts ...string) string {
	var buf []byte
	for _, p := range parts {
		buf = append(buf, p...)
		buf = append(buf, 0)
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}
