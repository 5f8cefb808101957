package compiler

import (
	"crypto/sha256"
	"encoding/hex"
)

// Object is a compiled module: a CommonJS function body whose import
// specifiers have been rewritten to module ids.
type Object struct {
	ID      string
	Hash    string
	Code    []byte
	Imports []string
	Dynamic []string
}

func hash(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
