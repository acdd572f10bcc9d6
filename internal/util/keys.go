package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// EncodeKey returns a canonical string for a tag and its ordered scope values.
// Every component is length-prefixed, so distinct tuples never collide even when
// values contain the separator.
func EncodeKey(tag string, scope []string) string {
	var b strings.Builder
	n := len(tag) + 4
	for _, s := range scope {
		n += len(s) + 4
	}
	b.Grow(n)
	writeComponent(&b, tag)
	for _, s := range scope {
		b.WriteByte('|')
		writeComponent(&b, s)
	}
	return b.String()
}

func writeComponent(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}

// Digest returns the first 16 hex chars of sha256(s). Used for redacting keys in logs.
func Digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
