// Package token implements the correlation code embedded in email
// subjects. Every message of one conversation carries the same code, so
// an inbound reply can be matched back to its thread no matter how many
// "Re:"/"Fwd:" prefixes mail clients pile onto the subject.
package token

import (
	"crypto/rand"
	"regexp"
)

// Prefix 是跟踪码的固定前缀（Freight Ops）
const Prefix = "FO"

// suffixLen is the number of random alphanumerics after the prefix.
const suffixLen = 8

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// pattern matches a bracketed tracking code anywhere in a subject line.
var pattern = regexp.MustCompile(`\[(` + Prefix + `-[A-Z0-9]{8})\]`)

// Mint generates a new tracking code, e.g. "FO-A1B2C3D4". Uniqueness is
// probabilistic; the thread registry's unique constraint is the real
// guard and the caller regenerates on a collision.
func Mint() string {
	b := make([]byte, suffixLen)
	rand.Read(b)
	out := make([]byte, suffixLen)
	for i, v := range b {
		out[i] = alphabet[int(v)%len(alphabet)]
	}
	return Prefix + "-" + string(out)
}

// Embed appends the bracketed code to a subject line. The result stays
// extractable after mail clients prepend reply prefixes.
func Embed(subject, code string) string {
	return subject + " [" + code + "]"
}

// Extract returns the first tracking code found in the subject, or ""
// when none is present. Absence is a normal outcome (stripped or
// mangled subjects), not an error.
func Extract(subject string) string {
	m := pattern.FindStringSubmatch(subject)
	if m == nil {
		return ""
	}
	return m[1]
}
