package storage

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const fallbackName = "arquivo-sem-nome"

var (
	spaces   = regexp.MustCompile(`\s+`)
	invalid  = regexp.MustCompile(`[^a-z0-9-]`)
	dashRuns = regexp.MustCompile(`-{2,}`)
)

// Sanitize turns a user supplied file name into a URL safe one. The
// extension is kept as given.
func Sanitize(name string) string {
	base, ext := name, ""
	if i := strings.LastIndex(name, "."); i > 0 {
		base, ext = name[:i], name[i:]
	}

	deburr := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if s, _, err := transform.String(deburr, base); err == nil {
		base = s
	}

	base = strings.ToLower(base)
	base = spaces.ReplaceAllString(base, "-")
	base = invalid.ReplaceAllString(base, "")
	base = dashRuns.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")
	if base == "" {
		base = fallbackName
	}
	return base + ext
}

// NewKey returns a collision resistant object key for name.
func NewKey(name string) string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:]) + "-" + Sanitize(name)
}
