package tunefile

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Normalize concatenates the tune's identifying content after cleaning
// each part. It trims whitespace, lowercases, and normalizes line
// endings before joining, so formatting differences don't change the
// fingerprint.
func Normalize(t Tune) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	title := normalizePart(t.Title)
	genre := normalizePart(t.Genre)

	// Joined with a newline so fields can't run together and collide.
	return strings.Join([]string{title, genre}, "\n")
}

// Fingerprint returns the tune's stable identity: the SHA-256 of its
// normalized title and genre, as a hex string. Re-importing the same
// tune from any source yields the same id.
func Fingerprint(t Tune) string {
	normalized := Normalize(t)
	hashBytes := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hashBytes)
}
