package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	hexAddrPattern = regexp.MustCompile(`0x[0-9a-fA-F]+`)
	uuidPattern    = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	digitPattern   = regexp.MustCompile(`\d+`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// NormalizeMessage folds the volatile parts of an error message (addresses,
// identifiers, counters) so that repeated occurrences of the same defect
// produce the same text.
func NormalizeMessage(message string) string {
	normalized := strings.ToLower(strings.TrimSpace(message))
	normalized = hexAddrPattern.ReplaceAllString(normalized, "0x?")
	normalized = uuidPattern.ReplaceAllString(normalized, "<id>")
	normalized = digitPattern.ReplaceAllString(normalized, "<n>")
	normalized = spacePattern.ReplaceAllString(normalized, " ")
	return normalized
}

// Signature returns a stable hex digest for a service+type+message identity,
// used as the inference cache key.
func Signature(service, errorType, message string) string {
	sum := sha256.Sum256([]byte(service + "|" + errorType + "|" + NormalizeMessage(message)))
	return hex.EncodeToString(sum[:])
}
