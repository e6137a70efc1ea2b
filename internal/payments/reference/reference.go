// Package reference builds the transaction references sent to the payment gateway.
package reference

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

// Purpose prefixes used across checkout flows.
const (
	PrefixAuthorization = "AUTH"
	PrefixOrder         = "ORDER"
	PrefixCapture       = "CAPTURE"
)

const (
	defaultPrefix = "REF"
	suffixLength  = 5
	base36Digits  = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Generate returns an upper-cased {PREFIX}_{base36 millis}_{5 random base36 chars} reference.
func Generate(prefix string) string {
	return generateAt(time.Now(), prefix)
}

// HasPrefix reports whether ref was generated with the given purpose prefix.
func HasPrefix(ref, prefix string) bool {
	return strings.HasPrefix(strings.ToUpper(ref), strings.ToUpper(prefix)+"_")
}

func generateAt(now time.Time, prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}

	suffix := make([]byte, suffixLength)
	for i := range suffix {
		suffix[i] = base36Digits[rand.IntN(len(base36Digits))]
	}

	ts := strconv.FormatInt(now.UnixMilli(), 36)
	return strings.ToUpper(prefix + "_" + ts + "_" + string(suffix))
}
