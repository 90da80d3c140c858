package idempotency

import (
	"net/http"
	"strings"
)

const Header = "Idempotency-Key"

// Keys longer than this are ignored rather than stored.
const maxKeyLen = 128

// Key extracts a usable idempotency key from the request, or "".
func Key(r *http.Request) string {
	k := strings.TrimSpace(r.Header.Get(Header))
	if len(k) > maxKeyLen {
		return ""
	}
	return k
}
