package idempotency

import (
	"net/http"
	"strings"
)

const Header = "Idempotency-Key"

func Key(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(Header))
}

func Set(r *http.Request, key string) {
	if key = strings.TrimSpace(key); key != "" {
		r.Header.Set(Header, key)
	}
}

func KeyOr(r *http.Request, fallback string) string {
	if k := Key(r); k != "" {
		return k
	}
	return strings.TrimSpace(fallback)
}
