package server

import (
	"net/http"
	"strconv"
)

// parseIntQuery extracts an int query parameter with a default value.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
