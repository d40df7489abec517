package httpadapter

import (
	"crypto/subtle"
	"net/http"
)

const adminTokenHeader = "X-Admin-Token"

// requireAdmin guards the admin endpoints with a shared secret. An empty
// configured token disables the check entirely.
func (rt *Router) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rt.adminToken == "" {
			next(w, r)
			return
		}
		presented := r.Header.Get(adminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(rt.adminToken)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid admin token"})
			return
		}
		next(w, r)
	}
}
