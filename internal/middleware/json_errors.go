package middleware

import (
	"net/http"
	"strings"

	"github.com/goclaw/backend/internal/apierr"
)

// JSONErrors serves mux, replacing the plain-text bodies of the mux's own
// 404 and 405 responses with the API's JSON error body. Requests that match
// a registered pattern are served untouched.
func JSONErrors(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, pattern := mux.Handler(r); pattern != "" {
			mux.ServeHTTP(w, r)
			return
		}
		mux.ServeHTTP(&errorBodyWriter{ResponseWriter: w}, r)
	})
}

type errorBodyWriter struct {
	http.ResponseWriter
	replaced bool
}

func (w *errorBodyWriter) WriteHeader(code int) {
	if code < http.StatusBadRequest {
		w.ResponseWriter.WriteHeader(code)
		return
	}
	w.replaced = true
	apierr.WriteMessage(w.ResponseWriter, code, strings.ToLower(http.StatusText(code)))
}

func (w *errorBodyWriter) Write(b []byte) (int, error) {
	if w.replaced {
		return len(b), nil
	}
	return w.ResponseWriter.Write(b)
}
