package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"paylog/pkg/requestcontext"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an identifier for log correlation. An
// inbound X-Request-ID is trusted; otherwise one is minted.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
