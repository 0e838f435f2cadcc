package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"

	maxIDLength = 64
)

type idKey int

const (
	requestIDKey idKey = iota
	traceIDKey
)

// WithRequestAndTrace adopts X-Request-ID and X-Trace-ID from the caller when
// they look sane and mints UUIDs otherwise. Both are echoed on the response.
func WithRequestAndTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := inboundID(r.Header.Get(HeaderRequestID))
		traceID := inboundID(r.Header.Get(HeaderTraceID))

		w.Header().Set(HeaderRequestID, reqID)
		w.Header().Set(HeaderTraceID, traceID)
		next.ServeHTTP(w, r.WithContext(WithIDs(r.Context(), reqID, traceID)))
	})
}

// WithIDs attaches ids to ctx for work that does not arrive over HTTP, such
// as a sweep pass. Empty values are left unset.
func WithIDs(ctx context.Context, requestID, traceID string) context.Context {
	if requestID != "" {
		ctx = context.WithValue(ctx, requestIDKey, requestID)
	}
	if traceID != "" {
		ctx = context.WithValue(ctx, traceIDKey, traceID)
	}
	return ctx
}

// inboundID keeps caller-supplied ids out of the logs unless they are short
// and made of token characters.
func inboundID(v string) string {
	if v == "" || len(v) > maxIDLength {
		return uuid.NewString()
	}
	for _, c := range v {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.' || c == ':':
		default:
			return uuid.NewString()
		}
	}
	return v
}

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

func TraceIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey).(string)
	return v
}
