package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestWithRequestAndTrace(t *testing.T) {
	var gotReq, gotTrace string
	h := WithRequestAndTrace(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = RequestIDFromContext(r.Context())
		gotTrace = TraceIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-1", gotReq)
	_, err := uuid.Parse(gotTrace)
	assert.NoError(t, err, "trace id should be generated")
	assert.Equal(t, "req-1", rec.Header().Get(HeaderRequestID))
	assert.Equal(t, gotTrace, rec.Header().Get(HeaderTraceID))
}

func TestInboundIDRejectsUnsafeValues(t *testing.T) {
	for _, v := range []string{"", "line\nbreak", "a b", strings.Repeat("x", maxIDLength+1)} {
		got := inboundID(v)
		_, err := uuid.Parse(got)
		assert.NoError(t, err, "input %q should be replaced", v)
	}
	assert.Equal(t, "abc-123_x.y:z", inboundID("abc-123_x.y:z"))
}

func TestWithIDs(t *testing.T) {
	ctx := WithIDs(context.Background(), "", "sweep-1")
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Equal(t, "sweep-1", TraceIDFromContext(ctx))
	assert.Empty(t, TraceIDFromContext(context.Background()))
}
