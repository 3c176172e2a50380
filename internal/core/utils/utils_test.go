package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatchPanicWithFallback(t *testing.T) {
	var (
		got   any
		trace []byte
	)
	func() {
		defer CatchPanicWithFallback(func(rec any, stack []byte) {
			got, trace = rec, stack
		})
		panic("boom")
	}()
	assert.Equal(t, "boom", got)
	assert.NotEmpty(t, trace)
}

func TestSafeFetch(t *testing.T) {
	v := 5
	tests := []struct {
		name string
		in   *int
		want int
	}{
		{"set", &v, 5},
		{"nil", nil, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeFetch(tt.in, 7))
		})
	}
}

func TestNewUUIDRaw(t *testing.T) {
	a, err := NewUUIDRaw(NodeIDLength)
	require.NoError(t, err)
	b, err := NewUUIDRaw(NodeIDLength)
	require.NoError(t, err)
	assert.Len(t, a, NodeIDLength)
	assert.NotEqual(t, a, b)
}

func TestWriteJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSONError(rec, http.StatusRequestEntityTooLarge, "upload too large"))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "upload too large", body["error"])
}
