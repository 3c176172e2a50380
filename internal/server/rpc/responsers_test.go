package rpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunc_ParseRequest(t *testing.T) {
	raw := []byte(`{"id":1,"jtlrpc":"1.0","method":"core.connector.auth","params":"{\"token\":\"abc\"}"}`)

	req, err := ParseRequest(raw)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage("1"), req.ID)
	assert.Equal(t, "core.connector.auth", req.Method)
	assert.Equal(t, Params(`{"token":"abc"}`), req.Params)
}

func TestFunc_ParseRequestInlineParams(t *testing.T) {
	raw := []byte(`{"id":"a","jtlrpc":"1.0","method":"category.pull","params":{"limit":10}}`)

	req, err := ParseRequest(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"limit":10}`, string(req.Params))
}

func TestFunc_ParseRequestInvalid(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		hasID bool
	}{
		{"not json", `{`, false},
		{"missing id", `{"jtlrpc":"1.0","method":"category.pull"}`, true},
		{"null id", `{"id":null,"jtlrpc":"1.0","method":"category.pull"}`, true},
		{"wrong version", `{"id":1,"jtlrpc":"2.0","method":"category.pull"}`, true},
		{"missing method", `{"id":1,"jtlrpc":"1.0"}`, true},
		{"bad method", `{"id":1,"jtlrpc":"1.0","method":"Category.Pull"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest([]byte(tt.raw))
			assert.ErrorIs(t, err, ErrMalformedEnvelope)
			assert.Equal(t, tt.hasID, req != nil)
		})
	}
}

func TestFunc_ResponseExclusivity(t *testing.T) {
	id := json.RawMessage(`7`)

	ok := NewResponse([]any{}, id)
	assert.NoError(t, ok.Validate())

	failed := NewError(ErrAuthFailed, ErrAuthFailedS, id)
	assert.NoError(t, failed.Validate())

	neither := &Response{ID: id, JTLRPC: JTLRPCVersion}
	assert.ErrorIs(t, neither.Validate(), ErrInvalidResponse)

	both := &Response{ID: id, JTLRPC: JTLRPCVersion, Result: true, Error: &Error{Code: 1}}
	assert.ErrorIs(t, both.Validate(), ErrInvalidResponse)
}

func TestFunc_EncodeReplacesInvalidResponse(t *testing.T) {
	data, err := Encode(&Response{ID: json.RawMessage(`3`), JTLRPC: JTLRPCVersion})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.NotContains(t, decoded, "result")
	assert.Equal(t, float64(ErrInternalError), decoded["error"].(map[string]any)["code"])
	assert.Equal(t, float64(3), decoded["id"])
}
