package rpc

import (
	"bytes"
	"encoding/json"
)

// Request is a single jtlrpc request packet.
type Request struct {
	ID     json.RawMessage `json:"id"`
	JTLRPC string          `json:"jtlrpc"`
	Method string          `json:"method"`
	Params Params          `json:"params,omitempty"`
}

// Response carries either Result or Error, never both.
type Response struct {
	ID     json.RawMessage `json:"id"`
	JTLRPC string          `json:"jtlrpc"`
	Result any             `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Params is the string-encoded JSON payload of a request. Hosts normally send
// it as a JSON string; an inline object or array is accepted as well.
type Params string

func (p *Params) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*p = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*p = Params(s)
		return nil
	}
	*p = Params(trimmed)
	return nil
}

func (p Params) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(p))
}

const (
	JTLRPCVersion = "1.0"

	// ProtocolVersion is the connector protocol reported by core.connector.init.
	ProtocolVersion = 7
)
