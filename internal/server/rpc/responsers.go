package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformedEnvelope = errors.New("malformed rpc envelope")
	ErrInvalidResponse   = errors.New("response must carry exactly one of result or error")
)

// ParseRequest decodes and validates a request packet. The returned packet is
// non-nil whenever the body was valid JSON, so callers can echo its id even
// when validation fails.
func ParseRequest(raw []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedEnvelope, err.Error())
	}
	if err := req.Validate(); err != nil {
		return &req, err
	}
	return &req, nil
}

func (r *Request) Validate() error {
	if len(r.ID) == 0 || string(r.ID) == "null" {
		return fmt.Errorf("%w: id is missing", ErrMalformedEnvelope)
	}
	if r.JTLRPC != JTLRPCVersion {
		return fmt.Errorf("%w: unsupported jtlrpc version %q", ErrMalformedEnvelope, r.JTLRPC)
	}
	if !IsMethod(r.Method) {
		return fmt.Errorf("%w: invalid method %q", ErrMalformedEnvelope, r.Method)
	}
	return nil
}

func (r *Response) Validate() error {
	if (r.Result == nil) == (r.Error == nil) {
		return ErrInvalidResponse
	}
	return nil
}

func NewError(code int, message string, id json.RawMessage) *Response {
	return &Response{
		JTLRPC: JTLRPCVersion,
		ID:     id,
		Error: &Error{
			Code:    code,
			Message: message,
		},
	}
}

func NewResponse(result any, id json.RawMessage) *Response {
	return &Response{
		JTLRPC: JTLRPCVersion,
		ID:     id,
		Result: result,
	}
}
