package rpc

import (
	"encoding/json"
	"net/http"
)

// Encode serializes a validated response. A response that violates the
// result/error invariant is replaced by an internal error.
func Encode(msg *Response) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		msg = NewError(ErrInternalError, err.Error(), msg.ID)
	}
	return json.Marshal(msg)
}

func write(w http.ResponseWriter, data []byte) error {
	w.Header().Set("Content-Type", "application/json")
	_, err := w.Write(data)
	return err
}

func WriteResponse(w http.ResponseWriter, response *Response) error {
	data, err := Encode(response)
	if err != nil {
		return err
	}
	return write(w, data)
}

// WriteRaw writes an already encoded response packet.
func WriteRaw(w http.ResponseWriter, data []byte) error {
	return write(w, data)
}
