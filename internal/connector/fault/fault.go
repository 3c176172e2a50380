// Package fault holds the error taxonomy of the request pipeline and its
// translation into RPC error codes.
package fault

import (
	"errors"
	"fmt"

	"github.com/akyaiy/GoSally-connector/internal/server/rpc"
)

type Kind int

const (
	KindApplication Kind = iota
	KindMalformedEnvelope
	KindSession
	KindAuth
	KindLinker
	KindCompression
	KindController
)

func (k Kind) String() string {
	switch k {
	case KindMalformedEnvelope:
		return "malformed-envelope"
	case KindSession:
		return "session"
	case KindAuth:
		return "auth"
	case KindLinker:
		return "linker"
	case KindCompression:
		return "compression"
	case KindController:
		return "controller"
	default:
		return "application"
	}
}

// Error is a pipeline failure that knows its RPC code.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Coder is implemented by endpoint errors that carry their own RPC code.
type Coder interface {
	Code() int
}

func Malformed(err error) *Error {
	return &Error{Kind: KindMalformedEnvelope, Code: rpc.ErrInvalidRequest, Message: rpc.ErrInvalidRequestS, Err: err}
}

func NoSession() *Error {
	return &Error{Kind: KindSession, Code: rpc.ErrNoSession, Message: rpc.ErrNoSessionS}
}

func InvalidSession(err error) *Error {
	return &Error{Kind: KindSession, Code: rpc.ErrInvalidSession, Message: rpc.ErrInvalidSessionS, Err: err}
}

func AuthFailed() *Error {
	return &Error{Kind: KindAuth, Code: rpc.ErrAuthFailed, Message: rpc.ErrAuthFailedS}
}

func NoSessionContext() *Error {
	return &Error{Kind: KindAuth, Code: rpc.ErrNoSessionContext, Message: rpc.ErrNoSessionContextS}
}

func Linker(message string, err error) *Error {
	return &Error{Kind: KindLinker, Code: rpc.ErrLinker, Message: message, Err: err}
}

func Compression(message string, err error) *Error {
	return &Error{Kind: KindCompression, Code: rpc.ErrCompression, Message: message, Err: err}
}

func Application(message string, err error) *Error {
	return &Error{Kind: KindApplication, Code: rpc.ErrApplication, Message: message, Err: err}
}

// Controller wraps a fault raised by endpoint business logic.
func Controller(controller string, err error) *Error {
	code := rpc.ErrController
	var c Coder
	if errors.As(err, &c) && c.Code() != 0 {
		code = c.Code()
	}
	return &Error{Kind: KindController, Code: code, Message: fmt.Sprintf("controller %s failed", controller), Err: err}
}

// From maps any error that reached the pipeline boundary onto a fault.
func From(err error) *Error {
	var f *Error
	if errors.As(err, &f) {
		return f
	}
	switch {
	case errors.Is(err, rpc.ErrMalformedEnvelope), errors.Is(err, rpc.ErrInvalidMethod):
		return Malformed(err)
	}
	return Application(rpc.ErrApplicationS, err)
}

// RPCError renders the fault for the wire. The message carries the cause so
// the host can show it to the operator.
func (e *Error) RPCError() *rpc.Error {
	return &rpc.Error{Code: e.Code, Message: e.Error()}
}
