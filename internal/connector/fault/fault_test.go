package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/akyaiy/GoSally-connector/internal/server/rpc"
	"github.com/stretchr/testify/assert"
)

type codedErr struct{ code int }

func (e codedErr) Error() string { return "coded" }
func (e codedErr) Code() int     { return e.code }

func TestFunc_From(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		kind Kind
	}{
		{"malformed", fmt.Errorf("%w: id is missing", rpc.ErrMalformedEnvelope), rpc.ErrInvalidRequest, KindMalformedEnvelope},
		{"invalid method", fmt.Errorf("%w: x", rpc.ErrInvalidMethod), rpc.ErrInvalidRequest, KindMalformedEnvelope},
		{"no session", NoSession(), rpc.ErrNoSession, KindSession},
		{"wrapped fault", fmt.Errorf("outer: %w", Linker("unknown identity", nil)), rpc.ErrLinker, KindLinker},
		{"plain", errors.New("boom"), rpc.ErrApplication, KindApplication},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := From(tt.err)
			assert.Equal(t, tt.code, f.Code)
			assert.Equal(t, tt.kind, f.Kind)
		})
	}
}

func TestFunc_ControllerCode(t *testing.T) {
	assert.Equal(t, rpc.ErrController, Controller("Product", errors.New("x")).Code)
	assert.Equal(t, 1234, Controller("Product", fmt.Errorf("wrap: %w", codedErr{1234})).Code)
	assert.Equal(t, rpc.ErrController, Controller("Product", codedErr{0}).Code)
}

func TestFunc_RPCErrorMessage(t *testing.T) {
	f := Application("zip file missing", errors.New("no upload"))
	assert.Equal(t, &rpc.Error{Code: rpc.ErrApplication, Message: "zip file missing: no upload"}, f.RPCError())
	assert.Equal(t, rpc.ErrAuthFailedS, AuthFailed().RPCError().Message)
}
