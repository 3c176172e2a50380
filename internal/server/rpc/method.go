package rpc

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

type Action string

const (
	ActionPush      Action = "push"
	ActionPull      Action = "pull"
	ActionDelete    Action = "delete"
	ActionStatistic Action = "statistic"

	ActionAuth     Action = "auth"
	ActionInit     Action = "init"
	ActionFeatures Action = "features"
	ActionAck      Action = "ack"
)

const (
	CoreNamespace  = "core"
	CoreController = "connector"

	// MethodAuth is the only method allowed to run without a session.
	MethodAuth = "core.connector.auth"
)

var ErrInvalidMethod = errors.New("invalid method")

var allowedMethod = regexp.MustCompile(`^(core\.)?[a-z_]+\.[a-z_]+$`)

// IsCore reports whether the action belongs to the built-in connector controller.
func (a Action) IsCore() bool {
	switch a {
	case ActionAuth, ActionInit, ActionFeatures, ActionAck:
		return true
	}
	return false
}

func (a Action) valid() bool {
	switch a {
	case ActionPush, ActionPull, ActionDelete, ActionStatistic:
		return true
	}
	return a.IsCore()
}

// Method is the routed form of a "controller.action" string.
type Method struct {
	Controller string
	Action     Action
	Core       bool
}

func (m Method) String() string {
	if m.Core {
		return fmt.Sprintf("%s.%s.%s", CoreNamespace, m.Controller, m.Action)
	}
	return fmt.Sprintf("%s.%s", m.Controller, m.Action)
}

// Modifies reports whether the method writes endpoint data.
func (m Method) Modifies() bool {
	return !m.Core && (m.Action == ActionPush || m.Action == ActionDelete)
}

func IsMethod(method string) bool {
	return allowedMethod.MatchString(method)
}

// SplitMethod resolves a method string into controller and action.
// Core methods live under "core.connector"; everything else addresses an
// endpoint controller and may only use the data actions.
func SplitMethod(method string) (Method, error) {
	rest := method
	core := false
	if strings.HasPrefix(method, CoreNamespace+".") {
		core = true
		rest = method[len(CoreNamespace)+1:]
	}

	parts := strings.Split(rest, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Method{}, fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}

	action := Action(parts[1])
	if !action.valid() {
		return Method{}, fmt.Errorf("%w: unknown action %q", ErrInvalidMethod, parts[1])
	}
	if core != action.IsCore() || (core && parts[0] != CoreController) {
		return Method{}, fmt.Errorf("%w: %q is not routable", ErrInvalidMethod, method)
	}

	return Method{Controller: parts[0], Action: action, Core: core}, nil
}

// BuildController turns a wire controller name into its type name,
// e.g. "product_price" becomes "ProductPrice".
func BuildController(controller string) string {
	var b strings.Builder
	for _, part := range strings.Split(controller, "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}
