package application

import (
	"regexp"
	"strings"

	"github.com/akyaiy/GoSally-connector/internal/server/rpc"
)

var tokenField = regexp.MustCompile(`("token"\s*:\s*")((?:[^"\\]|\\.)*)(")`)

// MaskToken hides the auth token in logged params. Params of every other
// method are returned unchanged.
func MaskToken(method, params string) string {
	if method != rpc.MethodAuth {
		return params
	}
	return tokenField.ReplaceAllStringFunc(params, func(m string) string {
		parts := tokenField.FindStringSubmatch(m)
		return parts[1] + strings.Repeat("*", len(parts[2])) + parts[3]
	})
}
