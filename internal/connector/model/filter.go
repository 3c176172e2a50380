package model

import "encoding/json"

// QueryFilter is the parameter of pull and statistic calls.
type QueryFilter struct {
	Limit   int            `json:"limit"`
	Filters map[string]any `json:"filters,omitempty"`
}

const DefaultPullLimit = 100

// DecodeQueryFilter decodes pull/statistic params; empty params yield the default filter.
func DecodeQueryFilter(data []byte) (*QueryFilter, error) {
	f := &QueryFilter{Limit: DefaultPullLimit}
	if len(data) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(data, f); err != nil {
		return nil, err
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPullLimit
	}
	return f, nil
}

func (f *QueryFilter) String(key string) string {
	if f == nil || f.Filters == nil {
		return ""
	}
	s, _ := f.Filters[key].(string)
	return s
}

type Statistic struct {
	ControllerName string `json:"controllerName"`
	Available      int    `json:"available"`
}

type AuthRequest struct {
	Token string `json:"token"`
}

// AuthResult is returned by a successful core.connector.auth.
type AuthResult struct {
	SessionID string `json:"sessionId"`
	Lifetime  int64  `json:"lifetime"`
}

// Ack is sent by the host after it stored pulled entities.
type Ack struct {
	Identities map[string][]Identity `json:"identities"`
}

type ConnectorIdentification struct {
	EndpointVersion string     `json:"endpointVersion"`
	PlatformName    string     `json:"platformName"`
	PlatformVersion string     `json:"platformVersion"`
	ProtocolVersion int        `json:"protocolVersion"`
	ServerInfo      ServerInfo `json:"serverInfo"`
}

type ServerInfo struct {
	Runtime        string `json:"runtime"`
	OS             string `json:"os"`
	MaxUploadBytes int64  `json:"maxUploadBytes"`
}

// Feature describes what the connector supports for one entity.
type Feature struct {
	Push   bool `json:"push"`
	Pull   bool `json:"pull"`
	Delete bool `json:"delete"`
}

type Features struct {
	Entities map[string]Feature `json:"entities"`
	Flags    map[string]bool    `json:"flags"`
}
