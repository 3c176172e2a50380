package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Identity pairs the id an entity has in the endpoint with the id the host
// assigned to it. Either half may be empty until the pair is linked.
// On the wire it is the array ["<endpoint>", <host>].
type Identity struct {
	Endpoint string
	Host     int64
}

func NewIdentity(endpoint string, host int64) Identity {
	return Identity{Endpoint: endpoint, Host: host}
}

func (i Identity) IsEmpty() bool {
	return i.Endpoint == "" && i.Host == 0
}

func (i Identity) HasEndpoint() bool { return i.Endpoint != "" }

func (i Identity) HasHost() bool { return i.Host != 0 }

func (i Identity) String() string {
	return fmt.Sprintf("[%q,%d]", i.Endpoint, i.Host)
}

func (i Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{i.Endpoint, i.Host})
}

func (i *Identity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*i = Identity{}
		return nil
	}

	if data[0] == '{' {
		var obj struct {
			Endpoint json.RawMessage `json:"endpoint"`
			Host     json.RawMessage `json:"host"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		return i.assign(obj.Endpoint, obj.Host)
	}

	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("identity: expected 2 elements, got %d", len(pair))
	}
	return i.assign(pair[0], pair[1])
}

func (i *Identity) assign(endpoint, host json.RawMessage) error {
	*i = Identity{}
	if len(endpoint) > 0 && string(endpoint) != "null" {
		var s string
		if err := json.Unmarshal(endpoint, &s); err != nil {
			// numeric endpoint ids are common in older endpoints
			var n json.Number
			if err := json.Unmarshal(endpoint, &n); err != nil {
				return fmt.Errorf("identity endpoint: %w", err)
			}
			s = n.String()
		}
		i.Endpoint = s
	}
	if len(host) > 0 && string(host) != "null" {
		var n json.Number
		if err := json.Unmarshal(host, &n); err != nil {
			var s string
			if err := json.Unmarshal(host, &s); err != nil {
				return fmt.Errorf("identity host: %w", err)
			}
			n = json.Number(s)
		}
		if n != "" {
			h, err := strconv.ParseInt(n.String(), 10, 64)
			if err != nil {
				return fmt.Errorf("identity host: %w", err)
			}
			i.Host = h
		}
	}
	return nil
}
