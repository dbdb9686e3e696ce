package backend

import (
	"fmt"
	"net/http"
)

// AuthType selects how the gateway authenticates to the backend.
type AuthType int

const (
	AuthNone AuthType = iota
	AuthBasic
	AuthBearer
)

// Auth applies the configured authentication strategy to outgoing
// requests.
type Auth struct {
	Type     AuthType
	Username string
	Password string
	Token    string
}

// NewAuth builds an Auth strategy from the configured auth type string,
// validating that the required credential fields are present.
func NewAuth(authType, username, password, token string) (Auth, error) {
	switch authType {
	case "", "none":
		return Auth{Type: AuthNone}, nil
	case "basic":
		if username == "" || password == "" {
			return Auth{}, fmt.Errorf("basic auth requires username and password")
		}
		return Auth{Type: AuthBasic, Username: username, Password: password}, nil
	case "bearer":
		if token == "" {
			return Auth{}, fmt.Errorf("bearer auth requires a token")
		}
		return Auth{Type: AuthBearer, Token: token}, nil
	default:
		return Auth{}, fmt.Errorf("unsupported loki auth type: %s", authType)
	}
}

// Apply sets the appropriate authentication header(s) on req.
func (a Auth) Apply(req *http.Request) {
	switch a.Type {
	case AuthBasic:
		req.SetBasicAuth(a.Username, a.Password)
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+a.Token)
	}
}
