package models

import (
	"net/http"
	"net/url"
	"time"
)

// AuthType defines how a target's credential is attached to outbound calls
type AuthType string

const (
	NoAuth     AuthType = "no-auth"     // No credential
	HeaderAuth AuthType = "header-auth" // Credential sent in the header named by AuthName
	QueryAuth  AuthType = "query-auth"  // Credential sent as the query parameter named by AuthName
)

// Target is one reachable endpoint/credential pair. Targets are tried in
// slice order, primary first.
type Target struct {
	Name       string   `json:"name" validate:"required,min=1"`
	BaseURL    string   `json:"baseUrl" validate:"required,url"`
	AuthType   AuthType `json:"authType" validate:"required,oneof=no-auth header-auth query-auth"`
	AuthName   string   `json:"authName" validate:"required_unless=AuthType no-auth"`
	Credential string   `json:"-" validate:"required_unless=AuthType no-auth"`
	// VoiceID replaces the {voice_id} placeholder in payload paths.
	VoiceID string `json:"voiceId,omitempty"`
}

// Payload describes the provider-specific part of an outbound request.
type Payload struct {
	Method string
	// Path is appended to the target's BaseURL and may contain {voice_id}.
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// UpstreamResponse is a successful (2xx) upstream reply
type UpstreamResponse struct {
	Target      string
	StatusCode  int
	ContentType string
	Body        []byte
	Elapsed     time.Duration
	// Attempts counts every target tried, including the successful one.
	Attempts int
}
