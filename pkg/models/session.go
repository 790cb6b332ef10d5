package models

import (
	"strings"
	"time"
)

// Permission is the access level granted at login.
type Permission string

const (
	PermissionReadOnly  Permission = "read-only"
	PermissionReadWrite Permission = "read-write"
)

// ParsePermission normalises the permission string returned by the service.
// Anything unrecognised is treated as read-only.
func ParsePermission(s string) Permission {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "read-write", "readwrite", "read_write":
		return PermissionReadWrite
	default:
		return PermissionReadOnly
	}
}

// Session is the credential state held for the lifetime of a login.
type Session struct {
	User        string     `json:"user" yaml:"user"`
	Token       string     `json:"-" yaml:"-"`
	Permissions Permission `json:"permissions" yaml:"permissions"`
	// Expiry is zero when the token carries no exp claim.
	Expiry time.Time `json:"expiry,omitempty" yaml:"expiry,omitempty"`
}

func (s *Session) IsWritable() bool {
	return s != nil && s.Token != "" && s.Permissions == PermissionReadWrite
}

// LoginResponse is the body of a successful login request.
type LoginResponse struct {
	Status       string `json:"status"`
	JSONWebToken string `json:"jsonWebToken"`
	Permissions  string `json:"permissions"`
}

// APIRequest is the body of every request sent to the CCT endpoint.
type APIRequest struct {
	RequestType     string `json:"request_type"`
	Schema          Schema `json:"schema,omitempty"`
	EventIdentifier string `json:"eventIdentifier,omitempty"`
}

// SchemasResponse is returned by the availableSchemas request.
type SchemasResponse struct {
	Status           string   `json:"status"`
	AvailableSchemas []string `json:"availableSchemas"`
}
