// Package session holds the storefront credential pair and the app-scoped
// session state built on top of it.
package session

import "fmt"

// Storage keys for the two tokens. Every backend persists the pair under
// these names so a credentials file written by one build stays readable.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// MinTokenLength is the length a token must exceed before it is sent as a
// bearer credential. Shorter values are leftovers from broken writes.
const MinTokenLength = 10

// Credentials is the access/refresh token pair issued by the backend on login.
// Values are immutable once shared; replace the whole pair to change it.
type Credentials struct {
	Access  string `json:"access_token"`
	Refresh string `json:"refresh_token"`
}

// IsPresent reports whether a stored token value is usable at all.
// Empty strings and the literal "null"/"undefined" (written by clients that
// serialized a missing value) count as absent.
func IsPresent(token string) bool {
	return token != "" && token != "null" && token != "undefined"
}

// IsPlausible reports whether token may be attached as a bearer credential.
func IsPlausible(token string) bool {
	return IsPresent(token) && len(token) > MinTokenLength
}

// HasAccess reports whether the access token is present.
func (c Credentials) HasAccess() bool {
	return IsPresent(c.Access)
}

// HasRefresh reports whether the refresh token is present.
func (c Credentials) HasRefresh() bool {
	return IsPresent(c.Refresh)
}

// String never prints token material.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{access:%t refresh:%t}", c.HasAccess(), c.HasRefresh())
}
