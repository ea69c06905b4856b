// Package access resolves the acting identity of a request. The identity is
// resolved once by the HTTP layer and passed into every service call, the
// services never look it up themselves.
package access

import (
	"errors"
	"regexp"

	"bitwise74/file-api/internal/model"

	"github.com/gin-gonic/gin"
)

var (
	ErrNoCaller         = errors.New("request has no authenticated caller")
	ErrInvalidNamespace = errors.New("caller has no usable namespace")
	ErrForbidden        = errors.New("caller may not access this file")
)

// A namespace is a single key segment. The leading character rules out
// "." and ".." and the character set rules out separators.
var validNamespace = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9_.-]{0,63}$`)

// Caller is an authenticated user. Namespace prefixes the blob keys of
// everything the caller uploads.
type Caller struct {
	ID        string
	Namespace string
}

// Resolve reads the identity the JWT middleware put into the context.
// The namespace is the username claim, falling back to the user id when the
// username is missing or can't be used as a single key segment.
func Resolve(c *gin.Context) (Caller, error) {
	userID := c.GetString("userID")
	if userID == "" {
		return Caller{}, ErrNoCaller
	}

	namespace := c.GetString("username")
	if !validNamespace.MatchString(namespace) {
		namespace = userID
	}

	if !validNamespace.MatchString(namespace) {
		return Caller{}, ErrInvalidNamespace
	}

	return Caller{ID: userID, Namespace: namespace}, nil
}

// Owns reports whether the caller uploaded f
func (c Caller) Owns(f *model.File) bool {
	return f != nil && f.UploaderID == c.ID
}

// Policy decides whether a caller may act on a file. Services call it and
// never decide access on their own.
type Policy func(Caller, *model.File) error

// AllowAll is the policy used when none is configured
func AllowAll(Caller, *model.File) error {
	return nil
}

// OwnerOnly lets callers act on their own files only
func OwnerOnly(c Caller, f *model.File) error {
	if !c.Owns(f) {
		return ErrForbidden
	}

	return nil
}
