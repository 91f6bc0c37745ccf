// Package middleware contains the Gin middleware shared by the HTTP layer.
//
// This file resolves who is calling. Diners are anonymous devices that
// identify themselves with X-Client-ID; the value only groups cart lines
// and scopes idempotency keys, it is not an authentication mechanism.
package middleware

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderClientID carries the caller's device identity.
const HeaderClientID = "X-Client-ID"

// AnonymousClient is used when the request carries no usable identity.
const AnonymousClient = "anonymous"

const ctxKeyClientID = "clientID"

var clientIDRE = regexp.MustCompile(`^[A-Za-z0-9._:\-]{1,64}$`)

// ClientIdentity stores the caller's client id in the context. Missing or
// malformed header values fall back to AnonymousClient.
func ClientIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderClientID))
		if !clientIDRE.MatchString(id) {
			id = AnonymousClient
		}
		c.Set(ctxKeyClientID, id)
		c.Next()
	}
}

// ClientID returns the id stored by ClientIdentity, reading the header
// directly when the middleware did not run.
func ClientID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyClientID); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c.Request != nil {
		if id := strings.TrimSpace(c.GetHeader(HeaderClientID)); clientIDRE.MatchString(id) {
			return id
		}
	}
	return AnonymousClient
}
