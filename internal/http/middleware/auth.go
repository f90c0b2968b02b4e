// README: Bearer-token auth; resolves the caller identity once per request.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"keeva/internal/infra"
	"keeva/internal/modules/identity"
)

const (
	ctxCaller = "keeva.caller"
	ctxUID    = "keeva.uid"
)

// Auth verifies the Authorization bearer token and stores the resolved identity.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if len(h) < 8 || !strings.EqualFold(h[:7], "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "kind": "unauthorized"})
			return
		}
		tok, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(h[7:]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "kind": "unauthorized"})
			return
		}
		caller, err := identity.FromClaims(tok.UID, tok.Claims)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error(), "kind": "forbidden"})
			return
		}
		c.Set(ctxUID, tok.UID)
		c.Set(ctxCaller, caller)
		c.Next()
	}
}

// Require aborts with 403 unless the caller matches one of the accepted identity kinds.
func Require(accept func(identity.Identity) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := Caller(c)
		if caller == nil || !accept(caller) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not allowed", "kind": "forbidden"})
			return
		}
		c.Next()
	}
}

func Customers(id identity.Identity) bool {
	_, ok := id.(identity.Customer)
	return ok
}

func Admins(id identity.Identity) bool {
	_, ok := id.(identity.Admin)
	return ok
}

func ServicePartners(id identity.Identity) bool {
	_, ok := id.(identity.ServicePartner)
	return ok
}

// Staff is admins and every kind of partner.
func Staff(id identity.Identity) bool {
	_, admin := id.(identity.Admin)
	return admin || identity.IsPartner(id)
}

func Caller(c *gin.Context) identity.Identity {
	v, ok := c.Get(ctxCaller)
	if !ok {
		return nil
	}
	id, _ := v.(identity.Identity)
	return id
}

// tokenUID is the verified token subject; for partners it differs from Caller().ID().
func tokenUID(c *gin.Context) string {
	return c.GetString(ctxUID)
}
