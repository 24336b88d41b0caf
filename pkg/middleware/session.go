package middleware

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-contrib/sessions/memstore"
	"github.com/gin-gonic/gin"
)

const SessionName = "intentdesk"

// WithCookieSession stores operator sessions in a signed cookie.
func WithCookieSession(secret string, maxAge int) gin.HandlerFunc {
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{Path: "/", MaxAge: maxAge, HttpOnly: true})
	return sessions.Sessions(SessionName, store)
}

// WithMemSession stores operator sessions in process memory, for
// development setups without a configured secret.
func WithMemSession(secret string) gin.HandlerFunc {
	store := memstore.NewStore([]byte(secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 0, HttpOnly: true})
	return sessions.Sessions(SessionName, store)
}
