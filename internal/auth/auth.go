package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Gate is the minimal login gate in front of the chat routes. Credentials
// come from configuration; issued tokens live in process memory for the
// lifetime of the server, like the sessions they guard.
type Gate struct {
	mu     sync.Mutex
	users  map[string]string // username -> password
	tokens map[string]string // token -> username
}

// New constructs a Gate from a username->password table.
func New(users map[string]string) *Gate {
	if users == nil {
		users = map[string]string{}
	}
	return &Gate{users: users, tokens: make(map[string]string)}
}

// ParseUsers decodes the APP_USERS form "user:pass,user:pass".
func ParseUsers(s string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, pass, ok := strings.Cut(pair, ":")
		if !ok || name == "" {
			continue
		}
		out[name] = pass
	}
	return out
}

// Login checks credentials and issues an opaque bearer token.
func (g *Gate) Login(username, password string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	want, ok := g.users[username]
	if !ok {
		return "", false
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(password)) != 1 {
		return "", false
	}
	token := uuid.NewString()
	g.tokens[token] = username
	return token, true
}

// UserFor resolves a token back to its username.
func (g *Gate) UserFor(token string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	user, ok := g.tokens[token]
	return user, ok
}

// Logout revokes a token.
func (g *Gate) Logout(token string) {
	g.mu.Lock()
	delete(g.tokens, token)
	g.mu.Unlock()
}

// BearerToken extracts the bearer token from a request, also accepting the
// token query parameter for the websocket route where headers are awkward.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[len("bearer "):])
	}
	return r.URL.Query().Get("token")
}

// Middleware rejects unauthenticated requests and stores the username in
// the echo context under "user".
func (g *Gate) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := BearerToken(c.Request())
			if token == "" {
				return c.String(http.StatusUnauthorized, "missing token")
			}
			user, ok := g.UserFor(token)
			if !ok {
				return c.String(http.StatusUnauthorized, "invalid token")
			}
			c.Set("user", user)
			return next(c)
		}
	}
}
