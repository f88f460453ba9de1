package auth

import (
	"errors"
	"net/http"
	"strings"
)

// CookieName is the session cookie carried by web clients. Mobile clients
// send the same token as a bearer header instead.
const CookieName = "token"

// ErrUnauthenticated is the single rejection for missing, malformed and
// expired credentials alike.
var ErrUnauthenticated = errors.New("authentication required")

// TokenFromRequest extracts the raw session token: cookie first, then
// Authorization: Bearer.
func TokenFromRequest(r *http.Request) (string, bool) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		if raw := strings.TrimPrefix(h, "Bearer "); raw != "" {
			return raw, true
		}
	}
	return "", false
}

// Resolver turns a raw request credential into a Principal. It is
// stateless: the token's roles are trusted for the token's lifetime.
// Endpoints that need fresh roles re-project and re-issue.
type Resolver struct {
	codec *Codec
}

func NewResolver(codec *Codec) *Resolver {
	return &Resolver{codec: codec}
}

func (res *Resolver) Resolve(r *http.Request) (Principal, error) {
	raw, ok := TokenFromRequest(r)
	if !ok {
		return Principal{}, ErrUnauthenticated
	}
	sess, err := res.codec.Verify(raw)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}
	return Principal{UserID: sess.UserID, ClinicID: sess.ClinicID, Roles: sess.Roles}, nil
}
