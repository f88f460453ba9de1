package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSession covers every verification failure: bad signature,
// expiry, undecodable payload, unknown role. Callers must not surface the
// distinction.
var ErrInvalidSession = errors.New("invalid session")

// Codec signs and verifies the compact session token embedding
// (userId, clinicId, roles). It never touches a store.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

func NewCodec(secret string, ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Codec{secret: []byte(secret), ttl: ttl}
}

func (c *Codec) TTL() time.Duration { return c.ttl }

// Session is the decoded token payload.
type Session struct {
	UserID   string
	ClinicID string
	Roles    []RoleName
}

func (c *Codec) Issue(userID, clinicID string, roles []RoleName) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"cid":   clinicID,
		"roles": RoleStrings(roles),
		"iat":   now.Unix(),
		"exp":   now.Add(c.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

func (c *Codec) Verify(tokenStr string) (Session, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return Session{}, ErrInvalidSession
	}
	mapc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Session{}, ErrInvalidSession
	}
	sub, _ := mapc["sub"].(string)
	cid, _ := mapc["cid"].(string)
	if sub == "" {
		return Session{}, ErrInvalidSession
	}
	var roles []RoleName
	if arr, ok := mapc["roles"].([]interface{}); ok {
		for _, v := range arr {
			s, ok := v.(string)
			if !ok {
				return Session{}, ErrInvalidSession
			}
			r, err := ParseRoleName(s)
			if err != nil {
				return Session{}, ErrInvalidSession
			}
			roles = append(roles, r)
		}
	}
	return Session{UserID: sub, ClinicID: cid, Roles: roles}, nil
}
