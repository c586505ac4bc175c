package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/ytakahashi/team-task-tracker/internal/usecases"
)

const (
	sessionCookie = "session_token"
	claimsKey     = "claims"
)

// Claims is the content of the session token. Authorized is false for an
// identity whose allow-list check could not be completed; such a session
// can only retry sign-in.
type Claims struct {
	UID         string  `json:"uid"`
	Email       string  `json:"email"`
	DisplayName string  `json:"name"`
	PhotoURL    *string `json:"picture,omitempty"`
	Authorized  bool    `json:"authorized"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() usecases.Identity {
	return usecases.Identity{UID: c.UID, Email: c.Email, DisplayName: c.DisplayName, PhotoURL: c.PhotoURL}
}

// SessionManager issues and verifies the HS256 session cookie.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	secure bool
}

func NewSessionManager(secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{secret: []byte(secret), ttl: ttl, secure: secure}
}

func (m *SessionManager) Issue(c echo.Context, id usecases.Identity, authorized bool) error {
	now := time.Now()
	claims := &Claims{
		UID:         id.UID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
		PhotoURL:    id.PhotoURL,
		Authorized:  authorized,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *SessionManager) Clear(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
	})
}

// Parse returns the claims of the request's session cookie.
func (m *SessionManager) Parse(c echo.Context) (*Claims, error) {
	cookie, err := c.Cookie(sessionCookie)
	if err != nil {
		return nil, err
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid session token")
	}
	return claims, nil
}

// RequireSession rejects requests without an authorized session.
func (m *SessionManager) RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := m.Parse(c)
		if err != nil || !claims.Authorized {
			return c.JSON(http.StatusUnauthorized, errorBody("Unauthorized"))
		}
		c.Set(claimsKey, claims)
		return next(c)
	}
}

func sessionClaims(c echo.Context) *Claims {
	claims, _ := c.Get(claimsKey).(*Claims)
	return claims
}
