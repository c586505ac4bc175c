package handlers

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
	"github.com/ytakahashi/team-task-tracker/internal/usecases"
)

// IdentityProvider runs the federated sign-in flow.
type IdentityProvider interface {
	Begin(w http.ResponseWriter, r *http.Request)
	Complete(w http.ResponseWriter, r *http.Request) (usecases.Identity, error)
	Logout(w http.ResponseWriter, r *http.Request) error
}

// GoogleSignIn is the goth backed IdentityProvider.
type GoogleSignIn struct{}

// NewGoogleSignIn registers the Google provider with goth and stores the
// OAuth state in a cookie store keyed by secret.
func NewGoogleSignIn(clientID, clientSecret, callbackURL, secret string, secure bool) *GoogleSignIn {
	goth.UseProviders(google.New(clientID, clientSecret, callbackURL, "email", "profile"))

	store := sessions.NewCookieStore([]byte(secret))
	store.MaxAge(86400)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	gothic.Store = store

	return &GoogleSignIn{}
}

// withProvider forces the google provider; gothic reads it from the query.
func withProvider(r *http.Request) *http.Request {
	q := r.URL.Query()
	q.Set("provider", "google")
	r.URL.RawQuery = q.Encode()
	return r
}

func (GoogleSignIn) Begin(w http.ResponseWriter, r *http.Request) {
	gothic.BeginAuthHandler(w, withProvider(r))
}

func (GoogleSignIn) Complete(w http.ResponseWriter, r *http.Request) (usecases.Identity, error) {
	user, err := gothic.CompleteUserAuth(w, withProvider(r))
	if err != nil {
		return usecases.Identity{}, err
	}
	id := usecases.Identity{
		UID:         user.UserID,
		Email:       user.Email,
		DisplayName: user.Name,
	}
	if user.AvatarURL != "" {
		photo := user.AvatarURL
		id.PhotoURL = &photo
	}
	return id, nil
}

func (GoogleSignIn) Logout(w http.ResponseWriter, r *http.Request) error {
	return gothic.Logout(w, withProvider(r))
}
