package models

import "time"

// CalendarTokens are the OAuth credentials a user granted for calendar access.
type CalendarTokens struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// User is an allow-listed account. UID is the identity provider's user id.
//
// CalendarConnected and CalendarTokens are stored separately and only
// UserRepository.UpdateCalendarTokens keeps them in step.
type User struct {
	UID               string          `json:"uid"`
	Email             string          `json:"email"`
	DisplayName       string          `json:"displayName"`
	PhotoURL          *string         `json:"photoURL"`
	IsAdmin           bool            `json:"isAdmin"`
	CalendarConnected bool            `json:"calendarConnected"`
	CalendarTokens    *CalendarTokens `json:"-"`
	CreatedAt         time.Time       `json:"createdAt"`
	LastLoginAt       time.Time       `json:"lastLoginAt"`
}

func NewUser(uid, email, displayName string, photoURL *string, now time.Time) *User {
	return &User{
		UID:         uid,
		Email:       email,
		DisplayName: displayName,
		PhotoURL:    photoURL,
		CreatedAt:   now,
		LastLoginAt: now,
	}
}

func (u *User) WithLastLogin(now time.Time) *User {
	out := *u
	out.LastLoginAt = now
	return &out
}

func (u *User) ConnectCalendar(tokens CalendarTokens) *User {
	out := *u
	out.CalendarConnected = true
	out.CalendarTokens = &tokens
	return &out
}

func (u *User) DisconnectCalendar() *User {
	out := *u
	out.CalendarConnected = false
	out.CalendarTokens = nil
	return &out
}

// HasAccessToken reports whether an access token is stored for the user.
func (u *User) HasAccessToken() bool {
	return u != nil && u.CalendarTokens != nil && u.CalendarTokens.AccessToken != ""
}

// HasRefreshToken reports whether a refresh token is stored for the user.
func (u *User) HasRefreshToken() bool {
	return u != nil && u.CalendarTokens != nil && u.CalendarTokens.RefreshToken != ""
}
