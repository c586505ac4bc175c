package services

import (
	"time"

	"github.com/ytakahashi/team-task-tracker/internal/models"
)

// Firestore keeps timestamps with microsecond precision.
const storePrecision = time.Microsecond

type taskDoc struct {
	Title                  string     `firestore:"title"`
	Description            string     `firestore:"description"`
	Status                 string     `firestore:"status"`
	AssigneeUID            *string    `firestore:"assigneeUid"`
	AssigneeName           *string    `firestore:"assigneeName"`
	Deadline               *time.Time `firestore:"deadline"`
	ParentTaskID           *string    `firestore:"parentTaskId"`
	CalendarEventID        *string    `firestore:"calendarEventId"`
	CalendarEventUpdatedAt *time.Time `firestore:"calendarEventUpdatedAt"`
	CreatedBy              string     `firestore:"createdBy"`
	CreatedAt              time.Time  `firestore:"createdAt"`
	UpdatedAt              time.Time  `firestore:"updatedAt"`
}

type tokensDoc struct {
	AccessToken  string    `firestore:"accessToken"`
	RefreshToken string    `firestore:"refreshToken"`
	ExpiresAt    time.Time `firestore:"expiresAt"`
}

type userDoc struct {
	UID               string     `firestore:"uid"`
	Email             string     `firestore:"email"`
	DisplayName       string     `firestore:"displayName"`
	PhotoURL          *string    `firestore:"photoURL"`
	IsAdmin           bool       `firestore:"isAdmin"`
	CalendarConnected bool       `firestore:"calendarConnected"`
	CalendarTokens    *tokensDoc `firestore:"calendarTokens"`
	CreatedAt         time.Time  `firestore:"createdAt"`
	LastLoginAt       time.Time  `firestore:"lastLoginAt"`
}

type allowedEmailDoc struct {
	AddedBy string    `firestore:"addedBy"`
	AddedAt time.Time `firestore:"addedAt"`
}

type channelDoc struct {
	ChannelID  string    `firestore:"channelId"`
	ResourceID string    `firestore:"resourceId"`
	ExpiresAt  time.Time `firestore:"expiresAt"`
}

func toTaskDoc(t *models.Task) *taskDoc {
	return &taskDoc{
		Title:                  t.Title,
		Description:            t.Description,
		Status:                 string(t.Status),
		AssigneeUID:            copyPtr(t.AssigneeUID),
		AssigneeName:           copyPtr(t.AssigneeName),
		Deadline:               truncPtr(t.Deadline),
		ParentTaskID:           copyPtr(t.ParentTaskID),
		CalendarEventID:        copyPtr(t.CalendarEventID),
		CalendarEventUpdatedAt: truncPtr(t.CalendarEventUpdatedAt),
		CreatedBy:              t.CreatedBy,
		CreatedAt:              t.CreatedAt.Truncate(storePrecision),
		UpdatedAt:              t.UpdatedAt.Truncate(storePrecision),
	}
}

func fromTaskDoc(id string, d *taskDoc) *models.Task {
	return &models.Task{
		ID:                     id,
		Title:                  d.Title,
		Description:            d.Description,
		Status:                 models.Status(d.Status),
		AssigneeUID:            copyPtr(d.AssigneeUID),
		AssigneeName:           copyPtr(d.AssigneeName),
		Deadline:               copyPtr(d.Deadline),
		ParentTaskID:           copyPtr(d.ParentTaskID),
		CalendarEventID:        copyPtr(d.CalendarEventID),
		CalendarEventUpdatedAt: copyPtr(d.CalendarEventUpdatedAt),
		CreatedBy:              d.CreatedBy,
		CreatedAt:              d.CreatedAt,
		UpdatedAt:              d.UpdatedAt,
	}
}

func toTokensDoc(t *models.CalendarTokens) *tokensDoc {
	if t == nil {
		return nil
	}
	return &tokensDoc{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.ExpiresAt.Truncate(storePrecision),
	}
}

func toUserDoc(u *models.User) *userDoc {
	return &userDoc{
		UID:               u.UID,
		Email:             u.Email,
		DisplayName:       u.DisplayName,
		PhotoURL:          copyPtr(u.PhotoURL),
		IsAdmin:           u.IsAdmin,
		CalendarConnected: u.CalendarConnected,
		CalendarTokens:    toTokensDoc(u.CalendarTokens),
		CreatedAt:         u.CreatedAt.Truncate(storePrecision),
		LastLoginAt:       u.LastLoginAt.Truncate(storePrecision),
	}
}

func fromUserDoc(uid string, d *userDoc) *models.User {
	u := &models.User{
		UID:               uid,
		Email:             d.Email,
		DisplayName:       d.DisplayName,
		PhotoURL:          copyPtr(d.PhotoURL),
		IsAdmin:           d.IsAdmin,
		CalendarConnected: d.CalendarConnected,
		CreatedAt:         d.CreatedAt,
		LastLoginAt:       d.LastLoginAt,
	}
	if d.CalendarTokens != nil {
		u.CalendarTokens = &models.CalendarTokens{
			AccessToken:  d.CalendarTokens.AccessToken,
			RefreshToken: d.CalendarTokens.RefreshToken,
			ExpiresAt:    d.CalendarTokens.ExpiresAt,
		}
	}
	return u
}

func toAllowedEmailDoc(a *models.AllowedEmail) *allowedEmailDoc {
	return &allowedEmailDoc{AddedBy: a.AddedBy, AddedAt: a.AddedAt.Truncate(storePrecision)}
}

func fromAllowedEmailDoc(email string, d *allowedEmailDoc) *models.AllowedEmail {
	return &models.AllowedEmail{Email: email, AddedBy: d.AddedBy, AddedAt: d.AddedAt}
}

func toChannelDoc(c *models.CalendarChannel) *channelDoc {
	return &channelDoc{ChannelID: c.ChannelID, ResourceID: c.ResourceID, ExpiresAt: c.ExpiresAt.Truncate(storePrecision)}
}

func fromChannelDoc(uid string, d *channelDoc) *models.CalendarChannel {
	return &models.CalendarChannel{UID: uid, ChannelID: d.ChannelID, ResourceID: d.ResourceID, ExpiresAt: d.ExpiresAt}
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func truncPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.Truncate(storePrecision)
	return &v
}
