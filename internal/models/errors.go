package models

import "errors"

var (
	ErrTaskNotFound         = errors.New("task not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrNotAllowed           = errors.New("email is not allowed")
	ErrCalendarNotConnected = errors.New("calendar not connected")
	ErrInvalidInput         = errors.New("invalid input")
)

// ErrChannelNotFound is returned when a user has no registered watch channel.
var ErrChannelNotFound = errors.New("calendar channel not found")
