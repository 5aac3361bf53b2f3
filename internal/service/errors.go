package service

import "errors"

var (
	ErrValidation       = errors.New("validation failed")
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidState     = errors.New("session is not in a valid state for this operation")
	ErrSessionExpired   = errors.New("session has expired")
	ErrInvalidToken     = errors.New("invalid check-in token")
	ErrSessionInactive  = errors.New("session is not active")
	ErrTokenExpired     = errors.New("check-in token has expired")
	ErrDuplicateCheckIn = errors.New("attendance already recorded for today")
)
