package domain

import "errors"

var (
	ErrUserConfigNotFound = errors.New("user config not found")
	ErrSettingsNotFound   = errors.New("settings not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidSettings    = errors.New("invalid settings values")
	ErrRecordNotFound     = errors.New("record not found")
)
