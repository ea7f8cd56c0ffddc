package logging

import (
	"errors"
	"strings"
)

var (
	// ErrUninitialized is returned by Get before Initialize has been called,
	// or after Reset.
	ErrUninitialized = errors.New("logging: logger not initialized, call Initialize first")

	// ErrInvalidLevel indicates an unknown level name or threshold.
	ErrInvalidLevel = errors.New("logging: invalid log level")

	// ErrInvalidFormat indicates an unknown file encoder format.
	ErrInvalidFormat = errors.New("logging: invalid log format")
)

// RedactedFields lists field keys whose values are never written.
// Matching is case-insensitive.
var RedactedFields = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"apiKey",
	"credential",
	"client_secret",
	"refresh_token",
	"authorization",
}

const redactedValue = "[REDACTED]"

var redactedKeys = func() map[string]bool {
	keys := make(map[string]bool, len(RedactedFields))
	for _, k := range RedactedFields {
		keys[strings.ToLower(k)] = true
	}
	return keys
}()

func isRedactedField(key string) bool {
	return redactedKeys[strings.ToLower(key)]
}
