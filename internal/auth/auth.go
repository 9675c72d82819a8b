// Package auth validates the shared token carried in control-bus auth blocks.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// Validator validates an authentication token.
type Validator interface {
	Validate(token string) error
}

// StaticToken accepts exactly one shared token.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// FuncValidator adapts a function into a Validator.
type FuncValidator func(token string) error

func (f FuncValidator) Validate(token string) error {
	return f(token)
}

// AllowAny accepts every message, with or without a token.
type AllowAny struct{}

func (AllowAny) Validate(string) error { return nil }

// ForToken returns AllowAny for an empty configured token and a StaticToken
// otherwise.
func ForToken(token string) Validator {
	token = strings.TrimSpace(token)
	if token == "" {
		return AllowAny{}
	}
	return StaticToken{Token: token}
}
