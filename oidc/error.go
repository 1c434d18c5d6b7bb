package oidc

import (
	"errors"
)

var (
	ErrInvalidParameter       = errors.New("invalid parameter")
	ErrNilParameter           = errors.New("nil parameter")
	ErrInvalidCACert          = errors.New("invalid CA certificate")
	ErrIDGeneratorFailed      = errors.New("id generation failed")
	ErrDiscovery              = errors.New("provider discovery failed")
	ErrExpiredRequest         = errors.New("authorization request is expired")
	ErrNoPendingAuthorization = errors.New("no pending authorization request")
	ErrStateMismatch          = errors.New("authorization response state mismatch")
	ErrTokenExchange          = errors.New("authorization code exchange failed")
	ErrTokenValidation        = errors.New("id_token validation failed")
	ErrMissingIDToken         = errors.New("id_token is missing")
	ErrInvalidNonce           = errors.New("invalid nonce")
	ErrInvalidAudience        = errors.New("invalid audience")
	ErrNotFound               = errors.New("not found")
)
