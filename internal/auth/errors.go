package auth

import "errors"

var (
	// ErrInvalidHash is returned for a malformed or unsupported PIN hash.
	ErrInvalidHash = errors.New("auth: invalid PIN hash")

	// ErrPINTooShort is returned by HashPIN for PINs below MinPINLength.
	ErrPINTooShort = errors.New("auth: PIN too short")

	// ErrTokenMalformed is returned when the bearer token is not a JWT.
	ErrTokenMalformed = errors.New("auth: token is not a JWT")
)
