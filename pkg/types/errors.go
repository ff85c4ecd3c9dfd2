package types

import "errors"

// Sentinel errors for type parsing.
var (
	// ErrInvalidULIDLength is returned when a ULID string or byte slice has incorrect length
	ErrInvalidULIDLength = errors.New("invalid ULID length")

	// ErrInvalidULIDCharacter is returned when a ULID string contains invalid characters
	ErrInvalidULIDCharacter = errors.New("invalid ULID character")

	// ErrUnknownColumnKind is returned when a string does not name a column kind
	ErrUnknownColumnKind = errors.New("unknown column kind")
)
