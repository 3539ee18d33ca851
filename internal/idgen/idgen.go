// Package idgen generates the short unique ids stamped on tracked
// actuations and command reply streams, backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// CommandPrefix is prepended to actuation correlation ids.
const CommandPrefix = "dm-"

// RequestPrefix is prepended to generated command request ids.
const RequestPrefix = "req-"

// Alphabet is the character set for the random portion of an id. It is
// restricted to characters that are safe inside bus subject tokens.
const Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Length is the number of random characters generated (excluding the prefix).
const Length = 12

// NewCommandID returns a correlation id for a tracked actuation.
func NewCommandID() (string, error) {
	return GenerateWithPrefix(CommandPrefix)
}

// NewRequestID returns an id for a command whose caller did not supply one.
func NewRequestID() (string, error) {
	return GenerateWithPrefix(RequestPrefix)
}

// GenerateWithPrefix returns a new unique id with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
