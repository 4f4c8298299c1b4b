package notes

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

const shareIDByteLength = 16

// IDProvider supplies opaque identifiers.
type IDProvider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider that issues UUIDv7 identifiers.
func NewUUIDProvider() IDProvider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

type shareIDProvider struct{}

// NewShareIDProvider constructs an IDProvider issuing 128-bit hex share identifiers.
// At this entropy width collisions are treated as negligible; lookups are exact match
// with no retry.
func NewShareIDProvider() IDProvider {
	return &shareIDProvider{}
}

func (p *shareIDProvider) NewID() (string, error) {
	buffer := make([]byte, shareIDByteLength)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return hex.EncodeToString(buffer), nil
}
