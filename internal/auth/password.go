package auth

import "golang.org/x/crypto/bcrypt"

// PasswordHasher wraps bcrypt hashing for account passwords and note secrets.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher constructs a hasher; non-positive cost falls back to the bcrypt default.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash produces a salted one-way hash of the secret.
func (h *PasswordHasher) Hash(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether the secret matches the stored hash.
func (h *PasswordHasher) Verify(hashed, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(secret)) == nil
}
