package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasherRoundTrip(testContext *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)

	hashed, err := hasher.Hash("correct horse battery")
	if err != nil {
		testContext.Fatalf("unexpected hash error: %v", err)
	}
	if hashed == "correct horse battery" {
		testContext.Fatal("expected hash to differ from the secret")
	}

	if !hasher.Verify(hashed, "correct horse battery") {
		testContext.Fatal("expected matching secret to verify")
	}
	if hasher.Verify(hashed, "wrong secret") {
		testContext.Fatal("expected non-matching secret to fail verification")
	}
}

func TestPasswordHasherDefaultsUnreasonableCost(testContext *testing.T) {
	hasher := NewPasswordHasher(-1)

	hashed, err := hasher.Hash("secret-value")
	if err != nil {
		testContext.Fatalf("unexpected hash error: %v", err)
	}
	if !hasher.Verify(hashed, "secret-value") {
		testContext.Fatal("expected secret to verify against default-cost hash")
	}
}
