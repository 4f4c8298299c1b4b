package auth

// IdentityKind enumerates the caller identities a credential can resolve to.
type IdentityKind string

const (
	// IdentityKindAccount marks a registered account identity.
	IdentityKindAccount IdentityKind = "account"
	// IdentityKindGuest marks an ephemeral guest identity.
	IdentityKindGuest IdentityKind = "guest"
	// IdentityKindAnonymous marks a caller without any credential.
	IdentityKindAnonymous IdentityKind = "anonymous"
)

// Identity captures the resolved caller behind a request.
type Identity struct {
	Kind      IdentityKind
	AccountID string
	GuestID   string
}

// AccountIdentity builds an identity for a registered account.
func AccountIdentity(accountID string) Identity {
	return Identity{Kind: IdentityKindAccount, AccountID: accountID}
}

// GuestIdentity builds an identity for a guest identifier.
func GuestIdentity(guestID string) Identity {
	return Identity{Kind: IdentityKindGuest, GuestID: guestID}
}

// AnonymousIdentity builds the identity of an uncredentialed caller.
func AnonymousIdentity() Identity {
	return Identity{Kind: IdentityKindAnonymous}
}

// IsAccount reports whether the identity belongs to a registered account.
func (identity Identity) IsAccount() bool {
	return identity.Kind == IdentityKindAccount
}

// IsGuest reports whether the identity belongs to a guest credential.
func (identity Identity) IsGuest() bool {
	return identity.Kind == IdentityKindGuest
}

// IsAnonymous reports whether the caller presented no usable credential.
func (identity Identity) IsAnonymous() bool {
	return identity.Kind == IdentityKindAnonymous
}
