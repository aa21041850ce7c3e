// Package domain holds the typed identifiers shared across services. IDs are
// distinct defined types over uuid.UUID so an AccountID can never be passed
// where a FamilyMemberID is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "kinlink/pkg/domain-errors"
)

// AccountID identifies a registered primary user.
type AccountID uuid.UUID

// FamilyMemberID identifies a shared family member record.
type FamilyMemberID uuid.UUID

func (id AccountID) String() string      { return uuid.UUID(id).String() }
func (id FamilyMemberID) String() string { return uuid.UUID(id).String() }

// IsZero reports whether the id is the nil UUID.
func (id AccountID) IsZero() bool      { return uuid.UUID(id) == uuid.Nil }
func (id FamilyMemberID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// NewAccountID returns a fresh random account id.
func NewAccountID() AccountID { return AccountID(uuid.New()) }

// NewFamilyMemberID returns a fresh random family member id.
func NewFamilyMemberID() FamilyMemberID { return FamilyMemberID(uuid.New()) }

// ParseAccountID parses s into an AccountID, rejecting empty strings,
// malformed UUIDs, and the nil UUID. Use at trust boundaries.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return AccountID{}, err
	}
	return AccountID(u), nil
}

// MustParseAccountID parses s or panics. For package-level fixtures only.
func MustParseAccountID(s string) AccountID {
	return AccountID(uuid.MustParse(s))
}

// ParseFamilyMemberID parses s into a FamilyMemberID with the same rules as
// ParseAccountID.
func ParseFamilyMemberID(s string) (FamilyMemberID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return FamilyMemberID{}, err
	}
	return FamilyMemberID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return u, nil
}
