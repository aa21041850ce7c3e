package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "kinlink/pkg/domain-errors"
)

// TestParseAccountID_Invariants validates the parsing invariant:
// ids must be valid, non-empty, non-nil UUIDs.
func TestParseAccountID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseAccountID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseAccountID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseAccountID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseAccountID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, AccountID(valid), id)
	})
}

func TestParseFamilyMemberID_Invariants(t *testing.T) {
	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseFamilyMemberID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("round-trips through String", func(t *testing.T) {
		id := NewFamilyMemberID()
		parsed, err := ParseFamilyMemberID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})
}

// TestTypeDistinction verifies the compiler enforces type safety between
// account and member ids.
func TestTypeDistinction(t *testing.T) {
	accountID := NewAccountID()
	memberID := NewFamilyMemberID()

	// These would fail to compile if the types were interchangeable:
	// var _ AccountID = memberID
	// var _ FamilyMemberID = accountID

	assert.NotEqual(t, uuid.UUID(accountID), uuid.UUID(memberID))
}
