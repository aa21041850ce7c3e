package models

import (
	"slices"
	"strings"
	"time"

	id "kinlink/pkg/domain"
)

// Account is a registered primary user. Accounts are created and credentialed
// elsewhere; this module only reads them and maintains their family list.
//
// Invariants:
//   - FamilyMembers is ordered; insertion order is the display order
//   - Relation labels are normalized (trimmed, lower-cased) and unique per account
//   - Every link references a FamilyMember whose link set contains this account
type Account struct {
	ID            id.AccountID `json:"id"`
	Name          string       `json:"name"`
	Email         string       `json:"email"`
	PhoneNumber   string       `json:"phone_number"`
	FamilyMembers []FamilyLink `json:"family_members"`
}

// FamilyLink is one entry in an account's family list.
type FamilyLink struct {
	Relation string            `json:"relation"`
	MemberID id.FamilyMemberID `json:"member_id"`
}

// LinkWithRelation returns the link holding the given normalized relation.
func (a *Account) LinkWithRelation(relation string) (FamilyLink, bool) {
	for _, link := range a.FamilyMembers {
		if link.Relation == relation {
			return link, true
		}
	}
	return FamilyLink{}, false
}

// LinkTo returns the link referencing the given member.
func (a *Account) LinkTo(memberID id.FamilyMemberID) (FamilyLink, bool) {
	for _, link := range a.FamilyMembers {
		if link.MemberID == memberID {
			return link, true
		}
	}
	return FamilyLink{}, false
}

// FamilyMember is a shared record for one real person. It is referenced by
// every account that linked to them; no single account owns it. Lifetime is
// governed by the link set plus the registered-user flag: a member with no
// links and IsUser false is an orphan and must be deleted.
//
// Invariants:
//   - Email and PhoneNumber are each unique across all members
//   - When IsUser is true, Name/Email/PhoneNumber mirror the linked account
//     and only that account may change them
type FamilyMember struct {
	ID          id.FamilyMemberID `json:"id"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	PhoneNumber string            `json:"phone_number"`
	IsUser      bool              `json:"is_user"`
	UserID      *id.AccountID     `json:"user_id,omitempty"`
	// LinkedAccounts is membership-only; ordering carries no meaning.
	LinkedAccounts []id.AccountID `json:"linked_to_primary_users"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IsLinkedTo reports whether the account currently treats this person as a
// family member.
func (m *FamilyMember) IsLinkedTo(accountID id.AccountID) bool {
	return slices.Contains(m.LinkedAccounts, accountID)
}

// Orphaned reports whether the record no longer has a reason to exist.
func (m *FamilyMember) Orphaned() bool {
	return len(m.LinkedAccounts) == 0 && !m.IsUser
}

// MirrorAccount marks the member as a registered user and overwrites the
// descriptive fields from the account, which is the source of truth once
// matched.
func (m *FamilyMember) MirrorAccount(account *Account) {
	accountID := account.ID
	m.IsUser = true
	m.UserID = &accountID
	m.Name = account.Name
	m.Email = account.Email
	m.PhoneNumber = account.PhoneNumber
}

// Clone returns a deep copy so store internals never alias caller memory.
func (m *FamilyMember) Clone() *FamilyMember {
	clone := *m
	clone.LinkedAccounts = slices.Clone(m.LinkedAccounts)
	if m.UserID != nil {
		userID := *m.UserID
		clone.UserID = &userID
	}
	return &clone
}

// Clone deep-copies an account for the same reason.
func (a *Account) Clone() *Account {
	clone := *a
	clone.FamilyMembers = slices.Clone(a.FamilyMembers)
	return &clone
}

// MemberSummary is the per-relation view returned by the listing operation.
type MemberSummary struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
}

// NormalizeRelation canonicalizes a relation label for per-account
// uniqueness checks: trimmed and lower-cased.
func NormalizeRelation(relation string) string {
	return strings.ToLower(strings.TrimSpace(relation))
}
