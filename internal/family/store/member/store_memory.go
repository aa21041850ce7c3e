package member

import (
	"context"
	"slices"
	"sync"

	"kinlink/internal/family/models"
	id "kinlink/pkg/domain"
	"kinlink/pkg/platform/sentinel"
)

// InMemoryStore keeps shared family member records in process memory.
// Email and phone indexes live under the same lock as the records, so the
// global uniqueness invariant holds across concurrent creates and saves.
type InMemoryStore struct {
	mu      sync.RWMutex
	members map[id.FamilyMemberID]*models.FamilyMember
	byEmail map[string]id.FamilyMemberID
	byPhone map[string]id.FamilyMemberID
}

func New() *InMemoryStore {
	return &InMemoryStore{
		members: make(map[id.FamilyMemberID]*models.FamilyMember),
		byEmail: make(map[string]id.FamilyMemberID),
		byPhone: make(map[string]id.FamilyMemberID),
	}
}

func (s *InMemoryStore) FindByID(_ context.Context, memberID id.FamilyMemberID) (*models.FamilyMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	member, exists := s.members[memberID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return member.Clone(), nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.FamilyMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	memberID, exists := s.byEmail[email]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return s.members[memberID].Clone(), nil
}

func (s *InMemoryStore) FindByPhone(_ context.Context, phone string) (*models.FamilyMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	memberID, exists := s.byPhone[phone]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return s.members[memberID].Clone(), nil
}

// Create inserts a new record. Returns sentinel.ErrAlreadyUsed when the email
// or phone is already held by any member, sentinel.ErrConflict when the id
// itself is taken.
func (s *InMemoryStore) Create(_ context.Context, member *models.FamilyMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.members[member.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, taken := s.byEmail[member.Email]; taken {
		return sentinel.ErrAlreadyUsed
	}
	if _, taken := s.byPhone[member.PhoneNumber]; taken {
		return sentinel.ErrAlreadyUsed
	}

	s.members[member.ID] = member.Clone()
	s.byEmail[member.Email] = member.ID
	s.byPhone[member.PhoneNumber] = member.ID
	return nil
}

// Save replaces the descriptive fields and registered-user state of an
// existing record. The link set is owned by AddLink/RemoveLink and is not
// touched here.
func (s *InMemoryStore) Save(_ context.Context, member *models.FamilyMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.members[member.ID]
	if !exists {
		return sentinel.ErrNotFound
	}
	if holder, taken := s.byEmail[member.Email]; taken && holder != member.ID {
		return sentinel.ErrAlreadyUsed
	}
	if holder, taken := s.byPhone[member.PhoneNumber]; taken && holder != member.ID {
		return sentinel.ErrAlreadyUsed
	}

	delete(s.byEmail, current.Email)
	delete(s.byPhone, current.PhoneNumber)
	current.Name = member.Name
	current.Email = member.Email
	current.PhoneNumber = member.PhoneNumber
	current.IsUser = member.IsUser
	current.UpdatedAt = member.UpdatedAt
	if member.UserID != nil {
		userID := *member.UserID
		current.UserID = &userID
	} else {
		current.UserID = nil
	}
	s.byEmail[current.Email] = current.ID
	s.byPhone[current.PhoneNumber] = current.ID
	return nil
}

// AddLink adds an account to the member's link set. Reports alreadyLinked
// when the account was present, making repeat submissions idempotent.
func (s *InMemoryStore) AddLink(_ context.Context, memberID id.FamilyMemberID, accountID id.AccountID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	member, exists := s.members[memberID]
	if !exists {
		return false, sentinel.ErrNotFound
	}
	if slices.Contains(member.LinkedAccounts, accountID) {
		return true, nil
	}
	member.LinkedAccounts = append(member.LinkedAccounts, accountID)
	return false, nil
}

// RemoveLink removes an account from the link set and returns a snapshot of
// the record afterwards so the caller can apply the orphan rule.
func (s *InMemoryStore) RemoveLink(_ context.Context, memberID id.FamilyMemberID, accountID id.AccountID) (*models.FamilyMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	member, exists := s.members[memberID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	member.LinkedAccounts = slices.DeleteFunc(member.LinkedAccounts, func(linked id.AccountID) bool {
		return linked == accountID
	})
	return member.Clone(), nil
}

func (s *InMemoryStore) Delete(_ context.Context, memberID id.FamilyMemberID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	member, exists := s.members[memberID]
	if !exists {
		return sentinel.ErrNotFound
	}
	delete(s.byEmail, member.Email)
	delete(s.byPhone, member.PhoneNumber)
	delete(s.members, memberID)
	return nil
}

// All returns a snapshot of every record, for tests that assert global
// invariants.
func (s *InMemoryStore) All(_ context.Context) []*models.FamilyMember {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.FamilyMember, 0, len(s.members))
	for _, member := range s.members {
		all = append(all, member.Clone())
	}
	return all
}

// Clear removes all records. Test helper.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.members = make(map[id.FamilyMemberID]*models.FamilyMember)
	s.byEmail = make(map[string]id.FamilyMemberID)
	s.byPhone = make(map[string]id.FamilyMemberID)
}
