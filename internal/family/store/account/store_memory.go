package account

import (
	"context"
	"slices"
	"sync"

	"kinlink/internal/family/models"
	id "kinlink/pkg/domain"
	"kinlink/pkg/platform/sentinel"
)

// InMemoryStore keeps registered accounts in process memory. Accounts are
// registered elsewhere; tests and the demo seed populate this store with Put.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[id.AccountID]*models.Account
	byEmail  map[string]id.AccountID
	byPhone  map[string]id.AccountID
}

func New() *InMemoryStore {
	return &InMemoryStore{
		accounts: make(map[id.AccountID]*models.Account),
		byEmail:  make(map[string]id.AccountID),
		byPhone:  make(map[string]id.AccountID),
	}
}

// Put inserts or replaces an account record.
func (s *InMemoryStore) Put(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, exists := s.accounts[account.ID]; exists {
		delete(s.byEmail, current.Email)
		delete(s.byPhone, current.PhoneNumber)
	}
	s.accounts[account.ID] = account.Clone()
	s.byEmail[account.Email] = account.ID
	s.byPhone[account.PhoneNumber] = account.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, accountID id.AccountID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, exists := s.accounts[accountID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return account.Clone(), nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accountID, exists := s.byEmail[email]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return s.accounts[accountID].Clone(), nil
}

func (s *InMemoryStore) FindByPhone(_ context.Context, phone string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accountID, exists := s.byPhone[phone]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return s.accounts[accountID].Clone(), nil
}

// AppendLink appends a relation entry to the account's family list. The
// relation must be normalized by the caller; a duplicate normalized relation
// within the account returns sentinel.ErrAlreadyUsed.
func (s *InMemoryStore) AppendLink(_ context.Context, accountID id.AccountID, link models.FamilyLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, exists := s.accounts[accountID]
	if !exists {
		return sentinel.ErrNotFound
	}
	for _, existing := range account.FamilyMembers {
		if existing.Relation == link.Relation {
			return sentinel.ErrAlreadyUsed
		}
	}
	account.FamilyMembers = append(account.FamilyMembers, link)
	return nil
}

// RemoveLink drops every entry referencing the member from the account's
// family list. Removing an absent entry is not an error.
func (s *InMemoryStore) RemoveLink(_ context.Context, accountID id.AccountID, memberID id.FamilyMemberID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, exists := s.accounts[accountID]
	if !exists {
		return sentinel.ErrNotFound
	}
	account.FamilyMembers = slices.DeleteFunc(account.FamilyMembers, func(link models.FamilyLink) bool {
		return link.MemberID == memberID
	})
	return nil
}

// SetLinkRelation replaces the relation label on the entry referencing the
// member. Returns sentinel.ErrNotFound when no entry references the member
// and sentinel.ErrAlreadyUsed when a different entry already holds the label.
func (s *InMemoryStore) SetLinkRelation(_ context.Context, accountID id.AccountID, memberID id.FamilyMemberID, relation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, exists := s.accounts[accountID]
	if !exists {
		return sentinel.ErrNotFound
	}
	for _, existing := range account.FamilyMembers {
		if existing.Relation == relation && existing.MemberID != memberID {
			return sentinel.ErrAlreadyUsed
		}
	}
	for i, existing := range account.FamilyMembers {
		if existing.MemberID == memberID {
			account.FamilyMembers[i].Relation = relation
			return nil
		}
	}
	return sentinel.ErrNotFound
}

// Clear removes all records. Test helper.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts = make(map[id.AccountID]*models.Account)
	s.byEmail = make(map[string]id.AccountID)
	s.byPhone = make(map[string]id.AccountID)
}
