package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"kinlink/internal/family/models"
	id "kinlink/pkg/domain"
	"kinlink/pkg/platform/sentinel"
)

type AccountStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func (s *AccountStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
}

func TestAccountStoreSuite(t *testing.T) {
	suite.Run(t, new(AccountStoreSuite))
}

func (s *AccountStoreSuite) seed(name, email, phone string) *models.Account {
	account := &models.Account{
		ID:          id.NewAccountID(),
		Name:        name,
		Email:       email,
		PhoneNumber: phone,
	}
	s.Require().NoError(s.store.Put(s.ctx, account))
	return account
}

func (s *AccountStoreSuite) TestLookups() {
	account := s.seed("Priya", "priya@gmail.com", "+919800000001")

	found, err := s.store.FindByID(s.ctx, account.ID)
	s.Require().NoError(err)
	s.Equal("Priya", found.Name)

	found, err = s.store.FindByEmail(s.ctx, "priya@gmail.com")
	s.Require().NoError(err)
	s.Equal(account.ID, found.ID)

	found, err = s.store.FindByPhone(s.ctx, "+919800000001")
	s.Require().NoError(err)
	s.Equal(account.ID, found.ID)

	_, err = s.store.FindByEmail(s.ctx, "nobody@gmail.com")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *AccountStoreSuite) TestAppendLink() {
	account := s.seed("Priya", "priya@gmail.com", "+919800000001")
	memberID := id.NewFamilyMemberID()

	s.Require().NoError(s.store.AppendLink(s.ctx, account.ID, models.FamilyLink{Relation: "sister", MemberID: memberID}))

	s.Run("rejects duplicate relation", func() {
		err := s.store.AppendLink(s.ctx, account.ID, models.FamilyLink{Relation: "sister", MemberID: id.NewFamilyMemberID()})
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("preserves insertion order", func() {
		s.Require().NoError(s.store.AppendLink(s.ctx, account.ID, models.FamilyLink{Relation: "brother", MemberID: id.NewFamilyMemberID()}))
		found, err := s.store.FindByID(s.ctx, account.ID)
		s.Require().NoError(err)
		s.Require().Len(found.FamilyMembers, 2)
		s.Equal("sister", found.FamilyMembers[0].Relation)
		s.Equal("brother", found.FamilyMembers[1].Relation)
	})

	s.Run("rejects unknown account", func() {
		err := s.store.AppendLink(s.ctx, id.NewAccountID(), models.FamilyLink{Relation: "aunt", MemberID: memberID})
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *AccountStoreSuite) TestRemoveLink() {
	account := s.seed("Priya", "priya@gmail.com", "+919800000001")
	memberID := id.NewFamilyMemberID()
	s.Require().NoError(s.store.AppendLink(s.ctx, account.ID, models.FamilyLink{Relation: "sister", MemberID: memberID}))

	s.Require().NoError(s.store.RemoveLink(s.ctx, account.ID, memberID))
	found, err := s.store.FindByID(s.ctx, account.ID)
	s.Require().NoError(err)
	s.Empty(found.FamilyMembers)

	s.Run("absent entry is not an error", func() {
		s.Require().NoError(s.store.RemoveLink(s.ctx, account.ID, memberID))
	})
}

func (s *AccountStoreSuite) TestSetLinkRelation() {
	account := s.seed("Priya", "priya@gmail.com", "+919800000001")
	memberID := id.NewFamilyMemberID()
	s.Require().NoError(s.store.AppendLink(s.ctx, account.ID, models.FamilyLink{Relation: "sister", MemberID: memberID}))
	s.Require().NoError(s.store.AppendLink(s.ctx, account.ID, models.FamilyLink{Relation: "brother", MemberID: id.NewFamilyMemberID()}))

	s.Require().NoError(s.store.SetLinkRelation(s.ctx, account.ID, memberID, "elder sister"))
	found, err := s.store.FindByID(s.ctx, account.ID)
	s.Require().NoError(err)
	s.Equal("elder sister", found.FamilyMembers[0].Relation)

	s.Run("rejects relation held by another entry", func() {
		err := s.store.SetLinkRelation(s.ctx, account.ID, memberID, "brother")
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("rejects entry for unlinked member", func() {
		err := s.store.SetLinkRelation(s.ctx, account.ID, id.NewFamilyMemberID(), "uncle")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}
