//go:build integration

package account_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kinlink/internal/family/models"
	"kinlink/internal/family/store/account"
	"kinlink/internal/family/store/member"
	id "kinlink/pkg/domain"
	"kinlink/pkg/platform/sentinel"
	"kinlink/pkg/testutil/containers"
)

type PostgresAccountStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *account.PostgresStore
	members  *member.PostgresStore
}

func TestPostgresAccountStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAccountStoreSuite))
}

func (s *PostgresAccountStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = account.NewPostgres(s.postgres.DB)
	s.members = member.NewPostgres(s.postgres.DB)
}

func (s *PostgresAccountStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "member_links", "family_links", "family_members", "accounts")
	s.Require().NoError(err)
}

func (s *PostgresAccountStoreSuite) seedAccount(name, email, phone string) *models.Account {
	a := &models.Account{
		ID:          id.NewAccountID(),
		Name:        name,
		Email:       email,
		PhoneNumber: phone,
	}
	s.Require().NoError(s.store.Put(context.Background(), a))
	return a
}

func (s *PostgresAccountStoreSuite) seedMember(name, email, phone string) *models.FamilyMember {
	now := time.Now().UTC().Truncate(time.Microsecond)
	m := &models.FamilyMember{
		ID:          id.NewFamilyMemberID(),
		Name:        name,
		Email:       email,
		PhoneNumber: phone,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.Require().NoError(s.members.Create(context.Background(), m))
	return m
}

func (s *PostgresAccountStoreSuite) TestLookups() {
	ctx := context.Background()
	a := s.seedAccount("Priya", "priya@gmail.com", "+919800000001")

	found, err := s.store.FindByID(ctx, a.ID)
	s.Require().NoError(err)
	s.Equal("Priya", found.Name)
	s.Empty(found.FamilyMembers)

	byEmail, err := s.store.FindByEmail(ctx, "priya@gmail.com")
	s.Require().NoError(err)
	s.Equal(a.ID, byEmail.ID)

	byPhone, err := s.store.FindByPhone(ctx, "+919800000001")
	s.Require().NoError(err)
	s.Equal(a.ID, byPhone.ID)

	_, err = s.store.FindByID(ctx, id.NewAccountID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresAccountStoreSuite) TestLinkOrderingAndRelationUniqueness() {
	ctx := context.Background()
	a := s.seedAccount("Priya", "priya@gmail.com", "+919800000001")
	first := s.seedMember("Asha", "asha@gmail.com", "+919876543210")
	second := s.seedMember("Vik", "vik@gmail.com", "+919876543211")

	s.Require().NoError(s.store.AppendLink(ctx, a.ID, models.FamilyLink{Relation: "sister", MemberID: first.ID}))
	s.Require().NoError(s.store.AppendLink(ctx, a.ID, models.FamilyLink{Relation: "brother", MemberID: second.ID}))

	err := s.store.AppendLink(ctx, a.ID, models.FamilyLink{Relation: "sister", MemberID: second.ID})
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)

	err = s.store.AppendLink(ctx, id.NewAccountID(), models.FamilyLink{Relation: "aunt", MemberID: first.ID})
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	found, err := s.store.FindByID(ctx, a.ID)
	s.Require().NoError(err)
	s.Require().Len(found.FamilyMembers, 2)
	s.Equal("sister", found.FamilyMembers[0].Relation)
	s.Equal("brother", found.FamilyMembers[1].Relation)
}

func (s *PostgresAccountStoreSuite) TestRemoveLink() {
	ctx := context.Background()
	a := s.seedAccount("Priya", "priya@gmail.com", "+919800000001")
	m := s.seedMember("Asha", "asha@gmail.com", "+919876543210")
	s.Require().NoError(s.store.AppendLink(ctx, a.ID, models.FamilyLink{Relation: "sister", MemberID: m.ID}))

	s.Require().NoError(s.store.RemoveLink(ctx, a.ID, m.ID))
	found, err := s.store.FindByID(ctx, a.ID)
	s.Require().NoError(err)
	s.Empty(found.FamilyMembers)

	// Removing an absent entry is not an error.
	s.Require().NoError(s.store.RemoveLink(ctx, a.ID, m.ID))
}

func (s *PostgresAccountStoreSuite) TestSetLinkRelation() {
	ctx := context.Background()
	a := s.seedAccount("Priya", "priya@gmail.com", "+919800000001")
	first := s.seedMember("Asha", "asha@gmail.com", "+919876543210")
	second := s.seedMember("Vik", "vik@gmail.com", "+919876543211")
	s.Require().NoError(s.store.AppendLink(ctx, a.ID, models.FamilyLink{Relation: "sister", MemberID: first.ID}))
	s.Require().NoError(s.store.AppendLink(ctx, a.ID, models.FamilyLink{Relation: "brother", MemberID: second.ID}))

	s.Require().NoError(s.store.SetLinkRelation(ctx, a.ID, first.ID, "elder sister"))
	found, err := s.store.FindByID(ctx, a.ID)
	s.Require().NoError(err)
	s.Equal("elder sister", found.FamilyMembers[0].Relation)

	err = s.store.SetLinkRelation(ctx, a.ID, first.ID, "brother")
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)

	err = s.store.SetLinkRelation(ctx, a.ID, id.NewFamilyMemberID(), "uncle")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
