package member

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kinlink/internal/family/models"
	id "kinlink/pkg/domain"
	"kinlink/pkg/platform/sentinel"
)

type MemberStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func (s *MemberStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
}

func TestMemberStoreSuite(t *testing.T) {
	suite.Run(t, new(MemberStoreSuite))
}

func (s *MemberStoreSuite) newMember(name, email, phone string) *models.FamilyMember {
	now := time.Now()
	return &models.FamilyMember{
		ID:          id.NewFamilyMemberID(),
		Name:        name,
		Email:       email,
		PhoneNumber: phone,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *MemberStoreSuite) TestCreationAndLookups() {
	member := s.newMember("Asha", "asha@gmail.com", "+919876543210")
	s.Require().NoError(s.store.Create(s.ctx, member))

	s.Run("finds by id", func() {
		found, err := s.store.FindByID(s.ctx, member.ID)
		s.Require().NoError(err)
		s.Equal("Asha", found.Name)
	})

	s.Run("finds by email", func() {
		found, err := s.store.FindByEmail(s.ctx, "asha@gmail.com")
		s.Require().NoError(err)
		s.Equal(member.ID, found.ID)
	})

	s.Run("finds by phone", func() {
		found, err := s.store.FindByPhone(s.ctx, "+919876543210")
		s.Require().NoError(err)
		s.Equal(member.ID, found.ID)
	})

	s.Run("returns ErrNotFound for unknown keys", func() {
		_, err := s.store.FindByID(s.ctx, id.NewFamilyMemberID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindByEmail(s.ctx, "nobody@gmail.com")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindByPhone(s.ctx, "+919999999999")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemberStoreSuite) TestCreateEnforcesGlobalUniqueness() {
	s.Require().NoError(s.store.Create(s.ctx, s.newMember("Asha", "asha@gmail.com", "+919876543210")))

	s.Run("rejects taken email", func() {
		err := s.store.Create(s.ctx, s.newMember("Other", "asha@gmail.com", "+919876543211"))
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("rejects taken phone", func() {
		err := s.store.Create(s.ctx, s.newMember("Other", "other@gmail.com", "+919876543210"))
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})
}

func (s *MemberStoreSuite) TestConcurrentCreateSameIdentity() {
	const goroutines = 20
	var wg sync.WaitGroup
	results := make(chan error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.store.Create(s.ctx, s.newMember("Asha", "asha@gmail.com", "+919876543210"))
		}()
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case s.ErrorIs(err, sentinel.ErrAlreadyUsed):
			conflicts++
		}
	}
	s.Equal(1, successes)
	s.Equal(goroutines-1, conflicts)
	s.Len(s.store.All(s.ctx), 1)
}

func (s *MemberStoreSuite) TestSave() {
	member := s.newMember("Asha", "asha@gmail.com", "+919876543210")
	s.Require().NoError(s.store.Create(s.ctx, member))

	s.Run("reindexes on changed identifiers", func() {
		member.Email = "asha.devi@gmail.com"
		member.PhoneNumber = "+919876543211"
		s.Require().NoError(s.store.Save(s.ctx, member))

		_, err := s.store.FindByEmail(s.ctx, "asha@gmail.com")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
		found, err := s.store.FindByEmail(s.ctx, "asha.devi@gmail.com")
		s.Require().NoError(err)
		s.Equal(member.ID, found.ID)
	})

	s.Run("rejects identifiers held by another member", func() {
		other := s.newMember("Vik", "vik@gmail.com", "+919876543212")
		s.Require().NoError(s.store.Create(s.ctx, other))

		other.Email = "asha.devi@gmail.com"
		s.Require().ErrorIs(s.store.Save(s.ctx, other), sentinel.ErrAlreadyUsed)
	})

	s.Run("rejects unknown member", func() {
		s.Require().ErrorIs(s.store.Save(s.ctx, s.newMember("Ghost", "ghost@gmail.com", "+919876543219")), sentinel.ErrNotFound)
	})
}

func (s *MemberStoreSuite) TestLinkLifecycle() {
	member := s.newMember("Asha", "asha@gmail.com", "+919876543210")
	s.Require().NoError(s.store.Create(s.ctx, member))
	accountID := id.NewAccountID()

	alreadyLinked, err := s.store.AddLink(s.ctx, member.ID, accountID)
	s.Require().NoError(err)
	s.False(alreadyLinked)

	alreadyLinked, err = s.store.AddLink(s.ctx, member.ID, accountID)
	s.Require().NoError(err)
	s.True(alreadyLinked)

	found, err := s.store.FindByID(s.ctx, member.ID)
	s.Require().NoError(err)
	s.Len(found.LinkedAccounts, 1)

	remaining, err := s.store.RemoveLink(s.ctx, member.ID, accountID)
	s.Require().NoError(err)
	s.Empty(remaining.LinkedAccounts)
	s.True(remaining.Orphaned())

	_, err = s.store.AddLink(s.ctx, id.NewFamilyMemberID(), accountID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemberStoreSuite) TestDelete() {
	member := s.newMember("Asha", "asha@gmail.com", "+919876543210")
	s.Require().NoError(s.store.Create(s.ctx, member))
	s.Require().NoError(s.store.Delete(s.ctx, member.ID))

	_, err := s.store.FindByID(s.ctx, member.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindByEmail(s.ctx, "asha@gmail.com")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Run("identifiers become reusable", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newMember("New", "asha@gmail.com", "+919876543210")))
	})

	s.Require().ErrorIs(s.store.Delete(s.ctx, id.NewFamilyMemberID()), sentinel.ErrNotFound)
}

func (s *MemberStoreSuite) TestClonesDoNotAliasStoreMemory() {
	member := s.newMember("Asha", "asha@gmail.com", "+919876543210")
	s.Require().NoError(s.store.Create(s.ctx, member))

	found, err := s.store.FindByID(s.ctx, member.ID)
	s.Require().NoError(err)
	found.Name = "Mutated"

	again, err := s.store.FindByID(s.ctx, member.ID)
	s.Require().NoError(err)
	s.Equal("Asha", again.Name)
}
