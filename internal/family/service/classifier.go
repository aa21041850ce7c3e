package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"kinlink/internal/family/models"
	dErrors "kinlink/pkg/domain-errors"
	"kinlink/pkg/platform/sentinel"
)

// Lookups holds the result of the four-way identity probe for a submission.
// A nil field means that identifier matched nothing in that collection. All
// four lookups must have completed before classification runs.
type Lookups struct {
	AccountByEmail *models.Account
	AccountByPhone *models.Account
	MemberByEmail  *models.FamilyMember
	MemberByPhone  *models.FamilyMember
}

// Outcome is the classification of a submission against the two collections.
//
// Member is non-nil when both identifiers resolve to the same existing
// family member (link rather than create). MatchedAccount is non-nil when
// both identifiers resolve to the same registered account, in which case the
// target member (existing or about to be created) must be marked as that
// registered user and mirror its fields.
type Outcome struct {
	Member         *models.FamilyMember
	MatchedAccount *models.Account
}

// Classify applies the cross-field conflict rules and resolves the target
// family member. All conflict reasons are evaluated together and reported in
// one message; classification never mutates anything.
func Classify(l Lookups) (Outcome, error) {
	memberResolved := l.MemberByEmail != nil && l.MemberByPhone != nil &&
		l.MemberByEmail.ID == l.MemberByPhone.ID

	var reasons []string
	if l.AccountByEmail != nil && l.AccountByPhone != nil && l.AccountByEmail.ID != l.AccountByPhone.ID {
		reasons = append(reasons, "the email matches one registered account while the phone number matches another")
	}
	if l.MemberByEmail != nil && l.MemberByPhone != nil && l.MemberByEmail.ID != l.MemberByPhone.ID {
		reasons = append(reasons, "the email matches one family member while the phone number matches another")
	}

	// Matches landing in different categories are unresolvable as well,
	// unless both member probes already agree on one record or the account
	// and the member describe the same person.
	if !memberResolved {
		if l.AccountByEmail != nil && l.MemberByPhone != nil && !sameIdentity(l.AccountByEmail, l.MemberByPhone) {
			reasons = append(reasons, "the email matches a registered account while the phone number belongs to a different family member")
		}
		if l.AccountByPhone != nil && l.MemberByEmail != nil && !sameIdentity(l.AccountByPhone, l.MemberByEmail) {
			reasons = append(reasons, "the phone number matches a registered account while the email belongs to a different family member")
		}
	}

	if len(reasons) > 0 {
		return Outcome{}, dErrors.New(dErrors.CodeConflict,
			"email and phone number do not form a valid pair: "+strings.Join(reasons, "; "))
	}

	out := Outcome{}
	if l.AccountByEmail != nil && l.AccountByPhone != nil {
		// Same account on both fields (mismatch handled above).
		out.MatchedAccount = l.AccountByEmail
	}

	switch {
	case l.MemberByEmail != nil && l.MemberByPhone != nil:
		out.Member = l.MemberByEmail
	case l.MemberByEmail != nil:
		return Outcome{}, dErrors.New(dErrors.CodeConflict,
			"email and phone number must both be new or both belong to the same family member: the email already belongs to a family member but the phone number does not match them")
	case l.MemberByPhone != nil:
		return Outcome{}, dErrors.New(dErrors.CodeConflict,
			"email and phone number must both be new or both belong to the same family member: the phone number already belongs to a family member but the email does not match them")
	}

	return out, nil
}

// sameIdentity reports whether a family member record and an account describe
// the same person, so a both-sided match is a registration sync rather than a
// conflict.
func sameIdentity(account *models.Account, member *models.FamilyMember) bool {
	return member.UserID != nil && *member.UserID == account.ID ||
		(member.Email == account.Email && member.PhoneNumber == account.PhoneNumber)
}

// fetchLookups runs the four identity probes concurrently and waits for all
// of them before returning. Absence is not an error; any other store failure
// aborts the whole classification.
func (s *Service) fetchLookups(ctx context.Context, email, phone string) (Lookups, error) {
	var l Lookups
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		account, err := s.accounts.FindByEmail(gctx, email)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		l.AccountByEmail = account
		return nil
	})
	g.Go(func() error {
		account, err := s.accounts.FindByPhone(gctx, phone)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		l.AccountByPhone = account
		return nil
	})
	g.Go(func() error {
		member, err := s.members.FindByEmail(gctx, email)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		l.MemberByEmail = member
		return nil
	})
	g.Go(func() error {
		member, err := s.members.FindByPhone(gctx, phone)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		l.MemberByPhone = member
		return nil
	})

	if err := g.Wait(); err != nil {
		return Lookups{}, dErrors.Wrap(err, dErrors.CodeInternal, "identity lookup failed")
	}
	return l, nil
}
