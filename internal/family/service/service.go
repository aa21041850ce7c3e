package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kinlink/internal/family/metrics"
	"kinlink/internal/family/models"
	id "kinlink/pkg/domain"
	dErrors "kinlink/pkg/domain-errors"
	"kinlink/pkg/platform/audit"
	"kinlink/pkg/platform/sentinel"
	"kinlink/pkg/requestcontext"
)

// AccountStore reads registered accounts and maintains their family lists.
// Implementations return sentinel.ErrNotFound for absent records and
// sentinel.ErrAlreadyUsed when AppendLink would duplicate a normalized
// relation within one account.
type AccountStore interface {
	FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByPhone(ctx context.Context, phone string) (*models.Account, error)
	AppendLink(ctx context.Context, accountID id.AccountID, link models.FamilyLink) error
	RemoveLink(ctx context.Context, accountID id.AccountID, memberID id.FamilyMemberID) error
	SetLinkRelation(ctx context.Context, accountID id.AccountID, memberID id.FamilyMemberID, relation string) error
}

// MemberStore persists shared family member records. Create and Save must
// enforce the global email and phone uniqueness themselves and report a
// violation as sentinel.ErrAlreadyUsed, so a lookup/write race surfaces as a
// conflict instead of a silent duplicate.
type MemberStore interface {
	FindByID(ctx context.Context, memberID id.FamilyMemberID) (*models.FamilyMember, error)
	FindByEmail(ctx context.Context, email string) (*models.FamilyMember, error)
	FindByPhone(ctx context.Context, phone string) (*models.FamilyMember, error)
	Create(ctx context.Context, member *models.FamilyMember) error
	Save(ctx context.Context, member *models.FamilyMember) error
	AddLink(ctx context.Context, memberID id.FamilyMemberID, accountID id.AccountID) (alreadyLinked bool, err error)
	RemoveLink(ctx context.Context, memberID id.FamilyMemberID, accountID id.AccountID) (*models.FamilyMember, error)
	Delete(ctx context.Context, memberID id.FamilyMemberID) error
}

// Reservation holds a short-lived claim on an email/phone pair while a new
// member record is being created, closing the window between the four-way
// lookup and the insert. Reserve returns sentinel.ErrAlreadyUsed when another
// request holds the pair.
type Reservation interface {
	Reserve(ctx context.Context, email, phone string) error
	Release(ctx context.Context, email, phone string)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Statuses distinguish the non-error outcomes of create and update.
const (
	StatusCreated        = "created"
	StatusLinked         = "linked"
	StatusAlreadyLinked  = "already_linked"
	StatusUpdated        = "updated"
	StatusRelationExists = "relation_exists"
)

// AddResult is the outcome of a create submission.
type AddResult struct {
	Member *models.FamilyMember
	Status string
}

// UpdateResult is the outcome of an update submission.
type UpdateResult struct {
	Member *models.FamilyMember
	Status string
}

// RemoveResult reports whether the unlink also deleted the record.
type RemoveResult struct {
	Deleted bool
}

// Service is the reconciliation engine: it decides whether a submission
// refers to a registered account, an existing shared member, a conflicting
// identity, or a brand-new person, and applies exactly one outcome.
type Service struct {
	accounts       AccountStore
	members        MemberStore
	reservations   Reservation
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service. The reservation component may be nil, in which
// case new-member creation relies on the store's uniqueness enforcement
// alone.
func New(accounts AccountStore, members MemberStore, reservations Reservation, opts ...Option) *Service {
	s := &Service{
		accounts:     accounts,
		members:      members,
		reservations: reservations,
		tracer:       otel.Tracer("kinlink/family"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddMember classifies a submission for the authenticated account and applies
// the matching mutation: link an existing member, report an existing link, or
// create a new record.
func (s *Service) AddMember(ctx context.Context, accountID id.AccountID, req models.AddMemberRequest) (AddResult, error) {
	start := time.Now()
	defer s.observeAddMember(start)

	ctx, span := s.tracer.Start(ctx, "family.AddMember")
	defer span.End()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return AddResult{}, err
	}
	relation := models.NormalizeRelation(req.Relation)

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return AddResult{}, dErrors.New(dErrors.CodeUnauthorized, "requesting account not found")
		}
		return AddResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load requesting account")
	}
	if link, exists := account.LinkWithRelation(relation); exists {
		// An exact resubmission of an existing link is idempotent; the
		// relation only conflicts when it points at someone else.
		linked, findErr := s.members.FindByID(ctx, link.MemberID)
		if findErr != nil && !errors.Is(findErr, sentinel.ErrNotFound) {
			return AddResult{}, dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to load linked family member")
		}
		if findErr == nil && linked.Email == req.Email && linked.PhoneNumber == req.PhoneNumber {
			s.incrementAlreadyLinked()
			s.logAudit(ctx, audit.EventMemberLinked, linked.ID, relation, StatusAlreadyLinked, "")
			return AddResult{Member: linked, Status: StatusAlreadyLinked}, nil
		}
		s.incrementConflicts()
		return AddResult{}, dErrors.Newf(dErrors.CodeConflict,
			"a family member with the relation %q already exists", relation)
	}

	lookups, err := s.fetchLookups(ctx, req.Email, req.PhoneNumber)
	if err != nil {
		return AddResult{}, err
	}
	outcome, err := Classify(lookups)
	if err != nil {
		s.incrementConflicts()
		span.SetStatus(codes.Error, "identity conflict")
		return AddResult{}, err
	}

	if outcome.Member != nil {
		return s.linkExistingMember(ctx, account, outcome, relation)
	}
	return s.createMember(ctx, account, outcome, req, relation)
}

func (s *Service) linkExistingMember(ctx context.Context, account *models.Account, outcome Outcome, relation string) (AddResult, error) {
	member := outcome.Member
	accountID := account.ID

	// The account is the source of truth once the submission resolves to a
	// registered user; sync before linking so even the idempotent path
	// leaves the mirror fresh.
	if outcome.MatchedAccount != nil && !mirrors(member, outcome.MatchedAccount) {
		member.MirrorAccount(outcome.MatchedAccount)
		member.UpdatedAt = requestcontext.Now(ctx)
		if err := s.members.Save(ctx, member); err != nil {
			return AddResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sync registered user fields")
		}
	}

	alreadyLinked, err := s.members.AddLink(ctx, member.ID, accountID)
	if err != nil {
		return AddResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to link family member")
	}
	if alreadyLinked {
		s.incrementAlreadyLinked()
		s.logAudit(ctx, audit.EventMemberLinked, member.ID, relation, StatusAlreadyLinked, "")
		return AddResult{Member: member, Status: StatusAlreadyLinked}, nil
	}
	member.LinkedAccounts = append(member.LinkedAccounts, accountID)

	if err := s.accounts.AppendLink(ctx, accountID, models.FamilyLink{Relation: relation, MemberID: member.ID}); err != nil {
		// Undo the link so the back-reference invariant holds.
		if _, undoErr := s.members.RemoveLink(ctx, member.ID, accountID); undoErr != nil {
			s.logError(ctx, "failed to undo member link after append failure", undoErr, "member_id", member.ID)
		}
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.incrementConflicts()
			return AddResult{}, dErrors.Newf(dErrors.CodeConflict,
				"a family member with the relation %q already exists", relation)
		}
		return AddResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record family relation")
	}

	s.incrementLinked()
	s.logAudit(ctx, audit.EventMemberLinked, member.ID, relation, StatusLinked, "")
	return AddResult{Member: member, Status: StatusLinked}, nil
}

func (s *Service) createMember(ctx context.Context, account *models.Account, outcome Outcome, req models.AddMemberRequest, relation string) (AddResult, error) {
	if s.reservations != nil {
		if err := s.reservations.Reserve(ctx, req.Email, req.PhoneNumber); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				s.incrementConflicts()
				return AddResult{}, dErrors.New(dErrors.CodeConflict,
					"another request is currently registering this email or phone number")
			}
			return AddResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reserve identifiers")
		}
		defer s.reservations.Release(ctx, req.Email, req.PhoneNumber)
	}

	now := requestcontext.Now(ctx)
	member := &models.FamilyMember{
		ID:             id.NewFamilyMemberID(),
		Name:           req.Name,
		Email:          req.Email,
		PhoneNumber:    req.PhoneNumber,
		LinkedAccounts: []id.AccountID{account.ID},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if outcome.MatchedAccount != nil {
		member.MirrorAccount(outcome.MatchedAccount)
	}

	if err := s.members.Create(ctx, member); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			// A concurrent submission won the insert.
			s.incrementConflicts()
			return AddResult{}, dErrors.New(dErrors.CodeConflict,
				"email or phone number already belongs to a family member")
		}
		return AddResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create family member")
	}

	if err := s.accounts.AppendLink(ctx, account.ID, models.FamilyLink{Relation: relation, MemberID: member.ID}); err != nil {
		if delErr := s.members.Delete(ctx, member.ID); delErr != nil {
			s.logError(ctx, "failed to delete member after append failure", delErr, "member_id", member.ID)
		}
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.incrementConflicts()
			return AddResult{}, dErrors.Newf(dErrors.CodeConflict,
				"a family member with the relation %q already exists", relation)
		}
		return AddResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record family relation")
	}

	s.incrementCreated()
	s.logAudit(ctx, audit.EventMemberCreated, member.ID, relation, StatusCreated, "")
	return AddResult{Member: member, Status: StatusCreated}, nil
}

// ListMembers returns the requester's family as a relation-to-summary map.
// Links whose member record has vanished are skipped rather than failing the
// whole listing.
func (s *Service) ListMembers(ctx context.Context, accountID id.AccountID) (map[string]models.MemberSummary, error) {
	start := time.Now()
	defer s.observeList(start)

	ctx, span := s.tracer.Start(ctx, "family.ListMembers")
	defer span.End()

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "requesting account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load requesting account")
	}

	family := make(map[string]models.MemberSummary, len(account.FamilyMembers))
	for _, link := range account.FamilyMembers {
		member, err := s.members.FindByID(ctx, link.MemberID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				s.logError(ctx, "family list references missing member", err, "member_id", link.MemberID)
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load family member")
		}
		family[link.Relation] = models.MemberSummary{
			Name:        member.Name,
			Email:       member.Email,
			PhoneNumber: member.PhoneNumber,
		}
	}
	span.SetAttributes(attribute.Int("family.size", len(family)))
	return family, nil
}

// UpdateMember replaces a member's descriptive fields and the requester's
// relation label for them.
func (s *Service) UpdateMember(ctx context.Context, accountID id.AccountID, memberID id.FamilyMemberID, req models.UpdateMemberRequest) (UpdateResult, error) {
	ctx, span := s.tracer.Start(ctx, "family.UpdateMember")
	defer span.End()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return UpdateResult{}, err
	}
	relation := models.NormalizeRelation(req.Relationship)

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return UpdateResult{}, dErrors.New(dErrors.CodeUnauthorized, "requesting account not found")
		}
		return UpdateResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load requesting account")
	}

	// The new relation may collide with a different entry in the requester's
	// list. Historically a lenient outcome, not a failure, and it is decided
	// before the target member is even loaded.
	if existing, exists := account.LinkWithRelation(relation); exists && existing.MemberID != memberID {
		return UpdateResult{Status: StatusRelationExists}, nil
	}

	member, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return UpdateResult{}, dErrors.New(dErrors.CodeNotFound, "family member not found")
		}
		return UpdateResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load family member")
	}
	if !member.IsLinkedTo(accountID) {
		return UpdateResult{}, dErrors.New(dErrors.CodeForbidden, "you are not linked to this family member")
	}

	if member.IsUser && (req.Name != member.Name || req.Email != member.Email || req.PhoneNumber != member.PhoneNumber) {
		s.incrementConflicts()
		return UpdateResult{}, dErrors.New(dErrors.CodeConflict,
			"this family member is a registered user; name, email, and phone number must be updated by the account holder directly")
	}

	if req.Email != member.Email {
		if other, err := s.members.FindByEmail(ctx, req.Email); err == nil && other.ID != memberID {
			s.incrementConflicts()
			return UpdateResult{}, dErrors.New(dErrors.CodeConflict, "email already belongs to another family member")
		} else if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return UpdateResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check email uniqueness")
		}
	}
	if req.PhoneNumber != member.PhoneNumber {
		if other, err := s.members.FindByPhone(ctx, req.PhoneNumber); err == nil && other.ID != memberID {
			s.incrementConflicts()
			return UpdateResult{}, dErrors.New(dErrors.CodeConflict, "phone number already belongs to another family member")
		} else if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return UpdateResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check phone uniqueness")
		}
	}

	member.Name = req.Name
	member.Email = req.Email
	member.PhoneNumber = req.PhoneNumber
	member.UpdatedAt = requestcontext.Now(ctx)
	if err := s.members.Save(ctx, member); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			// Lost a race against a concurrent create or update.
			s.incrementConflicts()
			return UpdateResult{}, dErrors.New(dErrors.CodeConflict,
				"email or phone number already belongs to another family member")
		}
		return UpdateResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save family member")
	}

	if err := s.accounts.SetLinkRelation(ctx, accountID, memberID, relation); err != nil {
		return UpdateResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update relation label")
	}

	s.incrementUpdated()
	s.logAudit(ctx, audit.EventMemberUpdated, memberID, relation, StatusUpdated, "")
	return UpdateResult{Member: member, Status: StatusUpdated}, nil
}

// RemoveMember unlinks the requester from a member and deletes the record
// when nothing references it anymore.
func (s *Service) RemoveMember(ctx context.Context, accountID id.AccountID, memberID id.FamilyMemberID) (RemoveResult, error) {
	ctx, span := s.tracer.Start(ctx, "family.RemoveMember")
	defer span.End()

	member, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return RemoveResult{}, dErrors.New(dErrors.CodeNotFound, "family member not found")
		}
		return RemoveResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load family member")
	}
	if !member.IsLinkedTo(accountID) {
		return RemoveResult{}, dErrors.New(dErrors.CodeForbidden, "you are not linked to this family member")
	}

	remaining, err := s.members.RemoveLink(ctx, memberID, accountID)
	if err != nil {
		return RemoveResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to unlink family member")
	}
	if err := s.accounts.RemoveLink(ctx, accountID, memberID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return RemoveResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove family relation")
	}
	s.incrementUnlinked()

	if remaining.Orphaned() {
		if err := s.members.Delete(ctx, memberID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return RemoveResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete orphaned family member")
		}
		s.incrementOrphansRemoved()
		s.logAudit(ctx, audit.EventMemberDeleted, memberID, "", "deleted", "no remaining links")
		return RemoveResult{Deleted: true}, nil
	}

	s.logAudit(ctx, audit.EventMemberUnlinked, memberID, "", "unlinked", "")
	return RemoveResult{Deleted: false}, nil
}

// mirrors reports whether the member already reflects the account's identity
// and descriptive fields.
func mirrors(member *models.FamilyMember, account *models.Account) bool {
	return member.IsUser && member.UserID != nil && *member.UserID == account.ID &&
		member.Name == account.Name && member.Email == account.Email &&
		member.PhoneNumber == account.PhoneNumber
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, memberID id.FamilyMemberID, relation, outcome, reason string) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"event", string(event),
			"log_type", "audit",
			"member_id", memberID,
			"relation", relation,
			"outcome", outcome,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		AccountID: requestcontext.AccountID(ctx),
		MemberID:  memberID,
		Action:    string(event),
		Relation:  relation,
		Outcome:   outcome,
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		Device:    requestcontext.Device(ctx),
	})
}

func (s *Service) logError(ctx context.Context, msg string, err error, args ...any) {
	if s.logger == nil {
		return
	}
	args = append(args, "error", fmt.Sprintf("%v", err))
	s.logger.ErrorContext(ctx, msg, args...)
}

func (s *Service) observeAddMember(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveAddMember(start)
	}
}

func (s *Service) observeList(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveList(start)
	}
}

func (s *Service) incrementCreated() {
	if s.metrics != nil {
		s.metrics.MembersCreated.Inc()
	}
}

func (s *Service) incrementLinked() {
	if s.metrics != nil {
		s.metrics.MembersLinked.Inc()
	}
}

func (s *Service) incrementAlreadyLinked() {
	if s.metrics != nil {
		s.metrics.AlreadyLinked.Inc()
	}
}

func (s *Service) incrementConflicts() {
	if s.metrics != nil {
		s.metrics.Conflicts.Inc()
	}
}

func (s *Service) incrementUpdated() {
	if s.metrics != nil {
		s.metrics.MembersUpdated.Inc()
	}
}

func (s *Service) incrementUnlinked() {
	if s.metrics != nil {
		s.metrics.MembersUnlinked.Inc()
	}
}

func (s *Service) incrementOrphansRemoved() {
	if s.metrics != nil {
		s.metrics.OrphansRemoved.Inc()
	}
}
