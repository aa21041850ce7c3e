package audit

import (
	"context"
	"time"

	id "kinlink/pkg/domain"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	AccountID id.AccountID
	MemberID  id.FamilyMemberID
	Action    string
	Relation  string
	Outcome   string
	Reason    string
	RequestID string
	ClientIP  string
	Device    string
}

type AuditEvent string

const (
	EventMemberCreated  AuditEvent = "family_member_created"
	EventMemberLinked   AuditEvent = "family_member_linked"
	EventMemberUpdated  AuditEvent = "family_member_updated"
	EventMemberUnlinked AuditEvent = "family_member_unlinked"
	EventMemberDeleted  AuditEvent = "family_member_deleted"
)

// Store persists audit events. Implementations must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAccount(ctx context.Context, accountID id.AccountID) ([]Event, error)
}
