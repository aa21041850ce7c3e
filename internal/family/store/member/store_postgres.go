package member

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"kinlink/internal/family/models"
	"kinlink/internal/family/store"
	id "kinlink/pkg/domain"
	"kinlink/pkg/platform/sentinel"
)

// PostgresStore persists shared family member records in PostgreSQL. Unique
// indexes on email and phone_number enforce the global uniqueness invariant
// at the write, so concurrent creates degrade to a reported conflict.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed member store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByID(ctx context.Context, memberID id.FamilyMemberID) (*models.FamilyMember, error) {
	return s.findOne(ctx,
		`SELECT id, name, email, phone_number, is_user, user_id, created_at, updated_at
		 FROM family_members WHERE id = $1`, uuid.UUID(memberID))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.FamilyMember, error) {
	return s.findOne(ctx,
		`SELECT id, name, email, phone_number, is_user, user_id, created_at, updated_at
		 FROM family_members WHERE email = $1`, email)
}

func (s *PostgresStore) FindByPhone(ctx context.Context, phone string) (*models.FamilyMember, error) {
	return s.findOne(ctx,
		`SELECT id, name, email, phone_number, is_user, user_id, created_at, updated_at
		 FROM family_members WHERE phone_number = $1`, phone)
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.FamilyMember, error) {
	var member models.FamilyMember
	var memberID uuid.UUID
	var userID uuid.NullUUID
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&memberID, &member.Name, &member.Email, &member.PhoneNumber,
		&member.IsUser, &userID, &member.CreatedAt, &member.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find family member: %w", err)
	}
	member.ID = id.FamilyMemberID(memberID)
	if userID.Valid {
		accountID := id.AccountID(userID.UUID)
		member.UserID = &accountID
	}

	links, err := s.loadLinks(ctx, member.ID)
	if err != nil {
		return nil, err
	}
	member.LinkedAccounts = links
	return &member, nil
}

func (s *PostgresStore) loadLinks(ctx context.Context, memberID id.FamilyMemberID) ([]id.AccountID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT account_id FROM member_links WHERE member_id = $1`, uuid.UUID(memberID))
	if err != nil {
		return nil, fmt.Errorf("load member links: %w", err)
	}
	defer rows.Close()

	var links []id.AccountID
	for rows.Next() {
		var accountID uuid.UUID
		if err := rows.Scan(&accountID); err != nil {
			return nil, fmt.Errorf("scan member link: %w", err)
		}
		links = append(links, id.AccountID(accountID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member links: %w", err)
	}
	return links, nil
}

func (s *PostgresStore) Create(ctx context.Context, member *models.FamilyMember) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create member tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO family_members (id, name, email, phone_number, is_user, user_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(member.ID), member.Name, member.Email, member.PhoneNumber,
		member.IsUser, nullableID(member.UserID), member.CreatedAt, member.UpdatedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert family member: %w", err)
	}

	for _, accountID := range member.LinkedAccounts {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO member_links (member_id, account_id) VALUES ($1, $2)
			 ON CONFLICT (member_id, account_id) DO NOTHING`,
			uuid.UUID(member.ID), uuid.UUID(accountID))
		if err != nil {
			return fmt.Errorf("insert member link: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create member tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, member *models.FamilyMember) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE family_members
		 SET name = $2, email = $3, phone_number = $4, is_user = $5, user_id = $6, updated_at = $7
		 WHERE id = $1`,
		uuid.UUID(member.ID), member.Name, member.Email, member.PhoneNumber,
		member.IsUser, nullableID(member.UserID), member.UpdatedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("save family member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save family member: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AddLink(ctx context.Context, memberID id.FamilyMemberID, accountID id.AccountID) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO member_links (member_id, account_id)
		 SELECT id, $2 FROM family_members WHERE id = $1
		 ON CONFLICT (member_id, account_id) DO NOTHING`,
		uuid.UUID(memberID), uuid.UUID(accountID))
	if err != nil {
		return false, fmt.Errorf("add member link: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add member link: %w", err)
	}
	if affected == 1 {
		return false, nil
	}

	// Nothing inserted: either the link already exists or the member is gone.
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM family_members WHERE id = $1)`, uuid.UUID(memberID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check member exists: %w", err)
	}
	if !exists {
		return false, sentinel.ErrNotFound
	}
	return true, nil
}

func (s *PostgresStore) RemoveLink(ctx context.Context, memberID id.FamilyMemberID, accountID id.AccountID) (*models.FamilyMember, error) {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM member_links WHERE member_id = $1 AND account_id = $2`,
		uuid.UUID(memberID), uuid.UUID(accountID))
	if err != nil {
		return nil, fmt.Errorf("remove member link: %w", err)
	}
	return s.FindByID(ctx, memberID)
}

func (s *PostgresStore) Delete(ctx context.Context, memberID id.FamilyMemberID) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM family_members WHERE id = $1`, uuid.UUID(memberID))
	if err != nil {
		return fmt.Errorf("delete family member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete family member: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullableID(accountID *id.AccountID) uuid.NullUUID {
	if accountID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*accountID), Valid: true}
}
