package account

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

// PostgresStore persists accounts and their family lists in PostgreSQL.
// The family list lives in the family_links table ordered by insertion;
// the (account_id, relation) unique constraint backs the per-account
// relation uniqueness.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed account store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	return s.findOne(ctx, `SELECT id, name, email, phone_number FROM accounts WHERE id = $1`, uuid.UUID(accountID))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.findOne(ctx, `SELECT id, name, email, phone_number FROM accounts WHERE email = $1`, email)
}

func (s *PostgresStore) FindByPhone(ctx context.Context, phone string) (*models.Account, error) {
	return s.findOne(ctx, `SELECT id, name, email, phone_number FROM accounts WHERE phone_number = $1`, phone)
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.Account, error) {
	var account models.Account
	var accountID uuid.UUID
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&accountID, &account.Name, &account.Email, &account.PhoneNumber)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	account.ID = id.AccountID(accountID)

	links, err := s.loadLinks(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	account.FamilyMembers = links
	return &account, nil
}

func (s *PostgresStore) loadLinks(ctx context.Context, accountID id.AccountID) ([]models.FamilyLink, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT relation, member_id FROM family_links WHERE account_id = $1 ORDER BY position`,
		uuid.UUID(accountID))
	if err != nil {
		return nil, fmt.Errorf("load family links: %w", err)
	}
	defer rows.Close()

	var links []models.FamilyLink
	for rows.Next() {
		var link models.FamilyLink
		var memberID uuid.UUID
		if err := rows.Scan(&link.Relation, &memberID); err != nil {
			return nil, fmt.Errorf("scan family link: %w", err)
		}
		link.MemberID = id.FamilyMemberID(memberID)
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate family links: %w", err)
	}
	return links, nil
}

// Put adds an account record if absent. Used by seeding; accounts are
// otherwise registered outside this module.
func (s *PostgresStore) Put(ctx context.Context, account *models.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, email, phone_number) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		uuid.UUID(account.ID), account.Name, account.Email, account.PhoneNumber)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendLink(ctx context.Context, accountID id.AccountID, link models.FamilyLink) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO family_links (account_id, member_id, relation)
		 SELECT id, $2, $3 FROM accounts WHERE id = $1`,
		uuid.UUID(accountID), uuid.UUID(link.MemberID), link.Relation)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("append family link: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("append family link: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RemoveLink(ctx context.Context, accountID id.AccountID, memberID id.FamilyMemberID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM family_links WHERE account_id = $1 AND member_id = $2`,
		uuid.UUID(accountID), uuid.UUID(memberID))
	if err != nil {
		return fmt.Errorf("remove family link: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetLinkRelation(ctx context.Context, accountID id.AccountID, memberID id.FamilyMemberID, relation string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE family_links SET relation = $3 WHERE account_id = $1 AND member_id = $2`,
		uuid.UUID(accountID), uuid.UUID(memberID), relation)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("set link relation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set link relation: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
