package organisation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	memberOrgFK  = "organisation_members_org_id_fkey"
	memberUserFK = "organisation_members_user_id_fkey"
	orgCreatorFK = "organisations_created_by_fkey"
)

const orgColumns = `o.org_id, o.name, o.description, o.created_by, o.created_at`

// Store provides database operations for organisations and memberships.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new organisation store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanOrganisation(row pgx.Row) (*Organisation, error) {
	o := &Organisation{}
	err := row.Scan(&o.ID, &o.Name, &o.Description, &o.CreatedBy, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return o, nil
}

// Create inserts the organisation and its creator's membership in a single
// transaction.
func (s *Store) Create(ctx context.Context, creatorID string, in CreateOrganisationInput) (*Organisation, error) {
	var org *Organisation
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		org, err = scanOrganisation(tx.QueryRow(ctx,
			`INSERT INTO organisations AS o (org_id, name, description, created_by)
			 VALUES ($1, $2, $3, $4)
			 RETURNING `+orgColumns,
			uuid.NewString(), in.Name, in.Description, creatorID,
		))
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO organisation_members (org_id, user_id) VALUES ($1, $2)`,
			org.ID, creatorID,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating organisation: %w", mapPostgresError(err))
	}
	return org, nil
}

// GetByID retrieves an organisation by id. Malformed ids are ErrNotFound.
func (s *Store) GetByID(ctx context.Context, orgID string) (*Organisation, error) {
	if _, err := uuid.Parse(orgID); err != nil {
		return nil, ErrNotFound
	}

	o, err := scanOrganisation(s.pool.QueryRow(ctx,
		`SELECT `+orgColumns+` FROM organisations o WHERE o.org_id = $1`, orgID,
	))
	if err != nil {
		return nil, fmt.Errorf("getting organisation: %w", err)
	}
	return o, nil
}

// Add makes userID a member of orgID. It reports whether a new membership was
// created; adding an existing member is a no-op.
func (s *Store) Add(ctx context.Context, userID, orgID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO organisation_members (org_id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT (org_id, user_id) DO NOTHING`,
		orgID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("adding member: %w", mapPostgresError(err))
	}
	return tag.RowsAffected() == 1, nil
}

// ListForUser returns the organisations userID belongs to, oldest membership
// first.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]*Organisation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orgColumns+`
		 FROM organisations o
		 JOIN organisation_members m ON m.org_id = o.org_id
		 WHERE m.user_id = $1
		 ORDER BY m.created_at ASC, o.org_id ASC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing organisations: %w", err)
	}
	defer rows.Close()

	orgs := []*Organisation{}
	for rows.Next() {
		o, err := scanOrganisation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning organisation row: %w", err)
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

// IsMember reports whether userID belongs to orgID.
func (s *Store) IsMember(ctx context.Context, userID, orgID string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM organisation_members WHERE org_id = $1 AND user_id = $2)`,
		orgID, userID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("checking membership: %w", err)
	}
	return ok, nil
}

// SharesOrganisation reports whether the two users have at least one
// organisation in common.
func (s *Store) SharesOrganisation(ctx context.Context, userA, userB string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM organisation_members a
			JOIN organisation_members b ON a.org_id = b.org_id
			WHERE a.user_id = $1 AND b.user_id = $2
		)`, userA, userB,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("checking shared organisation: %w", err)
	}
	return ok, nil
}

func mapPostgresError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.ForeignKeyViolation:
		switch pgErr.ConstraintName {
		case memberOrgFK:
			return ErrNotFound
		case memberUserFK, orgCreatorFK:
			return ErrUserNotFound
		}
		return fmt.Errorf("foreign key violation: %s: %w", pgErr.ConstraintName, err)
	case pgerrcode.InvalidTextRepresentation:
		return ErrNotFound
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return fmt.Errorf("transaction conflict (retryable): %w", err)
	default:
		return fmt.Errorf("postgres error [%s]: %s: %w", pgErr.Code, pgErr.Message, err)
	}
}
