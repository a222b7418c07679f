// Package postgres implements store.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xraph/leadledger"
	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/lead"
	"github.com/xraph/leadledger/leadview"
	ledgerstore "github.com/xraph/leadledger/store"
	"github.com/xraph/leadledger/user"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool. The caller keeps ownership of the pool's
// configuration; Close closes it.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open parses dsn, tunes the pool and verifies connectivity.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("leadledger/postgres: parse config: %w", err)
	}
	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("leadledger/postgres: create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("leadledger/postgres: ping: %w", err)
	}
	return New(pool), nil
}

// Pool returns the underlying pool for direct access.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ==================== User Store ====================

func (s *Store) CreateUser(ctx context.Context, u *user.User, grant *credit.Transaction) error {
	m := toUserModel(u)
	return s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO leadledger_users (`+userColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			m.ID, m.Name, m.Email, m.PasswordHash, m.Role, m.Credits, m.CreatedAt, m.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err, "idx_leadledger_users_email") {
				return leadledger.ErrEmailTaken
			}
			if isUniqueViolation(err, "") {
				return leadledger.ErrAlreadyExists
			}
			return fmt.Errorf("insert user: %w", err)
		}
		if grant == nil {
			return nil
		}
		if _, err := tx.Exec(ctx, insertTransaction, toTransactionArgs(grant)...); err != nil {
			return fmt.Errorf("insert opening grant: %w", err)
		}
		return nil
	})
}

func (s *Store) GetUser(ctx context.Context, userID id.UserID) (*user.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM leadledger_users WHERE id = $1`, userID.String())
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, leadledger.ErrUserNotFound
		}
		return nil, fmt.Errorf("query user by id: %w", err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM leadledger_users WHERE email = $1`, email)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, leadledger.ErrUserNotFound
		}
		return nil, fmt.Errorf("query user by email: %w", err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context, opts user.ListOpts) ([]*user.User, error) {
	var f filter
	if opts.Role != "" {
		f.add("role = $%d", string(opts.Role))
	}
	query := `SELECT ` + userColumns + ` FROM leadledger_users` + f.where() +
		` ORDER BY created_at DESC, id DESC` + f.page(opts.Limit, opts.Offset)

	rows, err := s.pool.Query(ctx, query, f.args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	result := make([]*user.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// ==================== Lead Store ====================

func (s *Store) CreateLead(ctx context.Context, l *lead.Lead) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO leadledger_leads
		(id, title, description, contact, category, status, submitted_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		l.ID.String(), l.Title, l.Description, l.Contact, string(l.Category), string(l.Status),
		l.SubmittedBy.String(), l.CreatedAt, l.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case isForeignKeyViolation(err):
		return leadledger.ErrUserNotFound
	case isUniqueViolation(err, ""):
		return leadledger.ErrAlreadyExists
	default:
		return fmt.Errorf("insert lead: %w", err)
	}
}

func (s *Store) GetLead(ctx context.Context, leadID id.LeadID) (*lead.Lead, error) {
	return getLead(ctx, s.pool, leadID)
}

func (s *Store) ListLeads(ctx context.Context, opts lead.ListOpts) ([]*lead.Lead, error) {
	var f filter
	if opts.Status != "" {
		f.add("l.status = $%d", string(opts.Status))
	}
	if !opts.SubmittedBy.IsNil() {
		f.add("l.submitted_by = $%d", opts.SubmittedBy.String())
	}
	if !opts.ExcludeSubmitter.IsNil() {
		f.add("l.submitted_by <> $%d", opts.ExcludeSubmitter.String())
	}
	query := `SELECT ` + leadColumns + ` FROM ` + leadFrom + f.where() +
		` ORDER BY l.created_at DESC, l.id DESC` + f.page(opts.Limit, opts.Offset)

	rows, err := s.pool.Query(ctx, query, f.args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	result := make([]*lead.Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

func (s *Store) TransitionLead(ctx context.Context, leadID id.LeadID, to lead.Status, at time.Time) (*lead.Lead, error) {
	var updated *lead.Lead
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var from string
		err := tx.QueryRow(ctx, `SELECT status FROM leadledger_leads WHERE id = $1 FOR UPDATE`,
			leadID.String()).Scan(&from)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return leadledger.ErrLeadNotFound
			}
			return fmt.Errorf("lock lead: %w", err)
		}
		if !lead.CanTransition(lead.Status(from), to) {
			return fmt.Errorf("%w: %s to %s", leadledger.ErrInvalidTransition, from, to)
		}
		if _, err := tx.Exec(ctx, `UPDATE leadledger_leads SET status = $2, updated_at = $3 WHERE id = $1`,
			leadID.String(), string(to), at); err != nil {
			return fmt.Errorf("update lead status: %w", err)
		}
		updated, err = getLead(ctx, tx, leadID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ==================== View Store ====================

func (s *Store) HasViewed(ctx context.Context, leadID id.LeadID, viewer id.UserID) (bool, error) {
	return hasViewed(ctx, s.pool, leadID, viewer)
}

func (s *Store) ListViewsByUser(ctx context.Context, viewer id.UserID) ([]*leadview.View, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+viewColumns+` FROM leadledger_lead_views
		WHERE viewed_by = $1 ORDER BY created_at DESC, id DESC`, viewer.String())
	if err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}
	defer rows.Close()

	result := make([]*leadview.View, 0)
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

// ==================== Credit Store ====================

// ChargeView locks the viewer row, so concurrent charges for one viewer
// serialize and the duplicate check below cannot race.
func (s *Store) ChargeView(ctx context.Context, view *leadview.View, txn *credit.Transaction) (int64, error) {
	var balance int64
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT credits FROM leadledger_users WHERE id = $1 FOR UPDATE`,
			view.ViewedBy.String()).Scan(&balance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return leadledger.ErrUserNotFound
			}
			return fmt.Errorf("lock viewer: %w", err)
		}

		seen, err := hasViewed(ctx, tx, view.LeadID, view.ViewedBy)
		if err != nil {
			return err
		}
		if seen {
			return leadledger.ErrAlreadyViewed
		}
		cost := -txn.Amount
		if balance < cost {
			return leadledger.ErrInsufficientCredits
		}

		if _, err := tx.Exec(ctx, `INSERT INTO leadledger_lead_views (`+viewColumns+`) VALUES ($1, $2, $3, $4)`,
			view.ID.String(), view.LeadID.String(), view.ViewedBy.String(), view.CreatedAt); err != nil {
			if isUniqueViolation(err, "idx_leadledger_lead_views_pair") {
				return leadledger.ErrAlreadyViewed
			}
			if isForeignKeyViolation(err) {
				return leadledger.ErrLeadNotFound
			}
			return fmt.Errorf("insert view: %w", err)
		}
		if err := tx.QueryRow(ctx, `UPDATE leadledger_users SET credits = credits - $2, updated_at = $3
			WHERE id = $1 RETURNING credits`, view.ViewedBy.String(), cost, txn.CreatedAt).Scan(&balance); err != nil {
			return fmt.Errorf("debit viewer: %w", err)
		}
		if _, err := tx.Exec(ctx, insertTransaction, toTransactionArgs(txn)...); err != nil {
			return fmt.Errorf("insert spend: %w", err)
		}
		return nil
	})
	return balance, err
}

func (s *Store) AdjustCredits(ctx context.Context, userID id.UserID, txn *credit.Transaction, fn credit.AdjustFunc) (*user.User, error) {
	var u *user.User
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+userColumns+` FROM leadledger_users WHERE id = $1 FOR UPDATE`, userID.String())
		var err error
		u, err = scanUser(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return leadledger.ErrUserNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}

		adj, err := fn(u.Credits)
		if err != nil {
			return err
		}
		txn.UserID = userID
		txn.Amount = adj.Amount
		txn.Type = adj.Type
		txn.Reason = adj.Reason

		if _, err := tx.Exec(ctx, `UPDATE leadledger_users SET credits = $2, updated_at = $3 WHERE id = $1`,
			userID.String(), adj.Balance, txn.CreatedAt); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		if _, err := tx.Exec(ctx, insertTransaction, toTransactionArgs(txn)...); err != nil {
			return fmt.Errorf("insert adjustment: %w", err)
		}
		u.Credits = adj.Balance
		u.Touch(txn.CreatedAt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) ListTransactions(ctx context.Context, opts credit.ListOpts) ([]*credit.Entry, error) {
	var f filter
	if !opts.UserID.IsNil() {
		f.add("t.user_id = $%d", opts.UserID.String())
	}
	if opts.Type != "" {
		f.add("t.type = $%d", string(opts.Type))
	}
	query := `SELECT ` + entryColumns + ` FROM ` + entryFrom + f.where() +
		` ORDER BY t.created_at DESC, t.seq DESC` + f.page(opts.Limit, opts.Offset)

	rows, err := s.pool.Query(ctx, query, f.args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	result := make([]*credit.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) SumTransactions(ctx context.Context, userID id.UserID) (int64, error) {
	var sum int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM leadledger_transactions WHERE user_id = $1`,
		userID.String()).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum transactions: %w", err)
	}
	return sum, nil
}

// ==================== Helpers ====================

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getLead(ctx context.Context, q querier, leadID id.LeadID) (*lead.Lead, error) {
	row := q.QueryRow(ctx, `SELECT `+leadColumns+` FROM `+leadFrom+` WHERE l.id = $1`, leadID.String())
	l, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, leadledger.ErrLeadNotFound
		}
		return nil, fmt.Errorf("query lead: %w", err)
	}
	return l, nil
}

func hasViewed(ctx context.Context, q querier, leadID id.LeadID, viewer id.UserID) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM leadledger_lead_views WHERE lead_id = $1 AND viewed_by = $2)`,
		leadID.String(), viewer.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check view: %w", err)
	}
	return exists, nil
}

// inTx runs fn in a transaction. Errors from fn pass through untouched;
// begin and commit failures are tagged with ErrTransactionFailed.
func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	var fnErr error
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		fnErr = fn(tx)
		return fnErr
	})
	if err != nil && fnErr == nil {
		return fmt.Errorf("%w: %w", leadledger.ErrTransactionFailed, err)
	}
	return err
}

// filter accumulates WHERE clauses with positional arguments.
type filter struct {
	clauses []string
	args    []any
}

// add appends a clause; expr holds one %d for the argument position.
func (f *filter) add(expr string, arg any) {
	f.args = append(f.args, arg)
	f.clauses = append(f.clauses, fmt.Sprintf(expr, len(f.args)))
}

func (f *filter) where() string {
	if len(f.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.clauses, " AND ")
}

func (f *filter) page(limit, offset int) string {
	var b strings.Builder
	if limit > 0 {
		f.args = append(f.args, limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(f.args))
	}
	if offset > 0 {
		f.args = append(f.args, offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(f.args))
	}
	return b.String()
}

// isUniqueViolation reports a 23505 error, optionally on a named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
