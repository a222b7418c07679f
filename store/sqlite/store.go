// Package sqlite implements store.Store on SQLite through sqlx and the
// pure-Go modernc driver. The pool is capped at one connection, so every
// transaction runs serially and the atomic primitives need no row locks.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

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

// Store implements store.Store using SQLite.
type Store struct {
	db *sqlx.DB
}

// New wraps an existing handle opened with the "sqlite" driver.
func New(db *sqlx.DB) *Store {
	db.SetMaxOpenConns(1)
	return &Store{db: db}
}

// Open opens path (a file name or ":memory:") with foreign keys enforced.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("leadledger/sqlite: open: %w", err)
	}
	s := New(db)
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("leadledger/sqlite: ping: %w", err)
	}
	return s, nil
}

// DB returns the underlying handle for direct access.
func (s *Store) DB() *sqlx.DB { return s.db }

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== User Store ====================

func (s *Store) CreateUser(ctx context.Context, u *user.User, grant *credit.Transaction) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `INSERT INTO leadledger_users
			(id, name, email, password_hash, role, credits, created_at, updated_at)
			VALUES (:id, :name, :email, :password_hash, :role, :credits, :created_at, :updated_at)`,
			toUserModel(u))
		switch {
		case err == nil:
		case hasCode(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE):
			return leadledger.ErrEmailTaken
		case hasCode(err, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY):
			return leadledger.ErrAlreadyExists
		default:
			return fmt.Errorf("insert user: %w", err)
		}
		if grant == nil {
			return nil
		}
		if _, err := tx.NamedExecContext(ctx, insertTransaction, toTransactionModel(grant)); err != nil {
			return fmt.Errorf("insert opening grant: %w", err)
		}
		return nil
	})
}

func (s *Store) GetUser(ctx context.Context, userID id.UserID) (*user.User, error) {
	return getUser(ctx, s.db, userID)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	var m userModel
	err := s.db.GetContext(ctx, &m, `SELECT * FROM leadledger_users WHERE email = ?`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, leadledger.ErrUserNotFound
		}
		return nil, fmt.Errorf("query user by email: %w", err)
	}
	return fromUserModel(&m)
}

func (s *Store) ListUsers(ctx context.Context, opts user.ListOpts) ([]*user.User, error) {
	var f filter
	if opts.Role != "" {
		f.add("role = ?", string(opts.Role))
	}
	query := `SELECT * FROM leadledger_users` + f.where() +
		` ORDER BY created_at DESC, id DESC` + f.page(opts.Limit, opts.Offset)

	var models []userModel
	if err := s.db.SelectContext(ctx, &models, query, f.args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	result := make([]*user.User, 0, len(models))
	for i := range models {
		u, err := fromUserModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, nil
}

// ==================== Lead Store ====================

func (s *Store) CreateLead(ctx context.Context, l *lead.Lead) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO leadledger_leads
		(id, title, description, contact, category, status, submitted_by, created_at, updated_at)
		VALUES (:id, :title, :description, :contact, :category, :status, :submitted_by, :created_at, :updated_at)`,
		toLeadModel(l))
	switch {
	case err == nil:
		return nil
	case hasCode(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY):
		return leadledger.ErrUserNotFound
	case hasCode(err, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY):
		return leadledger.ErrAlreadyExists
	default:
		return fmt.Errorf("insert lead: %w", err)
	}
}

func (s *Store) GetLead(ctx context.Context, leadID id.LeadID) (*lead.Lead, error) {
	return getLead(ctx, s.db, leadID)
}

func (s *Store) ListLeads(ctx context.Context, opts lead.ListOpts) ([]*lead.Lead, error) {
	var f filter
	if opts.Status != "" {
		f.add("l.status = ?", string(opts.Status))
	}
	if !opts.SubmittedBy.IsNil() {
		f.add("l.submitted_by = ?", opts.SubmittedBy.String())
	}
	if !opts.ExcludeSubmitter.IsNil() {
		f.add("l.submitted_by <> ?", opts.ExcludeSubmitter.String())
	}
	query := selectLead + f.where() + ` ORDER BY l.created_at DESC, l.id DESC` + f.page(opts.Limit, opts.Offset)

	var models []leadModel
	if err := s.db.SelectContext(ctx, &models, query, f.args...); err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	result := make([]*lead.Lead, 0, len(models))
	for i := range models {
		l, err := fromLeadModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, nil
}

func (s *Store) TransitionLead(ctx context.Context, leadID id.LeadID, to lead.Status, at time.Time) (*lead.Lead, error) {
	var updated *lead.Lead
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var from string
		err := tx.GetContext(ctx, &from, `SELECT status FROM leadledger_leads WHERE id = ?`, leadID.String())
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return leadledger.ErrLeadNotFound
			}
			return fmt.Errorf("read lead status: %w", err)
		}
		if !lead.CanTransition(lead.Status(from), to) {
			return fmt.Errorf("%w: %s to %s", leadledger.ErrInvalidTransition, from, to)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE leadledger_leads SET status = ?, updated_at = ? WHERE id = ?`,
			string(to), toNanos(at), leadID.String()); err != nil {
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
	return hasViewed(ctx, s.db, leadID, viewer)
}

func (s *Store) ListViewsByUser(ctx context.Context, viewer id.UserID) ([]*leadview.View, error) {
	var models []viewModel
	err := s.db.SelectContext(ctx, &models, `SELECT * FROM leadledger_lead_views
		WHERE viewed_by = ? ORDER BY created_at DESC, id DESC`, viewer.String())
	if err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}
	result := make([]*leadview.View, 0, len(models))
	for i := range models {
		v, err := fromViewModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

// ==================== Credit Store ====================

func (s *Store) ChargeView(ctx context.Context, view *leadview.View, txn *credit.Transaction) (int64, error) {
	var balance int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		u, err := getUser(ctx, tx, view.ViewedBy)
		if err != nil {
			return err
		}
		balance = u.Credits

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

		if _, err := tx.NamedExecContext(ctx, `INSERT INTO leadledger_lead_views (id, lead_id, viewed_by, created_at)
			VALUES (:id, :lead_id, :viewed_by, :created_at)`, toViewModel(view)); err != nil {
			if hasCode(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE) {
				return leadledger.ErrAlreadyViewed
			}
			if hasCode(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY) {
				return leadledger.ErrLeadNotFound
			}
			return fmt.Errorf("insert view: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE leadledger_users SET credits = credits - ?, updated_at = ? WHERE id = ?`,
			cost, toNanos(txn.CreatedAt), view.ViewedBy.String()); err != nil {
			return fmt.Errorf("debit viewer: %w", err)
		}
		if _, err := tx.NamedExecContext(ctx, insertTransaction, toTransactionModel(txn)); err != nil {
			return fmt.Errorf("insert spend: %w", err)
		}
		balance -= cost
		return nil
	})
	return balance, err
}

func (s *Store) AdjustCredits(ctx context.Context, userID id.UserID, txn *credit.Transaction, fn credit.AdjustFunc) (*user.User, error) {
	var u *user.User
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if u, err = getUser(ctx, tx, userID); err != nil {
			return err
		}
		adj, err := fn(u.Credits)
		if err != nil {
			return err
		}
		txn.UserID = userID
		txn.Amount = adj.Amount
		txn.Type = adj.Type
		txn.Reason = adj.Reason

		if _, err := tx.ExecContext(ctx, `UPDATE leadledger_users SET credits = ?, updated_at = ? WHERE id = ?`,
			adj.Balance, toNanos(txn.CreatedAt), userID.String()); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		if _, err := tx.NamedExecContext(ctx, insertTransaction, toTransactionModel(txn)); err != nil {
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
		f.add("t.user_id = ?", opts.UserID.String())
	}
	if opts.Type != "" {
		f.add("t.type = ?", string(opts.Type))
	}
	query := selectEntry + f.where() + ` ORDER BY t.created_at DESC, t.seq DESC` + f.page(opts.Limit, opts.Offset)

	var models []transactionModel
	if err := s.db.SelectContext(ctx, &models, query, f.args...); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	result := make([]*credit.Entry, 0, len(models))
	for i := range models {
		e, err := fromTransactionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, nil
}

func (s *Store) SumTransactions(ctx context.Context, userID id.UserID) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `SELECT COALESCE(SUM(amount), 0) FROM leadledger_transactions WHERE user_id = ?`,
		userID.String())
	if err != nil {
		return 0, fmt.Errorf("sum transactions: %w", err)
	}
	return sum, nil
}

// ==================== Helpers ====================

func getUser(ctx context.Context, q sqlx.QueryerContext, userID id.UserID) (*user.User, error) {
	var m userModel
	err := sqlx.GetContext(ctx, q, &m, `SELECT * FROM leadledger_users WHERE id = ?`, userID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, leadledger.ErrUserNotFound
		}
		return nil, fmt.Errorf("query user by id: %w", err)
	}
	return fromUserModel(&m)
}

func getLead(ctx context.Context, q sqlx.QueryerContext, leadID id.LeadID) (*lead.Lead, error) {
	var m leadModel
	err := sqlx.GetContext(ctx, q, &m, selectLead+` WHERE l.id = ?`, leadID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, leadledger.ErrLeadNotFound
		}
		return nil, fmt.Errorf("query lead: %w", err)
	}
	return fromLeadModel(&m)
}

func hasViewed(ctx context.Context, q sqlx.QueryerContext, leadID id.LeadID, viewer id.UserID) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, q, &exists, `SELECT EXISTS(SELECT 1 FROM leadledger_lead_views
		WHERE lead_id = ? AND viewed_by = ?)`, leadID.String(), viewer.String())
	if err != nil {
		return false, fmt.Errorf("check view: %w", err)
	}
	return exists, nil
}

// inTx runs fn in a transaction. Errors from fn pass through untouched;
// begin and commit failures are tagged with ErrTransactionFailed.
func (s *Store) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", leadledger.ErrTransactionFailed, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", leadledger.ErrTransactionFailed, err)
	}
	return nil
}

// filter accumulates WHERE clauses with positional arguments.
type filter struct {
	clauses []string
	args    []any
}

func (f *filter) add(clause string, arg any) {
	f.clauses = append(f.clauses, clause)
	f.args = append(f.args, arg)
}

func (f *filter) where() string {
	if len(f.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.clauses, " AND ")
}

// page appends LIMIT/OFFSET. SQLite requires a LIMIT before OFFSET, and -1
// means unbounded.
func (f *filter) page(limit, offset int) string {
	if limit <= 0 && offset <= 0 {
		return ""
	}
	if limit <= 0 {
		limit = -1
	}
	f.args = append(f.args, limit, offset)
	return " LIMIT ? OFFSET ?"
}

func hasCode(err error, code int) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == code
}
