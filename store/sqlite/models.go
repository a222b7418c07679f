package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/lead"
	"github.com/xraph/leadledger/leadview"
	"github.com/xraph/leadledger/types"
	"github.com/xraph/leadledger/user"
)

// Timestamps are stored as unix nanoseconds.

func toNanos(t time.Time) int64 { return t.UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

// ==================== User models ====================

type userModel struct {
	ID           string `db:"id"`
	Name         string `db:"name"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	Role         string `db:"role"`
	Credits      int64  `db:"credits"`
	CreatedAt    int64  `db:"created_at"`
	UpdatedAt    int64  `db:"updated_at"`
}

func toUserModel(u *user.User) *userModel {
	return &userModel{
		ID:           u.ID.String(),
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Credits:      u.Credits,
		CreatedAt:    toNanos(u.CreatedAt),
		UpdatedAt:    toNanos(u.UpdatedAt),
	}
}

func fromUserModel(m *userModel) (*user.User, error) {
	userID, err := id.ParseUserID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse user id %q: %w", m.ID, err)
	}
	return &user.User{
		Entity:       types.Entity{CreatedAt: fromNanos(m.CreatedAt), UpdatedAt: fromNanos(m.UpdatedAt)},
		ID:           userID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         user.Role(m.Role),
		Credits:      m.Credits,
	}, nil
}

// ==================== Lead models ====================

type leadModel struct {
	ID             string         `db:"id"`
	Title          string         `db:"title"`
	Description    string         `db:"description"`
	Contact        string         `db:"contact"`
	Category       string         `db:"category"`
	Status         string         `db:"status"`
	SubmittedBy    string         `db:"submitted_by"`
	CreatedAt      int64          `db:"created_at"`
	UpdatedAt      int64          `db:"updated_at"`
	SubmitterName  sql.NullString `db:"submitter_name"`
	SubmitterEmail sql.NullString `db:"submitter_email"`
}

const selectLead = `SELECT l.id, l.title, l.description, l.contact, l.category, l.status,
	l.submitted_by, l.created_at, l.updated_at, u.name AS submitter_name, u.email AS submitter_email
	FROM leadledger_leads l LEFT JOIN leadledger_users u ON u.id = l.submitted_by`

func toLeadModel(l *lead.Lead) *leadModel {
	return &leadModel{
		ID:          l.ID.String(),
		Title:       l.Title,
		Description: l.Description,
		Contact:     l.Contact,
		Category:    string(l.Category),
		Status:      string(l.Status),
		SubmittedBy: l.SubmittedBy.String(),
		CreatedAt:   toNanos(l.CreatedAt),
		UpdatedAt:   toNanos(l.UpdatedAt),
	}
}

func fromLeadModel(m *leadModel) (*lead.Lead, error) {
	leadID, err := id.ParseLeadID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse lead id %q: %w", m.ID, err)
	}
	owner, err := id.ParseUserID(m.SubmittedBy)
	if err != nil {
		return nil, fmt.Errorf("parse submitter id %q: %w", m.SubmittedBy, err)
	}
	l := &lead.Lead{
		Entity:      types.Entity{CreatedAt: fromNanos(m.CreatedAt), UpdatedAt: fromNanos(m.UpdatedAt)},
		ID:          leadID,
		Title:       m.Title,
		Description: m.Description,
		Contact:     m.Contact,
		Category:    lead.Category(m.Category),
		Status:      lead.Status(m.Status),
		SubmittedBy: owner,
	}
	if m.SubmitterEmail.Valid {
		l.Submitter = &user.Ref{ID: owner, Name: m.SubmitterName.String, Email: m.SubmitterEmail.String}
	}
	return l, nil
}

// ==================== View models ====================

type viewModel struct {
	ID        string `db:"id"`
	LeadID    string `db:"lead_id"`
	ViewedBy  string `db:"viewed_by"`
	CreatedAt int64  `db:"created_at"`
}

func toViewModel(v *leadview.View) *viewModel {
	return &viewModel{
		ID:        v.ID.String(),
		LeadID:    v.LeadID.String(),
		ViewedBy:  v.ViewedBy.String(),
		CreatedAt: toNanos(v.CreatedAt),
	}
}

func fromViewModel(m *viewModel) (*leadview.View, error) {
	viewID, err := id.ParseLeadViewID(m.ID)
	if err != nil {
		return nil, err
	}
	leadID, err := id.ParseLeadID(m.LeadID)
	if err != nil {
		return nil, err
	}
	viewer, err := id.ParseUserID(m.ViewedBy)
	if err != nil {
		return nil, err
	}
	return &leadview.View{ID: viewID, LeadID: leadID, ViewedBy: viewer, CreatedAt: fromNanos(m.CreatedAt)}, nil
}

// ==================== Transaction models ====================

type transactionModel struct {
	ID         string         `db:"id"`
	UserID     string         `db:"user_id"`
	Amount     int64          `db:"amount"`
	Type       string         `db:"type"`
	Reason     string         `db:"reason"`
	AdminID    sql.NullString `db:"admin_id"`
	CreatedAt  int64          `db:"created_at"`
	UserName   sql.NullString `db:"user_name"`
	UserEmail  sql.NullString `db:"user_email"`
	AdminName  sql.NullString `db:"admin_name"`
	AdminEmail sql.NullString `db:"admin_email"`
}

const selectEntry = `SELECT t.id, t.user_id, t.amount, t.type, t.reason, t.admin_id, t.created_at,
	u.name AS user_name, u.email AS user_email, a.name AS admin_name, a.email AS admin_email
	FROM leadledger_transactions t
	LEFT JOIN leadledger_users u ON u.id = t.user_id
	LEFT JOIN leadledger_users a ON a.id = t.admin_id`

const insertTransaction = `INSERT INTO leadledger_transactions
	(id, user_id, amount, type, reason, admin_id, created_at)
	VALUES (:id, :user_id, :amount, :type, :reason, :admin_id, :created_at)`

func toTransactionModel(t *credit.Transaction) *transactionModel {
	m := &transactionModel{
		ID:        t.ID.String(),
		UserID:    t.UserID.String(),
		Amount:    t.Amount,
		Type:      string(t.Type),
		Reason:    t.Reason,
		CreatedAt: toNanos(t.CreatedAt),
	}
	if t.AdminID != nil {
		m.AdminID = sql.NullString{String: t.AdminID.String(), Valid: true}
	}
	return m
}

func fromTransactionModel(m *transactionModel) (*credit.Entry, error) {
	txnID, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse transaction id %q: %w", m.ID, err)
	}
	subject, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user id %q: %w", m.UserID, err)
	}
	t := &credit.Transaction{
		ID:        txnID,
		UserID:    subject,
		Amount:    m.Amount,
		Type:      credit.Type(m.Type),
		Reason:    m.Reason,
		CreatedAt: fromNanos(m.CreatedAt),
	}

	var admin *user.Ref
	if m.AdminID.Valid {
		adminID, err := id.ParseUserID(m.AdminID.String)
		if err != nil {
			return nil, fmt.Errorf("parse admin id %q: %w", m.AdminID.String, err)
		}
		t.AdminID = &adminID
		admin = &user.Ref{ID: adminID, Name: m.AdminName.String, Email: m.AdminEmail.String}
	}

	var ref *user.Ref
	if m.UserEmail.Valid {
		ref = &user.Ref{ID: subject, Name: m.UserName.String, Email: m.UserEmail.String}
	}
	return credit.NewEntry(t, ref, admin), nil
}
