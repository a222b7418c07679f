package postgres

import (
	"fmt"
	"time"

	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/lead"
	"github.com/xraph/leadledger/leadview"
	"github.com/xraph/leadledger/types"
	"github.com/xraph/leadledger/user"
)

// scanner is satisfied by pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// ==================== User models ====================

const userColumns = `id, name, email, password_hash, role, credits, created_at, updated_at`

type userModel struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Credits      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func toUserModel(u *user.User) *userModel {
	return &userModel{
		ID:           u.ID.String(),
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Credits:      u.Credits,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func scanUser(row scanner) (*user.User, error) {
	var m userModel
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.PasswordHash, &m.Role, &m.Credits, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return fromUserModel(&m)
}

func fromUserModel(m *userModel) (*user.User, error) {
	userID, err := id.ParseUserID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse user id %q: %w", m.ID, err)
	}
	return &user.User{
		Entity:       types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:           userID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         user.Role(m.Role),
		Credits:      m.Credits,
	}, nil
}

// ==================== Lead models ====================

// leadColumns selects a lead joined with its submitter (alias u).
const leadColumns = `l.id, l.title, l.description, l.contact, l.category, l.status, l.submitted_by,
	l.created_at, l.updated_at, COALESCE(u.name, ''), COALESCE(u.email, '')`

const leadFrom = `leadledger_leads l LEFT JOIN leadledger_users u ON u.id = l.submitted_by`

type leadModel struct {
	ID             string
	Title          string
	Description    string
	Contact        string
	Category       string
	Status         string
	SubmittedBy    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	SubmitterName  string
	SubmitterEmail string
}

func scanLead(row scanner) (*lead.Lead, error) {
	var m leadModel
	err := row.Scan(&m.ID, &m.Title, &m.Description, &m.Contact, &m.Category, &m.Status, &m.SubmittedBy,
		&m.CreatedAt, &m.UpdatedAt, &m.SubmitterName, &m.SubmitterEmail)
	if err != nil {
		return nil, err
	}
	return fromLeadModel(&m)
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
		Entity:      types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:          leadID,
		Title:       m.Title,
		Description: m.Description,
		Contact:     m.Contact,
		Category:    lead.Category(m.Category),
		Status:      lead.Status(m.Status),
		SubmittedBy: owner,
	}
	if m.SubmitterEmail != "" {
		l.Submitter = &user.Ref{ID: owner, Name: m.SubmitterName, Email: m.SubmitterEmail}
	}
	return l, nil
}

// ==================== View models ====================

const viewColumns = `id, lead_id, viewed_by, created_at`

func scanView(row scanner) (*leadview.View, error) {
	var (
		rawID, rawLead, rawViewer string
		createdAt                 time.Time
	)
	if err := row.Scan(&rawID, &rawLead, &rawViewer, &createdAt); err != nil {
		return nil, err
	}
	viewID, err := id.ParseLeadViewID(rawID)
	if err != nil {
		return nil, err
	}
	leadID, err := id.ParseLeadID(rawLead)
	if err != nil {
		return nil, err
	}
	viewer, err := id.ParseUserID(rawViewer)
	if err != nil {
		return nil, err
	}
	return &leadview.View{ID: viewID, LeadID: leadID, ViewedBy: viewer, CreatedAt: createdAt.UTC()}, nil
}

// ==================== Transaction models ====================

// entryColumns selects a transaction joined with its subject (alias u) and
// optional admin (alias a).
const entryColumns = `t.id, t.user_id, t.amount, t.type, t.reason, t.admin_id, t.created_at,
	COALESCE(u.name, ''), COALESCE(u.email, ''), COALESCE(a.name, ''), COALESCE(a.email, '')`

const entryFrom = `leadledger_transactions t
	LEFT JOIN leadledger_users u ON u.id = t.user_id
	LEFT JOIN leadledger_users a ON a.id = t.admin_id`

type transactionModel struct {
	ID         string
	UserID     string
	Amount     int64
	Type       string
	Reason     string
	AdminID    *string
	CreatedAt  time.Time
	UserName   string
	UserEmail  string
	AdminName  string
	AdminEmail string
}

func toTransactionArgs(t *credit.Transaction) []any {
	var admin *string
	if t.AdminID != nil {
		s := t.AdminID.String()
		admin = &s
	}
	return []any{t.ID.String(), t.UserID.String(), t.Amount, string(t.Type), t.Reason, admin, t.CreatedAt}
}

const insertTransaction = `INSERT INTO leadledger_transactions
	(id, user_id, amount, type, reason, admin_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

func scanEntry(row scanner) (*credit.Entry, error) {
	var m transactionModel
	err := row.Scan(&m.ID, &m.UserID, &m.Amount, &m.Type, &m.Reason, &m.AdminID, &m.CreatedAt,
		&m.UserName, &m.UserEmail, &m.AdminName, &m.AdminEmail)
	if err != nil {
		return nil, err
	}
	return fromTransactionModel(&m)
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
		CreatedAt: m.CreatedAt.UTC(),
	}

	var admin *user.Ref
	if m.AdminID != nil {
		adminID, err := id.ParseUserID(*m.AdminID)
		if err != nil {
			return nil, fmt.Errorf("parse admin id %q: %w", *m.AdminID, err)
		}
		t.AdminID = &adminID
		admin = &user.Ref{ID: adminID, Name: m.AdminName, Email: m.AdminEmail}
	}

	var ref *user.Ref
	if m.UserEmail != "" {
		ref = &user.Ref{ID: subject, Name: m.UserName, Email: m.UserEmail}
	}
	return credit.NewEntry(t, ref, admin), nil
}
