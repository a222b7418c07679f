package mongo

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

// ==================== User models ====================

type userModel struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	Role         string    `bson:"role"`
	Credits      int64     `bson:"credits"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
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

type leadModel struct {
	ID          string    `bson:"_id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Contact     string    `bson:"contact"`
	Category    string    `bson:"category"`
	Status      string    `bson:"status"`
	SubmittedBy string    `bson:"submitted_by"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func toLeadModel(l *lead.Lead) *leadModel {
	return &leadModel{
		ID:          l.ID.String(),
		Title:       l.Title,
		Description: l.Description,
		Contact:     l.Contact,
		Category:    string(l.Category),
		Status:      string(l.Status),
		SubmittedBy: l.SubmittedBy.String(),
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
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
	return &lead.Lead{
		Entity:      types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:          leadID,
		Title:       m.Title,
		Description: m.Description,
		Contact:     m.Contact,
		Category:    lead.Category(m.Category),
		Status:      lead.Status(m.Status),
		SubmittedBy: owner,
	}, nil
}

// ==================== View models ====================

type viewModel struct {
	ID        string    `bson:"_id"`
	LeadID    string    `bson:"lead_id"`
	ViewedBy  string    `bson:"viewed_by"`
	CreatedAt time.Time `bson:"created_at"`
}

func toViewModel(v *leadview.View) *viewModel {
	return &viewModel{
		ID:        v.ID.String(),
		LeadID:    v.LeadID.String(),
		ViewedBy:  v.ViewedBy.String(),
		CreatedAt: v.CreatedAt,
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
	return &leadview.View{ID: viewID, LeadID: leadID, ViewedBy: viewer, CreatedAt: m.CreatedAt.UTC()}, nil
}

// ==================== Transaction models ====================

type transactionModel struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Amount    int64     `bson:"amount"`
	Type      string    `bson:"type"`
	Reason    string    `bson:"reason"`
	AdminID   *string   `bson:"admin_id,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func toTransactionModel(t *credit.Transaction) *transactionModel {
	m := &transactionModel{
		ID:        t.ID.String(),
		UserID:    t.UserID.String(),
		Amount:    t.Amount,
		Type:      string(t.Type),
		Reason:    t.Reason,
		CreatedAt: t.CreatedAt,
	}
	if t.AdminID != nil {
		s := t.AdminID.String()
		m.AdminID = &s
	}
	return m
}

func fromTransactionModel(m *transactionModel) (*credit.Transaction, error) {
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
	if m.AdminID != nil {
		adminID, err := id.ParseUserID(*m.AdminID)
		if err != nil {
			return nil, fmt.Errorf("parse admin id %q: %w", *m.AdminID, err)
		}
		t.AdminID = &adminID
	}
	return t, nil
}
