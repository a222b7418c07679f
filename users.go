package leadledger

import (
	"context"
	"errors"

	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/policy"
	"github.com/xraph/leadledger/types"
	"github.com/xraph/leadledger/user"
)

// ──────────────────────────────────────────────────
// Accounts
// ──────────────────────────────────────────────────

// Register creates a self-service account with role user. Client-supplied
// roles and balances are not accepted.
func (l *Ledger) Register(ctx context.Context, in AccountInput) (*user.User, error) {
	return l.createAccount(ctx, in, user.RoleUser, l.signupCredits, nil)
}

// CreateAdmin creates an admin account on behalf of a superadmin.
func (l *Ledger) CreateAdmin(ctx context.Context, actor *user.User, in AccountInput) (*user.User, error) {
	if err := l.gate.Authorize(ctx, actor, policy.ActionCreate, policy.ResourceUser, nil); err != nil {
		return nil, err
	}
	return l.createAccount(ctx, in, user.RoleAdmin, l.adminCredits, actor.ID.Ptr())
}

// SeedSuperadmin creates the superadmin account if no user holds email.
// It reports whether an account was created.
func (l *Ledger) SeedSuperadmin(ctx context.Context, email, password string) (*user.User, bool, error) {
	existing, err := l.store.GetUserByEmail(ctx, user.NormalizeEmail(email))
	if err == nil {
		return existing, false, nil
	}
	if !IsNotFound(err) {
		return nil, false, err
	}

	u, err := l.createAccount(ctx, AccountInput{
		Name:     "Superadmin",
		Email:    email,
		Password: password,
	}, user.RoleSuperadmin, l.superadminCredits, nil)
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

func (l *Ledger) createAccount(ctx context.Context, in AccountInput, role user.Role, credits int64, grantedBy *id.UserID) (*user.User, error) {
	in = normalizeAccount(in)
	if err := Validate(in); err != nil {
		return nil, err
	}

	if _, err := l.store.GetUserByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !IsNotFound(err) {
		return nil, err
	}

	hash, err := user.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := l.now()
	u := &user.User{
		Entity:       types.NewEntity(now),
		ID:           id.NewUserID(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		Credits:      credits,
	}

	var grant *credit.Transaction
	if credits != 0 {
		grant = &credit.Transaction{
			ID:        id.NewTransactionID(),
			UserID:    u.ID,
			Amount:    credits,
			Type:      credit.TypeAdd,
			Reason:    credit.GrantReason(role),
			AdminID:   grantedBy,
			CreatedAt: now,
		}
	}

	if err := l.store.CreateUser(ctx, u, grant); err != nil {
		return nil, err
	}

	l.logger.Info("user created",
		"user_id", u.ID.String(),
		"role", u.Role,
		"credits", u.Credits,
	)
	l.plugins.EmitUserCreated(ctx, u)
	return u, nil
}

// Authenticate checks credentials and returns the account.
func (l *Ledger) Authenticate(ctx context.Context, in Credentials) (*user.User, error) {
	in.Email = user.NormalizeEmail(in.Email)
	if err := Validate(in); err != nil {
		return nil, err
	}

	u, err := l.store.GetUserByEmail(ctx, in.Email)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.CheckPassword(u.PasswordHash, in.Password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// GetUser retrieves a user by ID with its current balance.
func (l *Ledger) GetUser(ctx context.Context, userID id.UserID) (*user.User, error) {
	return l.store.GetUser(ctx, userID)
}

// ListUsers lists all accounts, newest first. Superadmin only.
func (l *Ledger) ListUsers(ctx context.Context, actor *user.User, opts user.ListOpts) ([]*user.User, error) {
	if err := l.gate.Authorize(ctx, actor, policy.ActionList, policy.ResourceUser, nil); err != nil {
		return nil, err
	}
	return l.store.ListUsers(ctx, opts)
}

// refresh reloads u so decisions see the stored balance.
func (l *Ledger) refresh(ctx context.Context, u *user.User) (*user.User, error) {
	if u == nil {
		return nil, ErrUnauthorized
	}
	fresh, err := l.store.GetUser(ctx, u.ID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return fresh, nil
}
