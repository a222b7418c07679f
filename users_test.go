package leadledger_test

import (
	"errors"
	"testing"

	"github.com/xraph/leadledger"
	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/user"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	f := newFixture(t)

	u, err := f.l.Register(f.ctx, leadledger.AccountInput{Name: " Ann ", Email: "Ann@Example.com", Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}
	if u.Role != user.RoleUser || u.Credits != 0 || u.Email != "ann@example.com" || u.Name != "Ann" {
		t.Errorf("unexpected user %+v", u)
	}

	if _, err := f.l.Register(f.ctx, leadledger.AccountInput{Name: "Ann", Email: "ann@example.com", Password: "secret1"}); !errors.Is(err, leadledger.ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}

	got, err := f.l.Authenticate(f.ctx, leadledger.Credentials{Email: "ANN@example.com", Password: "secret1"})
	if err != nil || got.ID != u.ID {
		t.Fatalf("Authenticate: %+v, %v", got, err)
	}
	if _, err := f.l.Authenticate(f.ctx, leadledger.Credentials{Email: "ann@example.com", Password: "wrongpw"}); !errors.Is(err, leadledger.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := f.l.Authenticate(f.ctx, leadledger.Credentials{Email: "nobody@example.com", Password: "secret1"}); !errors.Is(err, leadledger.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.l.Register(f.ctx, leadledger.AccountInput{Name: "", Email: "not-an-email", Password: "123"})
	var multi *leadledger.ViolationsError
	if !errors.As(err, &multi) {
		t.Fatalf("expected ViolationsError, got %v", err)
	}
	fields := multi.Fields()
	for _, field := range []string{"name", "email", "password"} {
		if fields[field] == "" {
			t.Errorf("missing violation for %s in %v", field, fields)
		}
	}
	if !errors.Is(err, leadledger.ErrInvalidInput) {
		t.Error("violations should match ErrInvalidInput")
	}
}

func TestSignupCreditsAreGranted(t *testing.T) {
	f := newFixture(t, leadledger.WithSignupCredits(5))
	u := f.member("gus", 0)
	if u.Credits != 5 {
		t.Errorf("credits = %d, want 5", u.Credits)
	}
	entries := f.transactions(u)
	if len(entries) != 1 || entries[0].Type != credit.TypeAdd || entries[0].AdminID != nil {
		t.Errorf("grant entries = %+v", entries)
	}
	f.assertReconciled(u)
}

func TestSeedSuperadminIsIdempotent(t *testing.T) {
	f := newFixture(t)
	if f.super.Role != user.RoleSuperadmin || f.super.Credits != leadledger.DefaultSuperadminCredits {
		t.Fatalf("seeded %+v", f.super)
	}

	again, created, err := f.l.SeedSuperadmin(f.ctx, "ROOT@example.com", "otherpass")
	if err != nil || created || again.ID != f.super.ID {
		t.Fatalf("second seed: %+v created=%v err=%v", again, created, err)
	}
	f.assertReconciled(f.super)
}

func TestCreateAdmin(t *testing.T) {
	f := newFixture(t)
	member := f.member("mia", 0)

	if _, err := f.l.CreateAdmin(f.ctx, member, leadledger.AccountInput{Name: "X", Email: "x@example.com", Password: "xxxxxx"}); !errors.Is(err, leadledger.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}

	admin, err := f.l.CreateAdmin(f.ctx, f.super, leadledger.AccountInput{Name: "Ada", Email: "ada@example.com", Password: "adminpass"})
	if err != nil {
		t.Fatal(err)
	}
	if admin.Role != user.RoleAdmin || admin.Credits != leadledger.DefaultAdminCredits {
		t.Errorf("admin = %+v", admin)
	}
	grant := f.transactions(admin)[0]
	if grant.AdminID == nil || *grant.AdminID != f.super.ID {
		t.Errorf("grant should name the creating superadmin: %+v", grant.Transaction)
	}
	f.assertReconciled(admin)

	users, err := f.l.ListUsers(f.ctx, f.super, user.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 3 || users[0].ID != admin.ID {
		t.Errorf("ListUsers should be newest first, got %d users", len(users))
	}
	if _, err := f.l.ListUsers(f.ctx, admin, user.ListOpts{}); !errors.Is(err, leadledger.ErrForbidden) {
		t.Errorf("admin listing users: expected ErrForbidden, got %v", err)
	}
}
