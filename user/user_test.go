package user_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/user"
)

func TestRoleCapabilities(t *testing.T) {
	tests := []struct {
		role       user.Role
		valid      bool
		staff      bool
		superadmin bool
	}{
		{user.RoleUser, true, false, false},
		{user.RoleAdmin, true, true, false},
		{user.RoleSuperadmin, true, true, true},
		{user.Role("owner"), false, false, false},
		{user.Role(""), false, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := tt.role.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
			if got := tt.role.IsStaff(); got != tt.staff {
				t.Errorf("IsStaff() = %v, want %v", got, tt.staff)
			}
			if got := tt.role.IsSuperadmin(); got != tt.superadmin {
				t.Errorf("IsSuperadmin() = %v, want %v", got, tt.superadmin)
			}
		})
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := user.HashPassword("s3cret!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret!" {
		t.Fatal("hash must not equal the password")
	}
	if !user.CheckPassword(hash, "s3cret!") {
		t.Error("expected password to match")
	}
	if user.CheckPassword(hash, "wrong") {
		t.Error("expected mismatch for wrong password")
	}

	if _, err := user.HashPassword("123"); !errors.Is(err, user.ErrPasswordTooShort) {
		t.Errorf("expected ErrPasswordTooShort, got %v", err)
	}
}

func TestUserJSONHidesHash(t *testing.T) {
	u := &user.User{ID: id.NewUserID(), Name: "Ann", Email: "ann@example.com", PasswordHash: "secret-hash", Role: user.RoleUser, Credits: 3}
	data, err := json.Marshal(u)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "secret-hash") {
		t.Errorf("password hash leaked: %s", data)
	}
	if ref := u.Ref(); ref.Email != u.Email || ref.ID != u.ID {
		t.Errorf("unexpected ref %+v", ref)
	}
	var nilUser *user.User
	if nilUser.Ref() != nil {
		t.Error("nil user should have nil ref")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := user.NormalizeEmail("  Ann@Example.COM "); got != "ann@example.com" {
		t.Errorf("got %q", got)
	}
}
