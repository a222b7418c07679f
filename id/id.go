// Package id defines the TypeID identifiers used by every marketplace entity.
//
// An ID renders as "prefix_suffix" where the prefix names the entity
// (user, lead, lview, txn) and the suffix is a UUIDv7, so IDs sort by
// creation time. Only the four marketplace prefixes parse successfully.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in an ID.
type Prefix string

const (
	PrefixUser        Prefix = "user"  // Account
	PrefixLead        Prefix = "lead"  // Submitted lead
	PrefixLeadView    Prefix = "lview" // Paid or free unlock record
	PrefixTransaction Prefix = "txn"   // Credit ledger entry
)

// Known reports whether p is one of the marketplace prefixes.
func (p Prefix) Known() bool {
	switch p {
	case PrefixUser, PrefixLead, PrefixLeadView, PrefixTransaction:
		return true
	}
	return false
}

// ID is a prefix-qualified identifier. The zero value is Nil and
// serializes as an empty string, or NULL in SQL.
//
//nolint:recvcheck // UnmarshalText and Scan need pointer receivers.
type ID struct {
	tid typeid.TypeID
	set bool
}

// Nil is the zero ID. Transactions without an acting admin carry Nil.
var Nil ID

// UserID, LeadID, LeadViewID and TransactionID document which prefix a
// field is expected to hold.
type (
	UserID        = ID
	LeadID        = ID
	LeadViewID    = ID
	TransactionID = ID
)

func generate(p Prefix) ID {
	tid, err := typeid.Generate(string(p))
	if err != nil {
		panic(fmt.Sprintf("id: generate %q: %v", p, err))
	}
	return ID{tid: tid, set: true}
}

// NewUserID returns a fresh user ID.
func NewUserID() ID { return generate(PrefixUser) }

// NewLeadID returns a fresh lead ID.
func NewLeadID() ID { return generate(PrefixLead) }

// NewLeadViewID returns a fresh lead view ID.
func NewLeadViewID() ID { return generate(PrefixLeadView) }

// NewTransactionID returns a fresh credit transaction ID.
func NewTransactionID() ID { return generate(PrefixTransaction) }

// Parse parses any marketplace ID such as "lead_01h2xcejqtf2nbrexx3vqjhp41".
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse: empty string")
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	if p := Prefix(tid.Prefix()); !p.Known() {
		return Nil, fmt.Errorf("id: parse %q: unknown prefix %q", s, p)
	}
	return ID{tid: tid, set: true}, nil
}

func parseAs(s string, want Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if got := parsed.Prefix(); got != want {
		return Nil, fmt.Errorf("id: %q is a %s id, want %s", s, got, want)
	}
	return parsed, nil
}

// ParseUserID parses s and requires the "user" prefix.
func ParseUserID(s string) (ID, error) { return parseAs(s, PrefixUser) }

// ParseLeadID parses s and requires the "lead" prefix.
func ParseLeadID(s string) (ID, error) { return parseAs(s, PrefixLead) }

// ParseLeadViewID parses s and requires the "lview" prefix.
func ParseLeadViewID(s string) (ID, error) { return parseAs(s, PrefixLeadView) }

// ParseTransactionID parses s and requires the "txn" prefix.
func ParseTransactionID(s string) (ID, error) { return parseAs(s, PrefixTransaction) }

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.set {
		return ""
	}
	return i.tid.String()
}

// Prefix returns the entity prefix, or "" for Nil.
func (i ID) Prefix() Prefix {
	if !i.set {
		return ""
	}
	return Prefix(i.tid.Prefix())
}

// IsNil reports whether i is the zero ID.
func (i ID) IsNil() bool { return !i.set }

// Ptr returns nil for Nil and a pointer to a copy otherwise, so optional
// references such as a transaction's admin serialize as null.
func (i ID) Ptr() *ID {
	if !i.set {
		return nil
	}
	return &i
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input yields Nil.
func (i *ID) UnmarshalText(data []byte) error {
	return i.assign(string(data))
}

// Value implements driver.Valuer. Nil is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.set {
		return nil, nil //nolint:nilnil // NULL
	}
	return i.tid.String(), nil
}

// Scan implements sql.Scanner for TEXT columns.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.assign(v)
	case []byte:
		return i.assign(string(v))
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}

func (i *ID) assign(s string) error {
	if s == "" {
		*i = Nil
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
