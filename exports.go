package leadledger

import (
	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/lead"
	"github.com/xraph/leadledger/types"
	"github.com/xraph/leadledger/user"
)

// Re-export common types so callers don't have to import every package.

type (
	Entity      = types.Entity
	User        = user.User
	Role        = user.Role
	Lead        = lead.Lead
	LeadStatus  = lead.Status
	Transaction = credit.Transaction
	CreditEntry = credit.Entry
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
