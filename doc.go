// Package leadledger is a credit-gated lead marketplace engine.
//
// Users submit sales leads, staff moderate them, and reading an approved
// lead costs credits unless the reader owns it or has paid for it before.
// The engine is a library: import it, hand it a store, and put any transport
// in front of it. It provides:
//
//   - An access decision that charges at most once per (user, lead) pair,
//     even under concurrent duplicate requests
//   - An append-only credit log that stays reconciled with every balance
//   - Administrative credit adjustment (add, remove, set)
//   - A pending → approved | rejected moderation state machine
//   - Role gates for user, admin and superadmin
//   - Stores for memory, PostgreSQL, SQLite and MongoDB
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/leadledger"
//	    "github.com/xraph/leadledger/store/postgres"
//	)
//
//	store, err := postgres.Open(ctx, databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	l := leadledger.New(store)
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Reading a lead
//
//	res, err := l.ViewLead(ctx, viewer, leadID)
//	switch {
//	case errors.Is(err, leadledger.ErrNotApproved):
//	case errors.Is(err, leadledger.ErrInsufficientCredits):
//	case err == nil:
//	    fmt.Println(res.Cost, res.Balance)
//	}
//
// The decision runs in a fixed order. The owner always reads for free, in
// any moderation status. Other viewers need an approved lead. A viewer who
// already paid reads for free. Anyone else pays, and the view record, the
// debit and the spend transaction are written as one unit by the store.
//
// # TypeID
//
// All entities use TypeIDs:
//
//	user_01h2xcejqtf2nbrexx3vqjhp41   // User
//	lead_01h2xcejqtf2nbrexx3vqjhp41   // Lead
//	lview_01h455vb4pex5vsknk084sn02q  // Lead view
//	txn_01h455vb4pex5vsknk084sn02q    // Credit transaction
package leadledger
