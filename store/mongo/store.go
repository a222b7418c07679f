// Package mongo implements store.Store on MongoDB. The atomic primitives run
// in multi-document transactions, so the deployment must be a replica set
// or sharded cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/leadledger"
	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/lead"
	"github.com/xraph/leadledger/leadview"
	ledgerstore "github.com/xraph/leadledger/store"
	"github.com/xraph/leadledger/user"
)

// Collection name constants.
const (
	colUsers        = "leadledger_users"
	colLeads        = "leadledger_leads"
	colViews        = "leadledger_lead_views"
	colTransactions = "leadledger_transactions"
)

// Index names inspected when mapping duplicate key errors.
const (
	idxUserEmail = "leadledger_users_email"
	idxViewPair  = "leadledger_lead_views_pair"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using the official MongoDB driver.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New creates a store on database name of client.
func New(client *mongo.Client, name string) *Store {
	return &Store{client: client, db: client.Database(name)}
}

// Open connects to uri and verifies connectivity.
func Open(ctx context.Context, uri, name string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("leadledger/mongo: connect: %w", err)
	}
	s := New(client, name)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Ping(pingCtx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("leadledger/mongo: ping: %w", err)
	}
	return s, nil
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *mongo.Database { return s.db }

// Migrate creates indexes for all collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("%w: %s indexes: %w", leadledger.ErrMigrationFailed, col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// ==================== User Store ====================

func (s *Store) CreateUser(ctx context.Context, u *user.User, grant *credit.Transaction) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		if _, err := s.db.Collection(colUsers).InsertOne(ctx, toUserModel(u)); err != nil {
			if isDuplicateOn(err, idxUserEmail) {
				return leadledger.ErrEmailTaken
			}
			if mongo.IsDuplicateKeyError(err) {
				return leadledger.ErrAlreadyExists
			}
			return fmt.Errorf("insert user: %w", err)
		}
		if grant == nil {
			return nil
		}
		if _, err := s.db.Collection(colTransactions).InsertOne(ctx, toTransactionModel(grant)); err != nil {
			return fmt.Errorf("insert opening grant: %w", err)
		}
		return nil
	})
}

func (s *Store) GetUser(ctx context.Context, userID id.UserID) (*user.User, error) {
	return s.findUser(ctx, bson.M{"_id": userID.String()})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *Store) ListUsers(ctx context.Context, opts user.ListOpts) ([]*user.User, error) {
	filter := bson.M{}
	if opts.Role != "" {
		filter["role"] = string(opts.Role)
	}

	cursor, err := s.db.Collection(colUsers).Find(ctx, filter, findOpts(opts.Limit, opts.Offset))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var models []userModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
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
	if _, err := s.GetUser(ctx, l.SubmittedBy); err != nil {
		return err
	}
	if _, err := s.db.Collection(colLeads).InsertOne(ctx, toLeadModel(l)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return leadledger.ErrAlreadyExists
		}
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

func (s *Store) GetLead(ctx context.Context, leadID id.LeadID) (*lead.Lead, error) {
	var m leadModel
	err := s.db.Collection(colLeads).FindOne(ctx, bson.M{"_id": leadID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, leadledger.ErrLeadNotFound
		}
		return nil, fmt.Errorf("get lead: %w", err)
	}
	leads, err := s.joinLeads(ctx, []leadModel{m})
	if err != nil {
		return nil, err
	}
	return leads[0], nil
}

func (s *Store) ListLeads(ctx context.Context, opts lead.ListOpts) ([]*lead.Lead, error) {
	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	owner := bson.M{}
	if !opts.SubmittedBy.IsNil() {
		owner["$eq"] = opts.SubmittedBy.String()
	}
	if !opts.ExcludeSubmitter.IsNil() {
		owner["$ne"] = opts.ExcludeSubmitter.String()
	}
	if len(owner) > 0 {
		filter["submitted_by"] = owner
	}

	cursor, err := s.db.Collection(colLeads).Find(ctx, filter, findOpts(opts.Limit, opts.Offset))
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	var models []leadModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("decode leads: %w", err)
	}
	return s.joinLeads(ctx, models)
}

// TransitionLead applies the move with a single conditional update whose
// filter admits only the statuses CanTransition allows.
func (s *Store) TransitionLead(ctx context.Context, leadID id.LeadID, to lead.Status, at time.Time) (*lead.Lead, error) {
	from := make([]string, 0, len(lead.Statuses))
	for _, st := range lead.Statuses {
		if lead.CanTransition(st, to) {
			from = append(from, string(st))
		}
	}

	var m leadModel
	err := s.db.Collection(colLeads).FindOneAndUpdate(ctx,
		bson.M{"_id": leadID.String(), "status": bson.M{"$in": from}},
		bson.M{"$set": bson.M{"status": string(to), "updated_at": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err == nil {
		leads, err := s.joinLeads(ctx, []leadModel{m})
		if err != nil {
			return nil, err
		}
		return leads[0], nil
	}
	if !isNoDocuments(err) {
		return nil, fmt.Errorf("transition lead: %w", err)
	}

	current, err := s.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s to %s", leadledger.ErrInvalidTransition, current.Status, to)
}

// ==================== View Store ====================

func (s *Store) HasViewed(ctx context.Context, leadID id.LeadID, viewer id.UserID) (bool, error) {
	n, err := s.db.Collection(colViews).CountDocuments(ctx,
		bson.M{"lead_id": leadID.String(), "viewed_by": viewer.String()},
		options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check view: %w", err)
	}
	return n > 0, nil
}

func (s *Store) ListViewsByUser(ctx context.Context, viewer id.UserID) ([]*leadview.View, error) {
	cursor, err := s.db.Collection(colViews).Find(ctx, bson.M{"viewed_by": viewer.String()}, findOpts(0, 0))
	if err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}
	var models []viewModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("decode views: %w", err)
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

// ChargeView runs in a transaction. Concurrent charges for the same pair
// collide on the view index or on the user document; the driver retries the
// loser, which then observes the view and reports ErrAlreadyViewed.
func (s *Store) ChargeView(ctx context.Context, view *leadview.View, txn *credit.Transaction) (int64, error) {
	var balance int64
	err := s.inTx(ctx, func(ctx context.Context) error {
		u, err := s.GetUser(ctx, view.ViewedBy)
		if err != nil {
			return err
		}
		balance = u.Credits

		seen, err := s.HasViewed(ctx, view.LeadID, view.ViewedBy)
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

		if _, err := s.db.Collection(colViews).InsertOne(ctx, toViewModel(view)); err != nil {
			if isDuplicateOn(err, idxViewPair) {
				return leadledger.ErrAlreadyViewed
			}
			return fmt.Errorf("insert view: %w", err)
		}
		res, err := s.db.Collection(colUsers).UpdateOne(ctx,
			bson.M{"_id": view.ViewedBy.String(), "credits": bson.M{"$gte": cost}},
			bson.M{"$inc": bson.M{"credits": -cost}, "$set": bson.M{"updated_at": txn.CreatedAt}})
		if err != nil {
			return fmt.Errorf("debit viewer: %w", err)
		}
		if res.MatchedCount == 0 {
			return leadledger.ErrInsufficientCredits
		}
		if _, err := s.db.Collection(colTransactions).InsertOne(ctx, toTransactionModel(txn)); err != nil {
			return fmt.Errorf("insert spend: %w", err)
		}
		balance -= cost
		return nil
	})
	return balance, err
}

func (s *Store) AdjustCredits(ctx context.Context, userID id.UserID, txn *credit.Transaction, fn credit.AdjustFunc) (*user.User, error) {
	var u *user.User
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if u, err = s.GetUser(ctx, userID); err != nil {
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

		res, err := s.db.Collection(colUsers).UpdateOne(ctx,
			bson.M{"_id": userID.String(), "credits": u.Credits},
			bson.M{"$set": bson.M{"credits": adj.Balance, "updated_at": txn.CreatedAt}})
		if err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("%w: balance changed concurrently", leadledger.ErrTransactionFailed)
		}
		if _, err := s.db.Collection(colTransactions).InsertOne(ctx, toTransactionModel(txn)); err != nil {
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
	filter := bson.M{}
	if !opts.UserID.IsNil() {
		filter["user_id"] = opts.UserID.String()
	}
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}

	cursor, err := s.db.Collection(colTransactions).Find(ctx, filter, findOpts(opts.Limit, opts.Offset))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	var models []transactionModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}

	txns := make([]*credit.Transaction, 0, len(models))
	ids := make([]string, 0, 2*len(models))
	for i := range models {
		t, err := fromTransactionModel(&models[i])
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
		ids = append(ids, t.UserID.String())
		if t.AdminID != nil {
			ids = append(ids, t.AdminID.String())
		}
	}

	refs, err := s.refs(ctx, ids)
	if err != nil {
		return nil, err
	}
	result := make([]*credit.Entry, 0, len(txns))
	for _, t := range txns {
		var admin *user.Ref
		if t.AdminID != nil {
			admin = refs[t.AdminID.String()]
		}
		result = append(result, credit.NewEntry(t, refs[t.UserID.String()], admin))
	}
	return result, nil
}

func (s *Store) SumTransactions(ctx context.Context, userID id.UserID) (int64, error) {
	cursor, err := s.db.Collection(colTransactions).Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID.String()}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$amount"}}}},
	})
	if err != nil {
		return 0, fmt.Errorf("sum transactions: %w", err)
	}
	var rows []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("decode sum: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

// ==================== Helpers ====================

func (s *Store) findUser(ctx context.Context, filter bson.M) (*user.User, error) {
	var m userModel
	if err := s.db.Collection(colUsers).FindOne(ctx, filter).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, leadledger.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return fromUserModel(&m)
}

// joinLeads converts models and attaches submitter refs.
func (s *Store) joinLeads(ctx context.Context, models []leadModel) ([]*lead.Lead, error) {
	ids := make([]string, 0, len(models))
	for i := range models {
		ids = append(ids, models[i].SubmittedBy)
	}
	refs, err := s.refs(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]*lead.Lead, 0, len(models))
	for i := range models {
		l, err := fromLeadModel(&models[i])
		if err != nil {
			return nil, err
		}
		l.Submitter = refs[models[i].SubmittedBy]
		result = append(result, l)
	}
	return result, nil
}

// refs loads the public identity of each user in ids, keyed by id string.
func (s *Store) refs(ctx context.Context, ids []string) (map[string]*user.Ref, error) {
	refs := make(map[string]*user.Ref, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}
	cursor, err := s.db.Collection(colUsers).Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"name": 1, "email": 1}))
	if err != nil {
		return nil, fmt.Errorf("load user refs: %w", err)
	}
	var models []userModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("decode user refs: %w", err)
	}
	for i := range models {
		userID, err := id.ParseUserID(models[i].ID)
		if err != nil {
			return nil, err
		}
		refs[models[i].ID] = &user.Ref{ID: userID, Name: models[i].Name, Email: models[i].Email}
	}
	return refs, nil
}

// inTx runs fn in a session transaction. Errors from fn pass through
// untouched; session failures are tagged with ErrTransactionFailed.
func (s *Store) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("%w: start session: %w", leadledger.ErrTransactionFailed, err)
	}
	defer sess.EndSession(ctx)

	var fnErr error
	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		fnErr = fn(ctx)
		return nil, fnErr
	})
	if err != nil && fnErr == nil {
		return fmt.Errorf("%w: %w", leadledger.ErrTransactionFailed, err)
	}
	return err
}

// findOpts sorts newest first with the id as tie-breaker.
func findOpts(limit, offset int) *options.FindOptionsBuilder {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	return opts
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// isDuplicateOn reports a duplicate key error raised by the named index.
func isDuplicateOn(err error, index string) bool {
	return mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), index)
}

// migrationIndexes returns the index definitions for all collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colUsers: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetName(idxUserEmail),
			},
			{Keys: bson.D{{Key: "role", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colLeads: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "submitted_by", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colViews: {
			{
				Keys:    bson.D{{Key: "lead_id", Value: 1}, {Key: "viewed_by", Value: 1}},
				Options: options.Index().SetUnique(true).SetName(idxViewPair),
			},
			{Keys: bson.D{{Key: "viewed_by", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colTransactions: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "type", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
}
