package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/memorialkit/pkg/account"
)

const (
	accountsCollection  = "accounts"
	memorialsCollection = "memorials"
)

// memorialDoc is the stored form of account.Memorial. IDs are kept as strings
// so they stay readable in the shell.
type memorialDoc struct {
	ID         string                   `bson:"_id"`
	AccountID  string                   `bson:"account_id"`
	Name       string                   `bson:"name"`
	Moderation account.ModerationStatus `bson:"moderation,omitempty"`
	FlagReason string                   `bson:"flag_reason,omitempty"`
	CreatedAt  time.Time                `bson:"created_at"`
}

func (d memorialDoc) toMemorial() (*account.Memorial, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	return &account.Memorial{
		ID:         id,
		AccountID:  d.AccountID,
		Name:       d.Name,
		Moderation: d.Moderation,
		FlagReason: d.FlagReason,
		CreatedAt:  d.CreatedAt,
	}, nil
}

// Store implements account.Store on MongoDB. The memorial counter lives on the
// account document and is updated with $inc; reading it is not atomic with
// creating a memorial.
type Store struct {
	accounts  *mongo.Collection
	memorials *mongo.Collection
	timeout   time.Duration
	now       func() time.Time
}

var _ account.Store = (*Store)(nil)

// NewStore creates a Store over db. A non-positive timeout disables the
// per-call deadline.
func NewStore(db *mongo.Database, timeout time.Duration) *Store {
	if db == nil {
		panic("mongo: database is required")
	}
	return &Store{
		accounts:  db.Collection(accountsCollection),
		memorials: db.Collection(memorialsCollection),
		timeout:   timeout,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the indexes the store queries rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.memorials.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "moderation", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		return errors.Join(ErrStoreOperation, err)
	}
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// PutAccount inserts or replaces an account.
func (s *Store) PutAccount(ctx context.Context, a account.Account) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	a.UpdatedAt = s.now()

	_, err := s.accounts.ReplaceOne(ctx, bson.D{{Key: "_id", Value: a.ID}}, a, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Join(ErrStoreOperation, err)
	}
	return nil
}

func (s *Store) Account(ctx context.Context, id string) (*account.Account, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var a account.Account
	if err := s.accounts.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&a); err != nil {
		return nil, mapErr(err, account.ErrAccountNotFound)
	}
	return &a, nil
}

func (s *Store) MemorialCount(ctx context.Context, accountID string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc struct {
		MemorialCount int64 `bson:"memorial_count"`
	}
	err := s.accounts.FindOne(ctx,
		bson.D{{Key: "_id", Value: accountID}},
		options.FindOne().SetProjection(bson.D{{Key: "memorial_count", Value: 1}}),
	).Decode(&doc)
	if err != nil {
		return 0, mapErr(err, account.ErrAccountNotFound)
	}
	return doc.MemorialCount, nil
}

func (s *Store) IncrementMemorialCount(ctx context.Context, accountID string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc struct {
		MemorialCount int64 `bson:"memorial_count"`
	}
	err := s.accounts.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: accountID}},
		bson.D{
			{Key: "$inc", Value: bson.D{{Key: "memorial_count", Value: int64(1)}}},
			{Key: "$set", Value: bson.D{{Key: "updated_at", Value: s.now()}}},
		},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.D{{Key: "memorial_count", Value: 1}}),
	).Decode(&doc)
	if err != nil {
		return 0, mapErr(err, account.ErrAccountNotFound)
	}
	return doc.MemorialCount, nil
}

func (s *Store) CreateMemorial(ctx context.Context, m *account.Memorial) (uuid.UUID, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	id := m.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	_, err := s.memorials.InsertOne(ctx, memorialDoc{
		ID:         id.String(),
		AccountID:  m.AccountID,
		Name:       m.Name,
		Moderation: m.Moderation,
		FlagReason: m.FlagReason,
		CreatedAt:  createdAt,
	})
	if err != nil {
		return uuid.Nil, errors.Join(ErrStoreOperation, err)
	}
	return id, nil
}

func (s *Store) FlagMemorial(ctx context.Context, id uuid.UUID, reason string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.memorials.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id.String()}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "moderation", Value: account.ModerationFlagged},
			{Key: "flag_reason", Value: reason},
		}}},
	)
	if err != nil {
		return errors.Join(ErrStoreOperation, err)
	}
	if res.MatchedCount == 0 {
		return account.ErrMemorialNotFound
	}
	return nil
}

// Memorial returns a stored memorial by ID.
func (s *Store) Memorial(ctx context.Context, id uuid.UUID) (*account.Memorial, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc memorialDoc
	if err := s.memorials.FindOne(ctx, bson.D{{Key: "_id", Value: id.String()}}).Decode(&doc); err != nil {
		return nil, mapErr(err, account.ErrMemorialNotFound)
	}
	m, err := doc.toMemorial()
	if err != nil {
		return nil, errors.Join(ErrStoreOperation, err)
	}
	return m, nil
}

func (s *Store) SetGatewayCustomerID(ctx context.Context, accountID, customerID string) error {
	return s.update(ctx, accountID, bson.D{{Key: "$set", Value: bson.D{
		{Key: "gateway_customer_id", Value: customerID},
		{Key: "updated_at", Value: s.now()},
	}}})
}

func (s *Store) UpdateSubscription(ctx context.Context, accountID string, upd account.SubscriptionUpdate) error {
	set := bson.D{{Key: "updated_at", Value: s.now()}}
	if upd.PlanID != nil {
		set = append(set, bson.E{Key: "plan_id", Value: *upd.PlanID})
	}
	if upd.Status != nil {
		set = append(set, bson.E{Key: "status", Value: *upd.Status})
	}
	if upd.TrialEndsAt != nil && !upd.ClearTrial {
		set = append(set, bson.E{Key: "trial_ends_at", Value: *upd.TrialEndsAt})
	}
	if upd.GatewayCustomerID != nil {
		set = append(set, bson.E{Key: "gateway_customer_id", Value: *upd.GatewayCustomerID})
	}

	update := bson.D{{Key: "$set", Value: set}}
	if upd.ClearTrial {
		update = append(update, bson.E{Key: "$unset", Value: bson.D{{Key: "trial_ends_at", Value: ""}}})
	}
	return s.update(ctx, accountID, update)
}

func (s *Store) update(ctx context.Context, accountID string, update bson.D) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.accounts.UpdateOne(ctx, bson.D{{Key: "_id", Value: accountID}}, update)
	if err != nil {
		return errors.Join(ErrStoreOperation, err)
	}
	if res.MatchedCount == 0 {
		return account.ErrAccountNotFound
	}
	return nil
}

func mapErr(err, notFound error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return notFound
	}
	return errors.Join(ErrStoreOperation, err)
}
