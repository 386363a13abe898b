package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/expense-tracker/internal/models"
)

const (
	usernameIndex = "username_unique"
	emailIndex    = "email_unique"
)

// mongoConflict maps a duplicate-key error on the account indexes to a store
// error, or returns nil.
func mongoConflict(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, usernameIndex):
		return ErrDuplicateUsername
	case strings.Contains(msg, emailIndex):
		return ErrDuplicateEmail
	}
	return nil
}

type mongoAccount struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	CreatedAt    time.Time `bson:"created_at"`
}

type mongoExpense struct {
	ID          string    `bson:"_id"`
	OwnerID     string    `bson:"owner_id"`
	Description string    `bson:"description"`
	AmountCents int64     `bson:"amount_cents"`
	Date        string    `bson:"date"`
	Category    string    `bson:"category"`
	CreatedAt   time.Time `bson:"created_at"`
}

func (d mongoExpense) model() (*models.Expense, error) {
	date, err := time.Parse(models.DateLayout, d.Date)
	if err != nil {
		return nil, fmt.Errorf("parse date: %w", err)
	}
	return &models.Expense{
		ID:          d.ID,
		OwnerID:     d.OwnerID,
		Description: d.Description,
		Amount:      fromCents(d.AmountCents),
		Date:        date,
		Category:    d.Category,
		CreatedAt:   d.CreatedAt,
	}, nil
}

// MongoStore keeps accounts and expenses in two MongoDB collections.
// Uniqueness is enforced by unique indexes.
type MongoStore struct {
	client   *mongo.Client
	accounts *mongo.Collection
	expenses *mongo.Collection
}

func NewMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{
		client:   client,
		accounts: db.Collection("accounts"),
		expenses: db.Collection("expenses"),
	}
}

// OpenMongo connects, pings and selects database name.
func OpenMongo(ctx context.Context, uri, name string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return NewMongoStore(client, client.Database(name)), nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Migrate creates the indexes.
func (s *MongoStore) Migrate(ctx context.Context) error {
	_, err := s.accounts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName(usernameIndex)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName(emailIndex)},
	})
	if err != nil {
		return fmt.Errorf("account indexes: %w", err)
	}
	_, err = s.expenses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("expense indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateAccount(ctx context.Context, a *models.Account) error {
	_, err := s.accounts.InsertOne(ctx, mongoAccount{
		ID:           a.ID,
		Username:     a.Username,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		CreatedAt:    a.CreatedAt,
	})
	if err != nil {
		if mapped := mongoConflict(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("mongo insert account: %w", err)
	}
	return nil
}

func (s *MongoStore) getAccount(ctx context.Context, filter bson.M) (*models.Account, error) {
	var doc mongoAccount
	err := s.accounts.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo find account: %w", err)
	}
	return &models.Account{
		ID:           doc.ID,
		Username:     doc.Username,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

func (s *MongoStore) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	return s.getAccount(ctx, bson.M{"_id": id})
}

func (s *MongoStore) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	return s.getAccount(ctx, bson.M{"username": username})
}

func (s *MongoStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.getAccount(ctx, bson.M{"email": email})
}

// CreateExpense checks the owner first; MongoDB has no foreign keys.
func (s *MongoStore) CreateExpense(ctx context.Context, e *models.Expense) error {
	n, err := s.accounts.CountDocuments(ctx, bson.M{"_id": e.OwnerID})
	if err != nil {
		return fmt.Errorf("mongo count owner: %w", err)
	}
	if n == 0 {
		return ErrUnknownOwner
	}

	_, err = s.expenses.InsertOne(ctx, mongoExpense{
		ID:          e.ID,
		OwnerID:     e.OwnerID,
		Description: e.Description,
		AmountCents: toCents(e.Amount),
		Date:        e.Date.Format(models.DateLayout),
		Category:    e.Category,
		CreatedAt:   e.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("mongo insert expense: %w", err)
	}
	return nil
}

func (s *MongoStore) ListExpensesByOwner(ctx context.Context, ownerID string) ([]models.Expense, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.expenses.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find expenses: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoExpense
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode expenses: %w", err)
	}

	expenses := make([]models.Expense, 0, len(docs))
	for _, d := range docs {
		e, err := d.model()
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}
	return expenses, nil
}

// UpdateExpense matches on id and owner in a single FindOneAndUpdate.
func (s *MongoStore) UpdateExpense(ctx context.Context, id, ownerID string, patch models.ExpensePatch) (*models.Expense, error) {
	set := bson.M{}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Amount != nil {
		set["amount_cents"] = toCents(*patch.Amount)
	}
	if patch.Date != nil {
		set["date"] = patch.Date.Format(models.DateLayout)
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}

	filter := bson.M{"_id": id, "owner_id": ownerID}
	var (
		doc mongoExpense
		err error
	)
	if len(set) == 0 {
		err = s.expenses.FindOne(ctx, filter).Decode(&doc)
	} else {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		err = s.expenses.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&doc)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo update expense: %w", err)
	}
	return doc.model()
}

func (s *MongoStore) DeleteExpense(ctx context.Context, id, ownerID string) error {
	res, err := s.expenses.DeleteOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
	if err != nil {
		return fmt.Errorf("mongo delete expense: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) TotalByOwner(ctx context.Context, ownerID string) (decimal.Decimal, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"owner_id": ownerID}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$amount_cents"}}}},
	}
	cur, err := s.expenses.Aggregate(ctx, pipeline)
	if err != nil {
		return decimal.Zero, fmt.Errorf("mongo total expenses: %w", err)
	}
	defer cur.Close(ctx)

	var result []struct {
		Total int64 `bson:"total"`
	}
	if err := cur.All(ctx, &result); err != nil {
		return decimal.Zero, fmt.Errorf("mongo decode total: %w", err)
	}
	if len(result) == 0 {
		return decimal.Zero, nil
	}
	return fromCents(result[0].Total), nil
}
