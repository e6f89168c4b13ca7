package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tingoai/payment-gateway/internal/transaction"
)

// MongoDBStore implements Store using MongoDB.
type MongoDBStore struct {
	client       *mongo.Client
	transactions *mongo.Collection
}

// mongoRecord is the BSON document shape. Amount is stored as a string to
// preserve decimal precision across drivers.
type mongoRecord struct {
	ID                 string     `bson:"_id"`
	MerchantReference  string     `bson:"merchant_reference"`
	ProcessorReference string     `bson:"processor_reference,omitempty"`
	Amount             string     `bson:"amount"`
	Currency           string     `bson:"currency"`
	CustomerFirstName  string     `bson:"customer_first_name"`
	CustomerLastName   string     `bson:"customer_last_name"`
	CustomerEmail      string     `bson:"customer_email"`
	CustomerPhone      string     `bson:"customer_phone"`
	CustomerAddress    string     `bson:"customer_address,omitempty"`
	Status             string     `bson:"status"`
	CheckoutURL        string     `bson:"checkout_url,omitempty"`
	AccessCode         string     `bson:"access_code,omitempty"`
	ResponseCode       string     `bson:"response_code,omitempty"`
	ResponseMessage    string     `bson:"response_message,omitempty"`
	PaymentDate        *time.Time `bson:"payment_date,omitempty"`
	PaymentChannel     string     `bson:"payment_channel,omitempty"`
	CreatedAt          time.Time  `bson:"created_at"`
	UpdatedAt          time.Time  `bson:"updated_at"`
}

// NewMongoDBStore creates a new MongoDB-backed store.
func NewMongoDBStore(connectionString, database string) (*MongoDBStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		// Disconnect() error during initialization cleanup is not actionable.
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	store := &MongoDBStore{
		client:       client,
		transactions: client.Database(database).Collection("transactions"),
	}

	if err := store.createIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return store, nil
}

// createIndexes creates the merchant reference uniqueness constraint plus the
// secondary indexes the query and summary paths need.
func (s *MongoDBStore) createIndexes(ctx context.Context) error {
	_, err := s.transactions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "merchant_reference", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "processor_reference", Value: 1}}},
		{Keys: bson.D{{Key: "currency", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create transaction indexes: %w", err)
	}
	return nil
}

// Insert persists a new transaction document.
func (s *MongoDBStore) Insert(ctx context.Context, tx *transaction.Transaction) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	_, err := s.transactions.InsertOne(ctx, toMongoRecord(tx.Snapshot()))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// Update overwrites an existing transaction document.
func (s *MongoDBStore) Update(ctx context.Context, tx *transaction.Transaction) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	snap := tx.Snapshot()
	result, err := s.transactions.ReplaceOne(ctx, bson.M{"_id": snap.ID}, toMongoRecord(snap))
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a transaction by its internal id.
func (s *MongoDBStore) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	return s.getOne(ctx, bson.M{"_id": id})
}

// GetByMerchantReference retrieves a transaction by its merchant reference.
func (s *MongoDBStore) GetByMerchantReference(ctx context.Context, ref string) (*transaction.Transaction, error) {
	return s.getOne(ctx, bson.M{"merchant_reference": ref})
}

// GetByProcessorReference retrieves a transaction by the processor's reference.
func (s *MongoDBStore) GetByProcessorReference(ctx context.Context, ref string) (*transaction.Transaction, error) {
	return s.getOne(ctx, bson.M{"processor_reference": ref})
}

func (s *MongoDBStore) getOne(ctx context.Context, filter bson.M) (*transaction.Transaction, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var record mongoRecord
	err := s.transactions.FindOne(ctx, filter).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	return fromMongoRecord(record)
}

// Query returns a page of matching transactions (newest first) plus the total match count.
func (s *MongoDBStore) Query(ctx context.Context, filter Filter) ([]*transaction.Transaction, int, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	filter.normalize()

	query := bson.M{}
	if filter.StartDate != nil || filter.EndDate != nil {
		createdAt := bson.M{}
		if filter.StartDate != nil {
			createdAt["$gte"] = filter.StartDate.UTC()
		}
		if filter.EndDate != nil {
			createdAt["$lte"] = filter.EndDate.UTC()
		}
		query["created_at"] = createdAt
	}
	if filter.Name != "" {
		pattern := primitive.Regex{Pattern: regexQuote(strings.TrimSpace(filter.Name)), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"customer_first_name": pattern},
			bson.M{"customer_last_name": pattern},
		}
	}

	total, err := s.transactions.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((filter.Page - 1) * filter.PageSize)).
		SetLimit(int64(filter.PageSize))

	txs, err := s.find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	return txs, int(total), nil
}

// ListByDateRange returns all transactions created within [start, end], newest first.
func (s *MongoDBStore) ListByDateRange(ctx context.Context, start, end time.Time) ([]*transaction.Transaction, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	query := bson.M{"created_at": bson.M{"$gte": start.UTC(), "$lte": end.UTC()}}
	return s.find(ctx, query, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

// ListAll returns every transaction, newest first.
func (s *MongoDBStore) ListAll(ctx context.Context) ([]*transaction.Transaction, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	return s.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (s *MongoDBStore) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]*transaction.Transaction, error) {
	cursor, err := s.transactions.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("find transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*transaction.Transaction
	for cursor.Next(ctx) {
		var record mongoRecord
		if err := cursor.Decode(&record); err != nil {
			return nil, fmt.Errorf("decode transaction: %w", err)
		}
		tx, err := fromMongoRecord(record)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// Close disconnects from MongoDB.
func (s *MongoDBStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func toMongoRecord(snap transaction.Snapshot) mongoRecord {
	return mongoRecord{
		ID:                 snap.ID,
		MerchantReference:  snap.MerchantReference,
		ProcessorReference: snap.ProcessorReference,
		Amount:             snap.Amount.String(),
		Currency:           snap.Currency,
		CustomerFirstName:  snap.CustomerFirstName,
		CustomerLastName:   snap.CustomerLastName,
		CustomerEmail:      snap.CustomerEmail,
		CustomerPhone:      snap.CustomerPhone,
		CustomerAddress:    snap.CustomerAddress,
		Status:             string(snap.Status),
		CheckoutURL:        snap.CheckoutURL,
		AccessCode:         snap.AccessCode,
		ResponseCode:       snap.ResponseCode,
		ResponseMessage:    snap.ResponseMessage,
		PaymentDate:        snap.PaymentDate,
		PaymentChannel:     snap.PaymentChannel,
		CreatedAt:          snap.CreatedAt.UTC(),
		UpdatedAt:          snap.UpdatedAt.UTC(),
	}
}

func fromMongoRecord(record mongoRecord) (*transaction.Transaction, error) {
	amount, err := decimal.NewFromString(record.Amount)
	if err != nil {
		return nil, fmt.Errorf("parse stored amount %q: %w", record.Amount, err)
	}
	return transaction.Restore(transaction.Snapshot{
		ID:                 record.ID,
		MerchantReference:  record.MerchantReference,
		ProcessorReference: record.ProcessorReference,
		Amount:             amount,
		Currency:           record.Currency,
		CustomerFirstName:  record.CustomerFirstName,
		CustomerLastName:   record.CustomerLastName,
		CustomerEmail:      record.CustomerEmail,
		CustomerPhone:      record.CustomerPhone,
		CustomerAddress:    record.CustomerAddress,
		Status:             transaction.Status(record.Status),
		CheckoutURL:        record.CheckoutURL,
		AccessCode:         record.AccessCode,
		ResponseCode:       record.ResponseCode,
		ResponseMessage:    record.ResponseMessage,
		PaymentDate:        record.PaymentDate,
		PaymentChannel:     record.PaymentChannel,
		CreatedAt:          record.CreatedAt,
		UpdatedAt:          record.UpdatedAt,
	}), nil
}

// regexQuote escapes regex metacharacters so the name filter is a plain
// substring match.
func regexQuote(s string) string {
	special := `\.+*?()|[]{}^$`
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
