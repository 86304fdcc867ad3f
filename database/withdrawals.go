package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lightlink-network/ll-rollup-node/database/models"
)

// CreateWithdrawal inserts a withdrawal record if one with the same withdrawal
// hash does not already exist. Returns whether a new record was created.
func (db *Database) CreateWithdrawal(ctx context.Context, withdrawal models.Withdrawal) (bool, error) {
	collection := db.client.Database(db.databaseName).Collection("withdrawals")

	_, err := collection.InsertOne(ctx, withdrawal)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert withdrawal: %w", err)
	}

	return true, nil
}

// HasWithdrawalEvent reports whether a withdrawal record for the given L2
// initiation event already exists. The (l2_tx_hash, log_index) pair identifies
// the event independently of the assigned nonce, so re-processing a block range
// after a crash never commits the same event under a fresh nonce.
func (db *Database) HasWithdrawalEvent(ctx context.Context, l2TxHash string, logIndex uint) (bool, error) {
	collection := db.client.Database(db.databaseName).Collection("withdrawals")

	err := collection.FindOne(ctx, bson.D{
		{Key: "l2_tx_hash", Value: l2TxHash},
		{Key: "log_index", Value: logIndex},
	}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up withdrawal event: %w", err)
	}

	return true, nil
}

// GetWithdrawal returns the withdrawal record with the given withdrawal hash.
func (db *Database) GetWithdrawal(ctx context.Context, withdrawalHash string) (*models.Withdrawal, error) {
	collection := db.client.Database(db.databaseName).Collection("withdrawals")

	var withdrawal models.Withdrawal
	err := collection.FindOne(ctx, bson.D{{Key: "withdrawal_hash", Value: withdrawalHash}}).Decode(&withdrawal)
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}

	return &withdrawal, nil
}

// GetWithdrawalsInOrder returns every withdrawal record sorted by nonce, the
// order the pending commitment must be rebuilt in.
func (db *Database) GetWithdrawalsInOrder(ctx context.Context) ([]models.Withdrawal, error) {
	collection := db.client.Database(db.databaseName).Collection("withdrawals")

	opts := options.Find().SetSort(bson.D{{Key: "nonce", Value: 1}})
	cursor, err := collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawals: %w", err)
	}
	defer cursor.Close(ctx)

	var withdrawals []models.Withdrawal
	if err := cursor.All(ctx, &withdrawals); err != nil {
		return nil, fmt.Errorf("failed to decode withdrawals: %w", err)
	}

	return withdrawals, nil
}

// GetWithdrawals returns withdrawal records matching the filter, newest L2
// block first, paginated.
func (db *Database) GetWithdrawals(ctx context.Context, filter models.Filter, page int64, pageSize int64) (*models.PaginatedResult, error) {
	mongoFilter := bson.M{}
	if filter.Status != "" {
		mongoFilter["status"] = filter.Status
	}
	if filter.From != "" {
		mongoFilter["sender"] = filter.From
	}
	if filter.To != "" {
		mongoFilter["target"] = filter.To
	}
	skip := (page - 1) * pageSize

	collection := db.client.Database(db.databaseName).Collection("withdrawals")
	totalCount, err := collection.CountDocuments(ctx, mongoFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "l2_block_number", Value: -1}}).
		SetSkip(skip).
		SetLimit(pageSize)

	cursor, err := collection.Find(ctx, mongoFilter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawals: %w", err)
	}
	defer cursor.Close(ctx)

	withdrawals := make([]models.Withdrawal, 0, pageSize)
	if err := cursor.All(ctx, &withdrawals); err != nil {
		return nil, fmt.Errorf("failed to decode withdrawals: %w", err)
	}

	return &models.PaginatedResult{
		Items:      withdrawals,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}
