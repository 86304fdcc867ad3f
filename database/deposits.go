package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lightlink-network/ll-rollup-node/database/models"
)

// CreateDeposit inserts a deposit record if one with the same source hash does
// not already exist. Returns whether a new record was created, so re-processing
// a block range after a restart never double-tracks (or double-alerts) a
// deposit.
func (db *Database) CreateDeposit(ctx context.Context, deposit models.Deposit) (bool, error) {
	collection := db.client.Database(db.databaseName).Collection("deposits")

	_, err := collection.InsertOne(ctx, deposit)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert deposit: %w", err)
	}

	return true, nil
}

// UpdateDepositStatus sets the status (and optionally the matched L2 tx hash)
// of the deposit with the given source hash.
func (db *Database) UpdateDepositStatus(ctx context.Context, sourceHash string, status string, l2TxHash string) error {
	filter := bson.D{{Key: "source_hash", Value: sourceHash}}
	set := bson.D{{Key: "status", Value: status}}
	if l2TxHash != "" {
		set = append(set, bson.E{Key: "l2_tx_hash", Value: l2TxHash})
	}
	update := bson.D{{Key: "$set", Value: set}}

	result, err := db.client.Database(db.databaseName).Collection("deposits").UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update deposit status: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("no deposit found with sourceHash: %s", sourceHash)
	}

	return nil
}

// GetDeposit returns the deposit record with the given source hash.
func (db *Database) GetDeposit(ctx context.Context, sourceHash string) (*models.Deposit, error) {
	collection := db.client.Database(db.databaseName).Collection("deposits")

	var deposit models.Deposit
	err := collection.FindOne(ctx, bson.D{{Key: "source_hash", Value: sourceHash}}).Decode(&deposit)
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}

	return &deposit, nil
}

// GetDepositsByStatus returns every deposit record with the given status in L1
// block order. Used on startup to resume confirmation waits for deposits whose
// watcher died with the previous process.
func (db *Database) GetDepositsByStatus(ctx context.Context, status string) ([]models.Deposit, error) {
	collection := db.client.Database(db.databaseName).Collection("deposits")

	opts := options.Find().SetSort(bson.D{{Key: "l1_block_number", Value: 1}})
	cursor, err := collection.Find(ctx, bson.D{{Key: "status", Value: status}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get deposits by status: %w", err)
	}
	defer cursor.Close(ctx)

	var deposits []models.Deposit
	if err := cursor.All(ctx, &deposits); err != nil {
		return nil, fmt.Errorf("failed to decode deposits: %w", err)
	}

	return deposits, nil
}

// GetDeposits returns deposit records matching the filter, newest L1 block
// first, paginated.
func (db *Database) GetDeposits(ctx context.Context, filter models.Filter, page int64, pageSize int64) (*models.PaginatedResult, error) {
	mongoFilter := buildFilter(filter)
	skip := (page - 1) * pageSize

	collection := db.client.Database(db.databaseName).Collection("deposits")
	totalCount, err := collection.CountDocuments(ctx, mongoFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "l1_block_number", Value: -1}}).
		SetSkip(skip).
		SetLimit(pageSize)

	cursor, err := collection.Find(ctx, mongoFilter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get deposits: %w", err)
	}
	defer cursor.Close(ctx)

	deposits := make([]models.Deposit, 0, pageSize)
	if err := cursor.All(ctx, &deposits); err != nil {
		return nil, fmt.Errorf("failed to decode deposits: %w", err)
	}

	return &models.PaginatedResult{
		Items:      deposits,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}
