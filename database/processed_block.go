package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lightlink-network/ll-rollup-node/database/models"
)

// SetLastProcessedBlock stores the last fully processed block for a chain
// ("l1" or "l2"), creating the record on first write.
func (db *Database) SetLastProcessedBlock(ctx context.Context, chain string, blockNumber uint64) error {
	collection := db.client.Database(db.databaseName).Collection("last_processed_block")

	filter := bson.D{{Key: "chain", Value: chain}}
	update := bson.D{{
		Key: "$set",
		Value: bson.D{{
			Key: "block_number", Value: blockNumber,
		}},
	}}

	_, err := collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to update last processed block: %w", err)
	}

	return nil
}

// GetLastProcessedBlock returns the stored watermark for a chain, or zero when
// the chain has not been processed yet.
func (db *Database) GetLastProcessedBlock(ctx context.Context, chain string) (uint64, error) {
	collection := db.client.Database(db.databaseName).Collection("last_processed_block")

	var result models.ProcessedBlock
	err := collection.FindOne(ctx, bson.D{{Key: "chain", Value: chain}}).Decode(&result)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get last processed block: %w", err)
	}

	return result.BlockNumber, nil
}
