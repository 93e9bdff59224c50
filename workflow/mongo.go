// Copyright 2025 LinqGate
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workflow

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoExecutionStore persists execution history in the
// workflow_executions collection.
type MongoExecutionStore struct {
	executions *mongo.Collection
}

func NewMongoExecutionStore(db *mongo.Database) (*MongoExecutionStore, error) {
	coll := db.Collection("workflow_executions")
	_, err := coll.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "workflow_id", Value: 1}, {Key: "started_at", Value: -1}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create execution index: %w", err)
	}
	return &MongoExecutionStore{executions: coll}, nil
}

func (s *MongoExecutionStore) Save(ctx context.Context, rec *ExecutionRecord) error {
	_, err := s.executions.ReplaceOne(ctx,
		bson.M{"_id": rec.ID}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save execution %s: %w", rec.ID, err)
	}
	return nil
}

func (s *MongoExecutionStore) Get(ctx context.Context, id string) (*ExecutionRecord, error) {
	var rec ExecutionRecord
	err := s.executions.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load execution %s: %w", id, err)
	}
	return &rec, nil
}

func (s *MongoExecutionStore) Latest(ctx context.Context, workflowID string) (*ExecutionRecord, error) {
	var rec ExecutionRecord
	err := s.executions.FindOne(ctx,
		bson.M{"workflow_id": workflowID},
		options.FindOne().SetSort(bson.D{{Key: "started_at", Value: -1}})).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest execution of %s: %w", workflowID, err)
	}
	return &rec, nil
}

func (s *MongoExecutionStore) ForWorkflow(ctx context.Context, workflowID string) ([]*ExecutionRecord, error) {
	cursor, err := s.executions.Find(ctx,
		bson.M{"workflow_id": workflowID},
		options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list executions of %s: %w", workflowID, err)
	}
	defer cursor.Close(ctx)

	var out []*ExecutionRecord
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode executions of %s: %w", workflowID, err)
	}
	return out, nil
}
