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

package gateway

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoPermissionStore reads team route grants from the teams collection.
// A team document carries the list of service identifiers it may call:
//
//	{ "team_id": "team-a", "routes": ["inventory-service", "quotes-service"] }
type MongoPermissionStore struct {
	teams *mongo.Collection
}

func NewMongoPermissionStore(db *mongo.Database) *MongoPermissionStore {
	return &MongoPermissionStore{teams: db.Collection("teams")}
}

func (s *MongoPermissionStore) HasAccess(ctx context.Context, team, target string) (bool, error) {
	count, err := s.teams.CountDocuments(ctx, bson.M{
		"team_id": team,
		"routes":  target,
	})
	if err != nil {
		return false, fmt.Errorf("failed to query team routes for %s: %w", team, err)
	}
	return count > 0, nil
}

// GrantRoute adds a target to a team's route list, creating the team
// document if needed.
func (s *MongoPermissionStore) GrantRoute(ctx context.Context, team, target string) error {
	_, err := s.teams.UpdateOne(ctx,
		bson.M{"team_id": team},
		bson.M{"$addToSet": bson.M{"routes": target}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to grant route %s to team %s: %w", target, team, err)
	}
	return nil
}

// RevokeRoute removes a target from a team's route list.
func (s *MongoPermissionStore) RevokeRoute(ctx context.Context, team, target string) error {
	_, err := s.teams.UpdateOne(ctx,
		bson.M{"team_id": team},
		bson.M{"$pull": bson.M{"routes": target}})
	if err != nil {
		return fmt.Errorf("failed to revoke route %s from team %s: %w", target, team, err)
	}
	return nil
}
