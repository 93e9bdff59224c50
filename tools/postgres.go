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

package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresRegistry implements persistent storage for tool registrations.
type PostgresRegistry struct {
	db     *sql.DB
	logger *log.Logger
}

// NewPostgresRegistry connects to PostgreSQL and initializes the schema.
// Connection attempts retry with backoff to ride out container DNS startup
// delays.
func NewPostgresRegistry(dbURL string) (*PostgresRegistry, error) {
	maxRetries := 5
	var db *sql.DB
	var err error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, err = sql.Open("postgres", dbURL)
		if err == nil {
			err = db.Ping()
			if err == nil {
				break
			}
		}
		if attempt < maxRetries {
			backoff := time.Duration(attempt*2) * time.Second
			log.Printf("[ToolRegistry] Database connection failed (attempt %d/%d): %v, retrying in %v",
				attempt, maxRetries, err, backoff)
			time.Sleep(backoff)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	r := &PostgresRegistry{
		db:     db,
		logger: log.New(log.Writer(), "[ToolRegistry] ", log.LstdFlags),
	}
	if err := r.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	r.logger.Println("PostgreSQL tool registry initialized")
	return r, nil
}

func (r *PostgresRegistry) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS linq_tools (
		id VARCHAR(255) PRIMARY KEY,
		target VARCHAR(255) NOT NULL,
		team VARCHAR(255) NOT NULL,
		endpoint TEXT NOT NULL,
		method VARCHAR(16) NOT NULL,
		auth_type VARCHAR(32) NOT NULL DEFAULT 'none',
		api_key TEXT NOT NULL DEFAULT '',
		headers JSONB NOT NULL DEFAULT '{}'::jsonb,
		supported_intents JSONB NOT NULL DEFAULT '[]'::jsonb,
		updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
		UNIQUE(target, team)
	);

	CREATE INDEX IF NOT EXISTS idx_linq_tools_team ON linq_tools(team);
	`
	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// FindByTargetAndTeam returns the registration for (target, team), or
// (nil, nil) when none exists.
func (r *PostgresRegistry) FindByTargetAndTeam(ctx context.Context, target, team string) (*Tool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, target, team, endpoint, method, auth_type, api_key, headers, supported_intents
		FROM linq_tools WHERE target = $1 AND team = $2`, target, team)
	tool, err := scanTool(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tool %s for team %s: %w", target, team, err)
	}
	return tool, nil
}

// FindByTeam lists every tool registered for a team.
func (r *PostgresRegistry) FindByTeam(ctx context.Context, team string) ([]*Tool, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, target, team, endpoint, method, auth_type, api_key, headers, supported_intents
		FROM linq_tools WHERE team = $1 ORDER BY target`, team)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools for team %s: %w", team, err)
	}
	defer rows.Close()

	var out []*Tool
	for rows.Next() {
		tool, err := scanTool(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tool)
	}
	return out, rows.Err()
}

// Save upserts a registration keyed by (target, team).
func (r *PostgresRegistry) Save(ctx context.Context, tool *Tool) (*Tool, error) {
	if err := tool.Validate(); err != nil {
		return nil, err
	}
	if tool.ID == "" {
		tool.ID = uuid.New().String()
	}
	headers, err := json.Marshal(tool.Headers)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal headers: %w", err)
	}
	intents, err := json.Marshal(tool.SupportedIntents)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal supported intents: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO linq_tools (id, target, team, endpoint, method, auth_type, api_key, headers, supported_intents, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (target, team) DO UPDATE SET
			endpoint = EXCLUDED.endpoint,
			method = EXCLUDED.method,
			auth_type = EXCLUDED.auth_type,
			api_key = EXCLUDED.api_key,
			headers = EXCLUDED.headers,
			supported_intents = EXCLUDED.supported_intents,
			updated_at = NOW()`,
		tool.ID, tool.Target, tool.Team, tool.Endpoint, tool.Method,
		tool.AuthType, tool.APIKey, headers, intents)
	if err != nil {
		return nil, fmt.Errorf("failed to save tool %s for team %s: %w", tool.Target, tool.Team, err)
	}
	r.logger.Printf("Saved tool %s for team %s", tool.Target, tool.Team)
	return tool, nil
}

// Delete removes a registration.
func (r *PostgresRegistry) Delete(ctx context.Context, target, team string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM linq_tools WHERE target = $1 AND team = $2`, target, team)
	if err != nil {
		return fmt.Errorf("failed to delete tool %s for team %s: %w", target, team, err)
	}
	return nil
}

// Close releases the database pool.
func (r *PostgresRegistry) Close() error { return r.db.Close() }

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTool(row rowScanner) (*Tool, error) {
	var tool Tool
	var headers, intents []byte
	if err := row.Scan(&tool.ID, &tool.Target, &tool.Team, &tool.Endpoint, &tool.Method,
		&tool.AuthType, &tool.APIKey, &headers, &intents); err != nil {
		return nil, err
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &tool.Headers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal headers: %w", err)
		}
	}
	if len(intents) > 0 {
		if err := json.Unmarshal(intents, &tool.SupportedIntents); err != nil {
			return nil, fmt.Errorf("failed to unmarshal supported intents: %w", err)
		}
	}
	return &tool, nil
}
