package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const propertyColumns = `id, address, postal_code, city, stage, field_values, review_state, created_at, updated_at`

func (s *PostgresStore) ListProperties(ctx context.Context) ([]Property, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+propertyColumns+`
		FROM properties
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	var properties []Property
	for rows.Next() {
		property, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, property)
	}
	return properties, rows.Err()
}

func (s *PostgresStore) GetProperty(ctx context.Context, propertyID string) (Property, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+propertyColumns+`
		FROM properties
		WHERE id = $1
	`, propertyID)
	return scanProperty(row)
}

func (s *PostgresStore) InsertProperty(ctx context.Context, property Property) error {
	fieldValues, err := json.Marshal(property.FieldValues)
	if err != nil {
		return fmt.Errorf("marshal field values: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO properties (id, address, postal_code, city, stage, field_values)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, property.ID, property.Address, property.PostalCode, property.City, property.Stage, fieldValues)
	if err != nil {
		return fmt.Errorf("insert property: %w", err)
	}
	return nil
}

// UpdateFieldValues replaces the live field values wholesale. The form layer
// always sends the full value map, so merging here would hide deletions.
func (s *PostgresStore) UpdateFieldValues(ctx context.Context, propertyID string, values map[string]any) error {
	payload, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal field values: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE properties SET field_values = $2, updated_at = NOW() WHERE id = $1
	`, propertyID, payload)
	if err != nil {
		return fmt.Errorf("update field values: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) UpdateStage(ctx context.Context, propertyID, stage string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE properties SET stage = $2, updated_at = NOW() WHERE id = $1
	`, propertyID, stage)
	if err != nil {
		return fmt.Errorf("update stage: %w", err)
	}
	return requireRow(result)
}

// LoadReviewState reads the opaque review blob. Returns nil when no review
// has ever been persisted for the property.
func (s *PostgresStore) LoadReviewState(ctx context.Context, propertyID string) (json.RawMessage, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT review_state FROM properties WHERE id = $1
	`, propertyID).Scan(&blob)
	if err != nil {
		return nil, fmt.Errorf("load review state: %w", err)
	}
	if len(blob) == 0 {
		return nil, nil
	}
	return json.RawMessage(blob), nil
}

// SaveReviewState writes the opaque review blob as-is.
func (s *PostgresStore) SaveReviewState(ctx context.Context, propertyID string, blob json.RawMessage) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE properties SET review_state = $2, updated_at = NOW() WHERE id = $1
	`, propertyID, []byte(blob))
	if err != nil {
		return fmt.Errorf("save review state: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner) (Property, error) {
	var property Property
	var fieldValues, reviewState []byte
	var createdAt, updatedAt time.Time
	err := row.Scan(
		&property.ID, &property.Address, &property.PostalCode, &property.City,
		&property.Stage, &fieldValues, &reviewState, &createdAt, &updatedAt,
	)
	if err != nil {
		return Property{}, err
	}
	property.CreatedAt = createdAt
	property.UpdatedAt = updatedAt
	if len(fieldValues) > 0 {
		if err := json.Unmarshal(fieldValues, &property.FieldValues); err != nil {
			return Property{}, fmt.Errorf("parse field values for %s: %w", property.ID, err)
		}
	}
	if property.FieldValues == nil {
		property.FieldValues = map[string]any{}
	}
	if len(reviewState) > 0 {
		property.ReviewState = json.RawMessage(reviewState)
	}
	return property, nil
}
