package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UpsertFood adds or renames a catalog food.
func (s *Store) UpsertFood(ctx context.Context, id, name string, price int64) error {
	if err := s.guard(ctx, ""); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO foods (id, name, price) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, price = excluded.price
	`, id, name, price)
	if err != nil {
		return classify("", fmt.Errorf("upsert food: %w", err))
	}
	return nil
}

// FoodName returns the catalog name of a food, wrapping ErrNotFound for
// unknown ids.
func (s *Store) FoodName(ctx context.Context, foodID string) (string, error) {
	if err := s.guard(ctx, ""); err != nil {
		return "", err
	}
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM foods WHERE id = ?`, foodID).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("food %s: %w", foodID, ErrNotFound)
		}
		return "", classify("", fmt.Errorf("read food: %w", err))
	}
	return name, nil
}

// UpsertUser adds or renames a user.
func (s *Store) UpsertUser(ctx context.Context, id, displayName string) error {
	if err := s.guard(ctx, ""); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name
	`, id, displayName)
	if err != nil {
		return classify("", fmt.Errorf("upsert user: %w", err))
	}
	return nil
}

// DisplayName returns a user's display name, wrapping ErrNotFound for
// unknown ids.
func (s *Store) DisplayName(ctx context.Context, userID string) (string, error) {
	if err := s.guard(ctx, ""); err != nil {
		return "", err
	}
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT display_name FROM users WHERE id = ?`, userID).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return "", classify("", fmt.Errorf("read user: %w", err))
	}
	return name, nil
}
