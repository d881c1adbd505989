package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradeflow-erp/tradeflow/internal/shared"
)

// Service resolves a user's role for capability checks.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs the rbac service.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// RoleForUser loads the role stored on the user row.
func (s *Service) RoleForUser(ctx context.Context, userID int64) (Role, error) {
	var role string
	err := s.pool.QueryRow(ctx, `SELECT role FROM users WHERE id = $1 AND is_active`, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", fmt.Errorf("rbac: load role: %w", err)
	}
	return Role(role), nil
}
