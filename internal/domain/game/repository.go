package game

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Repository

import (
	"context"
)

// Repository defines durable storage for sessions. Save replaces the whole
// session row set (players and pending actions included) atomically.
type Repository interface {
	Save(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id int64) (*Session, error)
	ListIDs(ctx context.Context) ([]int64, error)
	Delete(ctx context.Context, id int64) error
}
