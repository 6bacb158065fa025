package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medsimlab/clinsim-backend/internal/model"
)

// LearnerRepository handles learner persistence.
type LearnerRepository struct {
	pool *pgxpool.Pool
}

// NewLearnerRepository creates a new LearnerRepository.
func NewLearnerRepository(pool *pgxpool.Pool) *LearnerRepository {
	return &LearnerRepository{pool: pool}
}

// GetByUsername fetches a learner by username.
func (r *LearnerRepository) GetByUsername(ctx context.Context, username string) (*model.Learner, error) {
	var l model.Learner
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, name, password_hash, created_at
		 FROM learners WHERE username = $1`,
		username,
	).Scan(&l.ID, &l.Username, &l.Name, &l.PasswordHash, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetByID fetches a learner by id.
func (r *LearnerRepository) GetByID(ctx context.Context, id int) (*model.Learner, error) {
	var l model.Learner
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, name, password_hash, created_at
		 FROM learners WHERE id = $1`,
		id,
	).Scan(&l.ID, &l.Username, &l.Name, &l.PasswordHash, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Create inserts a learner and returns the assigned id.
func (r *LearnerRepository) Create(ctx context.Context, l *model.Learner) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO learners (username, name, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		l.Username, l.Name, l.PasswordHash,
	).Scan(&l.ID, &l.CreatedAt)
}
