package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medsimlab/clinsim-backend/internal/model"
)

// CaseStudyRepository handles authored case-study persistence. The full
// template (patient, clinical data, items with answer keys, EHR phases)
// lives in one jsonb document per row.
type CaseStudyRepository struct {
	pool *pgxpool.Pool
}

// NewCaseStudyRepository creates a new CaseStudyRepository.
func NewCaseStudyRepository(pool *pgxpool.Pool) *CaseStudyRepository {
	return &CaseStudyRepository{pool: pool}
}

// CaseStudySummary is the listing view: no items, no keys.
type CaseStudySummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ItemCount int       `json:"item_count"`
	CreatedAt time.Time `json:"created_at"`
}

// List returns summaries of all available case studies.
func (r *CaseStudyRepository) List(ctx context.Context) ([]CaseStudySummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, jsonb_array_length(document->'items'), created_at
		 FROM case_studies ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list case studies: %w", err)
	}
	defer rows.Close()

	var out []CaseStudySummary
	for rows.Next() {
		var s CaseStudySummary
		if err := rows.Scan(&s.ID, &s.Title, &s.ItemCount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan case study: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetByID loads and decodes the full case-study template.
func (r *CaseStudyRepository) GetByID(ctx context.Context, id string) (*model.CaseStudy, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx,
		`SELECT document FROM case_studies WHERE id = $1`, id,
	).Scan(&doc)
	if err != nil {
		return nil, err
	}

	var cs model.CaseStudy
	if err := json.Unmarshal(doc, &cs); err != nil {
		return nil, fmt.Errorf("decode case study %s: %w", id, err)
	}
	cs.ID = id
	return &cs, nil
}

// Upsert stores a case-study template, replacing any prior document.
func (r *CaseStudyRepository) Upsert(ctx context.Context, cs *model.CaseStudy) error {
	doc, err := json.Marshal(cs)
	if err != nil {
		return fmt.Errorf("encode case study: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO case_studies (id, title, document)
		 VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (id) DO UPDATE
		 SET title = EXCLUDED.title, document = EXCLUDED.document, updated_at = NOW()`,
		cs.ID, cs.Title, doc,
	)
	return err
}
