package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/medsimlab/clinsim-backend/internal/config"
	"github.com/medsimlab/clinsim-backend/internal/model"
	"github.com/medsimlab/clinsim-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CaseStudyService supplies immutable case-study templates and their
// learner-safe payloads. Payloads are cached in Redis; templates are read
// through to PostgreSQL.
type CaseStudyService struct {
	repo *repository.CaseStudyRepository
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewCaseStudyService creates a new CaseStudyService.
func NewCaseStudyService(repo *repository.CaseStudyRepository, rdb *redis.Client, log zerolog.Logger) *CaseStudyService {
	return &CaseStudyService{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "case_study_service").Logger(),
	}
}

// List returns the available case-study summaries.
func (s *CaseStudyService) List(ctx context.Context) ([]repository.CaseStudySummary, error) {
	return s.repo.List(ctx)
}

// GetTemplate loads the full template, answer keys included. Core use only;
// never returned to the learner.
func (s *CaseStudyService) GetTemplate(ctx context.Context, id string) (*model.CaseStudy, error) {
	return s.repo.GetByID(ctx, id)
}

// GetPayload returns the learner-safe payload, preferring the Redis cache.
func (s *CaseStudyService) GetPayload(ctx context.Context, id string) (*model.CaseStudyPayload, error) {
	key := config.CacheKey.CaseStudyPayloadKey(id)

	cached, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		var payload model.CaseStudyPayload
		if err := json.Unmarshal([]byte(cached), &payload); err == nil {
			return &payload, nil
		}
		// Corrupt cache entry: fall through to rebuild.
		s.rdb.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("payload cache read: %w", err)
	}

	cs, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load case study: %w", err)
	}

	payload := BuildPayload(cs)
	if raw, err := json.Marshal(payload); err == nil {
		if err := s.rdb.Set(ctx, key, raw, 0).Err(); err != nil {
			s.log.Warn().Err(err).Str("case_study_id", id).Msg("Payload cache write failed")
		}
	}
	return payload, nil
}

// PrewarmAllCaches loads every case-study payload into Redis. Called before
// the server accepts traffic so lazy loading cannot stampede PostgreSQL.
func (s *CaseStudyService) PrewarmAllCaches(ctx context.Context) error {
	summaries, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list for prewarm: %w", err)
	}

	for _, summary := range summaries {
		cs, err := s.repo.GetByID(ctx, summary.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("case_study_id", summary.ID).Msg("Prewarm load failed")
			continue
		}
		raw, err := json.Marshal(BuildPayload(cs))
		if err != nil {
			continue
		}
		key := config.CacheKey.CaseStudyPayloadKey(summary.ID)
		if err := s.rdb.Set(ctx, key, raw, 0).Err(); err != nil {
			return fmt.Errorf("prewarm %s: %w", summary.ID, err)
		}
	}

	s.log.Info().Int("count", len(summaries)).Msg("Case study payloads prewarmed")
	return nil
}

// BuildPayload strips answer keys and rationales from a template.
func BuildPayload(cs *model.CaseStudy) *model.CaseStudyPayload {
	items := make([]model.ItemForLearner, 0, len(cs.Items))
	for i := range cs.Items {
		item := &cs.Items[i]

		blanks := make([]model.BlankForLearner, 0, len(item.Blanks))
		for _, b := range item.Blanks {
			blanks = append(blanks, model.BlankForLearner{ID: b.ID, Options: b.Options})
		}
		if len(blanks) == 0 {
			blanks = nil
		}

		maxPoints := item.Scoring.MaxPoints
		if maxPoints <= 0 {
			maxPoints = 1
		}

		items = append(items, model.ItemForLearner{
			ID:            item.ID,
			Type:          item.Type,
			Stem:          item.Stem,
			MediaURL:      item.MediaURL,
			Options:       item.Options,
			MaxSelections: item.MaxSelections,
			MatrixRows:    item.MatrixRows,
			Blanks:        blanks,
			MaxPoints:     maxPoints,
		})
	}

	return &model.CaseStudyPayload{
		CaseStudyID:  cs.ID,
		Title:        cs.Title,
		Patient:      cs.Patient,
		ClinicalData: cs.ClinicalData,
		Items:        items,
	}
}
