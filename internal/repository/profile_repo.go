package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-matching/internal/db"
	"github.com/oggyb/muzz-matching/internal/model"
)

// ProfileRepository is the profile directory: read-only card projections
// backed by the profiles table.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new repository bound to the given DB connection.
func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

// GetCardsByIDs returns cards for the given ids.
//
// Behavior:
//   - Order is not guaranteed to match the input.
//   - Unknown or inactive ids are silently omitted.
//
// Example:
//
//	repo.GetCardsByIDs(ctx, []string{"user-1", "user-2"})
func (r *ProfileRepository) GetCardsByIDs(ctx context.Context, ids []string) ([]model.Card, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []db.Profile
	err := r.db.WithContext(ctx).
		Where("id IN ? AND active = ?", ids, true).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toCards(rows), nil
}

// GetCardsForRecommendation returns a seed batch of active profiles that are
// not in excludeIDs, most recently active first.
//
// Example:
//
//	repo.GetCardsForRecommendation(ctx, []string{"user-1"}, 50)
func (r *ProfileRepository) GetCardsForRecommendation(ctx context.Context, excludeIDs []string, limit int) ([]model.Card, error) {
	query := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("last_active_at DESC, id ASC").
		Limit(limit)
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}

	var rows []db.Profile
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toCards(rows), nil
}

func toCards(rows []db.Profile) []model.Card {
	cards := make([]model.Card, 0, len(rows))
	for _, p := range rows {
		cards = append(cards, p.Card())
	}
	return cards
}
