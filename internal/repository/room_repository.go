package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campusops/timetable-api/internal/models"
)

// RoomRepository manages persistence for teaching rooms.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs a RoomRepository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// ListEligible returns active rooms, optionally restricted to a set of
// buildings. An empty buildingIDs slice means every building is allowed.
func (r *RoomRepository) ListEligible(ctx context.Context, buildingIDs []string) ([]models.Room, error) {
	query := `SELECT id, building_id, name, capacity, room_type FROM rooms WHERE active = TRUE`
	var args []interface{}

	if len(buildingIDs) > 0 {
		expanded, inArgs, err := sqlx.In(query+" AND building_id IN (?)", buildingIDs)
		if err != nil {
			return nil, fmt.Errorf("build room filter: %w", err)
		}
		query = r.db.Rebind(expanded)
		args = inArgs
	}

	query += " ORDER BY capacity ASC, name ASC"
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, args...); err != nil {
		return nil, fmt.Errorf("list eligible rooms: %w", err)
	}
	return rooms, nil
}
