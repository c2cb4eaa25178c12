package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jimyungkoh/hhplus-lecture-registration-system/internal/model"
)

// LectureRepository is the read side for lectures: it resolves a lecture by id
// and lists lectures by date window. It never mutates capacity state.
type LectureRepository struct{}

// NewLectureRepository constructs a LectureRepository.
func NewLectureRepository() *LectureRepository {
	return &LectureRepository{}
}

// GetByID returns a single lecture or ErrLectureNotFound. When db is a
// transaction the read observes that transaction's pending writes.
func (r *LectureRepository) GetByID(ctx context.Context, db DB, id string) (*model.Lecture, error) {
	var l model.Lecture
	err := db.QueryRow(ctx,
		`SELECT id, title, instructor, host_id, date, capacity, current_registrations, created_at, updated_at
		 FROM lectures WHERE id = $1`,
		id,
	).Scan(&l.ID, &l.Title, &l.Instructor, &l.HostID, &l.Date, &l.Capacity,
		&l.CurrentRegistrations, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLectureNotFound
		}
		return nil, fmt.Errorf("get lecture: %w", err)
	}
	return &l, nil
}

// ListBetween returns all lectures scheduled in [from, to), ordered by date.
func (r *LectureRepository) ListBetween(ctx context.Context, db DB, from, to time.Time) ([]model.Lecture, error) {
	rows, err := db.Query(ctx,
		`SELECT id, title, instructor, host_id, date, capacity, current_registrations, created_at, updated_at
		 FROM lectures
		 WHERE date >= $1 AND date < $2
		 ORDER BY date ASC`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list lectures: %w", err)
	}
	defer rows.Close()

	var lectures []model.Lecture
	for rows.Next() {
		var l model.Lecture
		if err := rows.Scan(&l.ID, &l.Title, &l.Instructor, &l.HostID, &l.Date, &l.Capacity,
			&l.CurrentRegistrations, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan lecture: %w", err)
		}
		lectures = append(lectures, l)
	}
	return lectures, rows.Err()
}

// Create inserts a new lecture and returns it with a generated UUID.
// Provisioning runs outside the admission path and never touches
// current_registrations after creation.
func (r *LectureRepository) Create(ctx context.Context, db DB, req model.CreateLectureRequest) (*model.Lecture, error) {
	now := time.Now().UTC()
	lecture := &model.Lecture{
		ID:                   uuid.New().String(),
		Title:                req.Title,
		Instructor:           req.Instructor,
		HostID:               req.HostID,
		Date:                 req.Date,
		Capacity:             req.Capacity,
		CurrentRegistrations: 0,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	_, err := db.Exec(ctx,
		`INSERT INTO lectures (id, title, instructor, host_id, date, capacity, current_registrations, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		lecture.ID, lecture.Title, lecture.Instructor, lecture.HostID, lecture.Date,
		lecture.Capacity, lecture.CurrentRegistrations, lecture.CreatedAt, lecture.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert lecture: %w", err)
	}
	return lecture, nil
}
