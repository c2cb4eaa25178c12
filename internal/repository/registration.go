package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jimyungkoh/hhplus-lecture-registration-system/internal/model"
)

// RegistrationRepository is the write side of storage for admissions: it
// performs the counter increment and the registration insert inside a
// caller-owned transaction, backed by the UNIQUE (user_id, lecture_id)
// constraint.
type RegistrationRepository struct{}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository() *RegistrationRepository {
	return &RegistrationRepository{}
}

// Exists reports whether the user already holds a registration for the lecture.
func (r *RegistrationRepository) Exists(ctx context.Context, db DB, userID, lectureID string) (bool, error) {
	var count int
	err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE user_id = $1 AND lecture_id = $2`,
		userID, lectureID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return count > 0, nil
}

// Admit increments the lecture's registrant counter and inserts the
// registration row. Both writes live in the caller's transaction and commit or
// roll back as one unit.
//
// The capacity guard in the UPDATE's WHERE clause and the uniqueness
// constraint on the INSERT are authoritative: they hold even if the caller's
// advisory checks raced with a concurrent admit.
func (r *RegistrationRepository) Admit(ctx context.Context, tx DB, userID, lectureID string) (*model.Registration, error) {
	tag, err := tx.Exec(ctx,
		`UPDATE lectures
		 SET current_registrations = current_registrations + 1, updated_at = now()
		 WHERE id = $1 AND current_registrations < capacity`,
		lectureID,
	)
	if err != nil {
		if IsSerializationFailure(err) {
			return nil, fmt.Errorf("increment registrations: %w", ErrAdmissionConflict)
		}
		return nil, fmt.Errorf("increment registrations: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrLectureFull
	}

	reg := &model.Registration{
		ID:        uuid.New().String(),
		UserID:    userID,
		LectureID: lectureID,
		CreatedAt: time.Now().UTC(),
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO registrations (id, user_id, lecture_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		reg.ID, reg.UserID, reg.LectureID, reg.CreatedAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, ErrAlreadyRegistered
		case IsSerializationFailure(err):
			return nil, fmt.Errorf("insert registration: %w", ErrAdmissionConflict)
		default:
			return nil, fmt.Errorf("insert registration: %w", err)
		}
	}
	return reg, nil
}

// ListByUser returns the lectures the user is registered for, oldest
// registration first.
func (r *RegistrationRepository) ListByUser(ctx context.Context, db DB, userID string) ([]model.RegisteredLecture, error) {
	rows, err := db.Query(ctx,
		`SELECT l.id, l.title, l.instructor
		 FROM registrations r
		 JOIN lectures l ON l.id = r.lecture_id
		 WHERE r.user_id = $1
		 ORDER BY r.created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var lectures []model.RegisteredLecture
	for rows.Next() {
		var l model.RegisteredLecture
		if err := rows.Scan(&l.ID, &l.Title, &l.Instructor); err != nil {
			return nil, fmt.Errorf("scan registered lecture: %w", err)
		}
		lectures = append(lectures, l)
	}
	return lectures, rows.Err()
}
