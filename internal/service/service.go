// Package service implements the admission controller and the read-side
// orchestration between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jimyungkoh/hhplus-lecture-registration-system/internal/model"
	"github.com/jimyungkoh/hhplus-lecture-registration-system/internal/repository"
)

// Store is the transactional storage client. Plain reads run against it
// directly; the admission path opens a transaction on it.
// *pgxpool.Pool satisfies it.
type Store interface {
	repository.DB
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// LectureDirectory resolves lectures within a caller-supplied scope.
type LectureDirectory interface {
	GetByID(ctx context.Context, db repository.DB, id string) (*model.Lecture, error)
	ListBetween(ctx context.Context, db repository.DB, from, to time.Time) ([]model.Lecture, error)
	Create(ctx context.Context, db repository.DB, req model.CreateLectureRequest) (*model.Lecture, error)
}

// RegistrationLedger is the write side of storage for admissions.
type RegistrationLedger interface {
	Exists(ctx context.Context, db repository.DB, userID, lectureID string) (bool, error)
	Admit(ctx context.Context, tx repository.DB, userID, lectureID string) (*model.Registration, error)
	ListByUser(ctx context.Context, db repository.DB, userID string) ([]model.RegisteredLecture, error)
}

// LectureService orchestrates lecture registration. All capacity state lives
// in the store; the service holds no locks or caches of its own, so any number
// of instances can run against the same database.
type LectureService struct {
	log           *slog.Logger
	store         Store
	lectures      LectureDirectory
	registrations RegistrationLedger
	maxWait       time.Duration
	timeout       time.Duration
}

// NewLectureService constructs a LectureService. maxWait bounds acquiring the
// admission transaction; timeout bounds its total execution.
func NewLectureService(
	log *slog.Logger,
	store Store,
	lectures LectureDirectory,
	registrations RegistrationLedger,
	maxWait, timeout time.Duration,
) *LectureService {
	return &LectureService{
		log:           log,
		store:         store,
		lectures:      lectures,
		registrations: registrations,
		maxWait:       maxWait,
		timeout:       timeout,
	}
}

// Register admits a user to a lecture on a first-come-first-served basis.
//
// The whole attempt runs inside one serializable transaction: resolve the
// lecture, check capacity, check for an existing registration, then increment
// the counter and insert the registration row. The in-transaction checks are
// advisory fast-fails; correctness comes from the isolation level plus the
// capacity guard and uniqueness constraint enforced by the ledger's writes.
//
// Failures map to the sentinel errors in the repository package:
// ErrLectureNotFound, ErrLectureFull, ErrAlreadyRegistered,
// ErrAdmissionConflict (safely retryable) and ErrTimeout (safely retryable).
// The service never retries on its own.
func (s *LectureService) Register(ctx context.Context, userID, lectureID string) (*model.Registration, error) {
	userID = strings.TrimSpace(userID)
	lectureID = strings.TrimSpace(lectureID)
	if userID == "" {
		return nil, fmt.Errorf("userId is required")
	}
	if lectureID == "" {
		return nil, fmt.Errorf("lectureId is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reg, err := s.admit(ctx, userID, lectureID)
	if err != nil {
		err = s.classify(ctx, err)
		if errors.Is(err, repository.ErrAdmissionConflict) || errors.Is(err, repository.ErrTimeout) {
			s.log.Warn("admission aborted",
				slog.String("userId", userID),
				slog.String("lectureId", lectureID),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}

	s.log.Info("admission committed",
		slog.String("userId", userID),
		slog.String("lectureId", lectureID),
		slog.String("registrationId", reg.ID),
	)
	return reg, nil
}

// admit runs the check-and-commit sequence as one all-or-nothing transaction.
func (s *LectureService) admit(ctx context.Context, userID, lectureID string) (*model.Registration, error) {
	beginCtx, beginCancel := context.WithTimeout(ctx, s.maxWait)
	tx, err := s.store.BeginTx(beginCtx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	beginCancel()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback is a no-op after a successful commit. It must not inherit the
	// attempt's deadline or the connection would be poisoned on timeout.
	defer tx.Rollback(context.WithoutCancel(ctx))

	lecture, err := s.lectures.GetByID(ctx, tx, lectureID)
	if err != nil {
		return nil, err
	}
	if lecture.IsFull() {
		return nil, repository.ErrLectureFull
	}

	registered, err := s.registrations.Exists(ctx, tx, userID, lectureID)
	if err != nil {
		return nil, err
	}
	if registered {
		return nil, repository.ErrAlreadyRegistered
	}

	reg, err := s.registrations.Admit(ctx, tx, userID, lectureID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return reg, nil
}

// classify maps low-level failures onto the error taxonomy. Business
// rejections pass through; serialization conflicts and deadline expiry become
// the two retryable kinds.
func (s *LectureService) classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrLectureNotFound),
		errors.Is(err, repository.ErrLectureFull),
		errors.Is(err, repository.ErrAlreadyRegistered),
		errors.Is(err, repository.ErrAdmissionConflict):
		return err
	case repository.IsSerializationFailure(err):
		return repository.ErrAdmissionConflict
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(ctx.Err(), context.DeadlineExceeded):
		return repository.ErrTimeout
	default:
		return err
	}
}

// AvailableLectures lists lectures on the given calendar day that still have
// free seats. The day runs 00:00:00.000–23:59:59.999 in the server's zone.
func (s *LectureService) AvailableLectures(ctx context.Context, dateString string) ([]model.AvailableLecture, error) {
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(dateString), time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", dateString)
	}
	startOfDay := day
	endOfDay := day.AddDate(0, 0, 1)

	lectures, err := s.lectures.ListBetween(ctx, s.store, startOfDay, endOfDay)
	if err != nil {
		return nil, fmt.Errorf("list available lectures: %w", err)
	}

	available := make([]model.AvailableLecture, 0, len(lectures))
	for _, l := range lectures {
		if l.IsFull() {
			continue
		}
		available = append(available, model.AvailableLecture{
			ID:                   l.ID,
			Title:                l.Title,
			Instructor:           l.Instructor,
			Date:                 l.Date,
			Capacity:             l.Capacity,
			CurrentRegistrations: l.CurrentRegistrations,
		})
	}
	return available, nil
}

// UserRegistrations lists the lectures the user has successfully registered for.
func (s *LectureService) UserRegistrations(ctx context.Context, userID string) ([]model.RegisteredLecture, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("userId is required")
	}
	return s.registrations.ListByUser(ctx, s.store, userID)
}

// CreateLecture validates the request and provisions a new lecture.
func (s *LectureService) CreateLecture(ctx context.Context, req model.CreateLectureRequest) (*model.Lecture, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Instructor = strings.TrimSpace(req.Instructor)
	if req.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if req.Instructor == "" {
		return nil, fmt.Errorf("instructor is required")
	}
	if req.Date.IsZero() {
		return nil, fmt.Errorf("date is required")
	}
	if req.Capacity <= 0 {
		return nil, fmt.Errorf("capacity must be a positive integer")
	}
	if req.Capacity > 100_000 {
		return nil, fmt.Errorf("capacity cannot exceed 100,000")
	}
	return s.lectures.Create(ctx, s.store, req)
}
