package repository_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimyungkoh/hhplus-lecture-registration-system/internal/database"
	"github.com/jimyungkoh/hhplus-lecture-registration-system/internal/model"
	"github.com/jimyungkoh/hhplus-lecture-registration-system/internal/repository"
	"github.com/jimyungkoh/hhplus-lecture-registration-system/internal/service"
)

// setupPool connects to the database named by TEST_DATABASE_URL and applies
// the schema. Tests are skipped when no database is available, following the
// same convention as local development: each test provisions its own lectures
// with generated ids, so a shared database is safe.
func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		t.Skipf("postgres not available: %v", err)
	}
	require.NoError(t, database.Migrate(context.Background(), pool))

	t.Cleanup(pool.Close)
	return pool
}

func createLecture(t *testing.T, pool *pgxpool.Pool, capacity int, date time.Time) *model.Lecture {
	t.Helper()
	lecture, err := repository.NewLectureRepository().Create(context.Background(), pool,
		model.CreateLectureRequest{
			Title:      "test lecture",
			Instructor: "test instructor",
			Date:       date,
			Capacity:   capacity,
		})
	require.NoError(t, err)
	return lecture
}

func newService(pool *pgxpool.Pool) *service.LectureService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return service.NewLectureService(logger, pool,
		repository.NewLectureRepository(), repository.NewRegistrationRepository(),
		4*time.Second, 6*time.Second)
}

// registerWithRetry applies the caller-side retry policy for the two
// retryable failure kinds.
func registerWithRetry(svc *service.LectureService, userID, lectureID string) error {
	var err error
	for attempt := 0; attempt < 25; attempt++ {
		_, err = svc.Register(context.Background(), userID, lectureID)
		if errors.Is(err, repository.ErrAdmissionConflict) || errors.Is(err, repository.ErrTimeout) {
			continue
		}
		return err
	}
	return err
}

func TestLectureRepository_GetByID(t *testing.T) {
	pool := setupPool(t)
	lecture := createLecture(t, pool, 30, time.Now().UTC())

	repo := repository.NewLectureRepository()

	got, err := repo.GetByID(context.Background(), pool, lecture.ID)
	require.NoError(t, err)
	assert.Equal(t, lecture.ID, got.ID)
	assert.Equal(t, 30, got.Capacity)
	assert.Equal(t, 0, got.CurrentRegistrations)

	_, err = repo.GetByID(context.Background(), pool, uuid.New().String())
	assert.ErrorIs(t, err, repository.ErrLectureNotFound)
}

func TestLectureRepository_ListBetween(t *testing.T) {
	pool := setupPool(t)
	repo := repository.NewLectureRepository()

	day := time.Date(2031, 5, 10, 0, 0, 0, 0, time.UTC)
	inside := createLecture(t, pool, 30, day.Add(10*time.Hour))
	createLecture(t, pool, 30, day.AddDate(0, 0, 1)) // next day, excluded

	lectures, err := repo.ListBetween(context.Background(), pool, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, lectures, 1)
	assert.Equal(t, inside.ID, lectures[0].ID)
}

func TestRegistrationRepository_Admit(t *testing.T) {
	pool := setupPool(t)
	lecture := createLecture(t, pool, 30, time.Now().UTC())

	lectures := repository.NewLectureRepository()
	registrations := repository.NewRegistrationRepository()
	userID := uuid.New().String()

	tx, err := pool.BeginTx(context.Background(), pgx.TxOptions{IsoLevel: pgx.Serializable})
	require.NoError(t, err)
	defer tx.Rollback(context.Background())

	reg, err := registrations.Admit(context.Background(), tx, userID, lecture.ID)
	require.NoError(t, err)
	assert.Equal(t, userID, reg.UserID)

	// Read-your-writes inside the same transaction.
	pending, err := lectures.GetByID(context.Background(), tx, lecture.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, pending.CurrentRegistrations)

	require.NoError(t, tx.Commit(context.Background()))

	committed, err := lectures.GetByID(context.Background(), pool, lecture.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, committed.CurrentRegistrations)

	exists, err := registrations.Exists(context.Background(), pool, userID, lecture.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRegistrationRepository_AdmitCapacityGuard(t *testing.T) {
	pool := setupPool(t)
	lecture := createLecture(t, pool, 1, time.Now().UTC())

	registrations := repository.NewRegistrationRepository()

	tx, err := pool.Begin(context.Background())
	require.NoError(t, err)
	_, err = registrations.Admit(context.Background(), tx, uuid.New().String(), lecture.ID)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(context.Background()))

	// The UPDATE's WHERE guard rejects the admit regardless of any advisory
	// pre-check the caller skipped.
	tx, err = pool.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback(context.Background())
	_, err = registrations.Admit(context.Background(), tx, uuid.New().String(), lecture.ID)
	assert.ErrorIs(t, err, repository.ErrLectureFull)
}

func TestRegistrationRepository_AdmitUniquenessBackstop(t *testing.T) {
	pool := setupPool(t)
	lecture := createLecture(t, pool, 30, time.Now().UTC())

	lectures := repository.NewLectureRepository()
	registrations := repository.NewRegistrationRepository()
	userID := uuid.New().String()

	tx, err := pool.Begin(context.Background())
	require.NoError(t, err)
	_, err = registrations.Admit(context.Background(), tx, userID, lecture.ID)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(context.Background()))

	// Second admit for the same pair hits the unique constraint; rolling the
	// transaction back must also discard its counter increment.
	tx, err = pool.Begin(context.Background())
	require.NoError(t, err)
	_, err = registrations.Admit(context.Background(), tx, userID, lecture.ID)
	assert.ErrorIs(t, err, repository.ErrAlreadyRegistered)
	require.NoError(t, tx.Rollback(context.Background()))

	committed, err := lectures.GetByID(context.Background(), pool, lecture.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, committed.CurrentRegistrations)
}

func TestRegistrationRepository_ListByUser(t *testing.T) {
	pool := setupPool(t)
	first := createLecture(t, pool, 30, time.Now().UTC())
	second := createLecture(t, pool, 30, time.Now().UTC())

	svc := newService(pool)
	userID := uuid.New().String()

	require.NoError(t, registerWithRetry(svc, userID, first.ID))
	require.NoError(t, registerWithRetry(svc, userID, second.ID))

	registered, err := repository.NewRegistrationRepository().ListByUser(context.Background(), pool, userID)
	require.NoError(t, err)
	require.Len(t, registered, 2)
	assert.Equal(t, first.ID, registered[0].ID)
	assert.Equal(t, second.ID, registered[1].ID)
	assert.Equal(t, "test instructor", registered[0].Instructor)
}

// Capacity invariant under real contention: 40 distinct users racing for 30
// seats, with the caller retrying serialization conflicts, settle at exactly
// 30 committed registrations.
func TestConcurrentAdmissions_CapacityInvariant(t *testing.T) {
	pool := setupPool(t)
	lecture := createLecture(t, pool, 30, time.Now().UTC())
	svc := newService(pool)

	const attempts = 40
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs <- registerWithRetry(svc, fmt.Sprintf("%s-%d", uuid.New().String(), n), lecture.ID)
		}(i)
	}
	wg.Wait()
	close(errs)

	var admitted, full int
	for err := range errs {
		switch {
		case err == nil:
			admitted++
		case errors.Is(err, repository.ErrLectureFull):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 30, admitted)
	assert.Equal(t, 10, full)

	var count int
	err := pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM registrations WHERE lecture_id = $1`, lecture.ID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 30, count)

	committed, err := repository.NewLectureRepository().GetByID(context.Background(), pool, lecture.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, committed.CurrentRegistrations)
}

// Uniqueness invariant under real contention: the same user racing against
// itself holds exactly one committed registration.
func TestConcurrentAdmissions_SameUser(t *testing.T) {
	pool := setupPool(t)
	lecture := createLecture(t, pool, 30, time.Now().UTC())
	svc := newService(pool)
	userID := uuid.New().String()

	const attempts = 5
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- registerWithRetry(svc, userID, lecture.ID)
		}()
	}
	wg.Wait()
	close(errs)

	var admitted, duplicate int
	for err := range errs {
		switch {
		case err == nil:
			admitted++
		case errors.Is(err, repository.ErrAlreadyRegistered):
			duplicate++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, admitted)
	assert.Equal(t, attempts-1, duplicate)

	committed, err := repository.NewLectureRepository().GetByID(context.Background(), pool, lecture.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, committed.CurrentRegistrations)
}
