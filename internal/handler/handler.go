// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jimyungkoh/hhplus-lecture-registration-system/internal/model"
	"github.com/jimyungkoh/hhplus-lecture-registration-system/internal/repository"
)

// Machine-readable error codes carried in the error envelope alongside the
// HTTP status.
const (
	codeLectureNotFound   = 1001
	codeLectureFull       = 2001
	codeAlreadyRegistered = 2002
	codeAdmissionConflict = 2003
	codeTimeout           = 2004
	codeBadRequest        = 4000
	codeInternal          = 5000
)

// Service is the application surface the handlers depend on.
type Service interface {
	Register(ctx context.Context, userID, lectureID string) (*model.Registration, error)
	AvailableLectures(ctx context.Context, dateString string) ([]model.AvailableLecture, error)
	UserRegistrations(ctx context.Context, userID string) ([]model.RegisteredLecture, error)
	CreateLecture(ctx context.Context, req model.CreateLectureRequest) (*model.Lecture, error)
}

// LectureHandler holds all HTTP handlers for the lecture registration API.
type LectureHandler struct {
	svc Service
}

// NewLectureHandler constructs a LectureHandler.
func NewLectureHandler(svc Service) *LectureHandler {
	return &LectureHandler{svc: svc}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status, code int, msg string) {
	writeJSON(w, status, model.ErrorResponse{StatusCode: status, Code: code, Message: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// Register handles POST /lectures/register
// Admits a user to a lecture on a first-come-first-served basis.
func (h *LectureHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.svc.Register(r.Context(), req.UserID, req.LectureID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLectureNotFound):
			writeError(w, http.StatusNotFound, codeLectureNotFound, "lecture not found")
		case errors.Is(err, repository.ErrLectureFull):
			writeError(w, http.StatusConflict, codeLectureFull, "lecture is fully booked")
		case errors.Is(err, repository.ErrAlreadyRegistered):
			writeError(w, http.StatusConflict, codeAlreadyRegistered, "user is already registered for this lecture")
		case errors.Is(err, repository.ErrAdmissionConflict):
			writeError(w, http.StatusConflict, codeAdmissionConflict, "registration failed, please retry")
		case errors.Is(err, repository.ErrTimeout):
			writeError(w, http.StatusGatewayTimeout, codeTimeout, "registration timed out, please retry")
		default:
			writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, reg)
}

// AvailableLectures handles GET /lectures/available/{date}
// Lists lectures with free seats on the given calendar day.
func (h *LectureHandler) AvailableLectures(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")

	lectures, err := h.svc.AvailableLectures(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if lectures == nil {
		lectures = []model.AvailableLecture{}
	}

	writeJSON(w, http.StatusOK, lectures)
}

// UserRegistrations handles GET /lectures/registrations/{userId}
// Lists the lectures the user has registered for.
func (h *LectureHandler) UserRegistrations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	lectures, err := h.svc.UserRegistrations(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to list registrations")
		return
	}

	if lectures == nil {
		lectures = []model.RegisteredLecture{}
	}

	writeJSON(w, http.StatusOK, lectures)
}

// CreateLecture handles POST /lectures
// Provisions a new lecture with the given title, instructor, date, and capacity.
func (h *LectureHandler) CreateLecture(w http.ResponseWriter, r *http.Request) {
	var req model.CreateLectureRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	lecture, err := h.svc.CreateLecture(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, lecture)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
