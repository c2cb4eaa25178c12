// Package model defines the core domain types for the lecture registration system.
package model

import "time"

// Lecture represents one capacity-bounded offering hosted by an instructor.
type Lecture struct {
	ID                   string    `json:"id"`
	Title                string    `json:"title"`
	Instructor           string    `json:"instructor"`
	HostID               string    `json:"hostId"`
	Date                 time.Time `json:"date"`
	Capacity             int       `json:"capacity"`
	CurrentRegistrations int       `json:"currentRegistrations"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Remaining returns the number of available seats.
func (l *Lecture) Remaining() int {
	return l.Capacity - l.CurrentRegistrations
}

// IsFull returns true when no seats remain.
func (l *Lecture) IsFull() bool {
	return l.CurrentRegistrations >= l.Capacity
}

// Registration represents one successful admission of a user to a lecture.
// It is created exactly once, atomically with the lecture's counter increment,
// and is immutable thereafter.
type Registration struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	LectureID string    `json:"lectureId"`
	CreatedAt time.Time `json:"createdAt"`
}

// AvailableLecture is the listing view of a lecture that still has free seats
// on a given day.
type AvailableLecture struct {
	ID                   string    `json:"id"`
	Title                string    `json:"title"`
	Instructor           string    `json:"instructor"`
	Date                 time.Time `json:"date"`
	Capacity             int       `json:"capacity"`
	CurrentRegistrations int       `json:"currentRegistrations"`
}

// RegisteredLecture is one entry of a user's completed-registration listing.
type RegisteredLecture struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Instructor string `json:"instructor"`
}

// RegisterRequest is the payload for registering a user to a lecture.
type RegisterRequest struct {
	UserID    string `json:"userId"`
	LectureID string `json:"lectureId"`
}

// CreateLectureRequest is the payload for provisioning a new lecture.
type CreateLectureRequest struct {
	Title      string    `json:"title"`
	Instructor string    `json:"instructor"`
	HostID     string    `json:"hostId"`
	Date       time.Time `json:"date"`
	Capacity   int       `json:"capacity"`
}

// ErrorResponse is the standard JSON error envelope. Code is a stable
// machine-readable discriminant, independent of the HTTP status.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}
