package ipc

import "time"

// StartRequest asks the daemon to start the pipeline.
type StartRequest struct{}

// StartResponse reports the outcome of a start request.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest asks the daemon to stop the pipeline.
type StopRequest struct{}

// StopResponse reports the outcome of a stop request.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest asks for the daemon runtime snapshot.
type StatusRequest struct{}

// ServiceStatus is one pipeline stage's state in a status response.
type ServiceStatus struct {
	Name    string    `json:"name"`
	State   string    `json:"state"`
	LastRun time.Time `json:"last_run"`
	Running bool      `json:"running"`
}

// BookProgress is one tracked book's chapter-stage counts.
type BookProgress struct {
	BookID     int64  `json:"book_id"`
	Title      string `json:"title"`
	Discovered int    `json:"discovered"`
	Bought     int    `json:"bought"`
	Queued     int    `json:"queued"`
	Published  int    `json:"published"`
}

// StatusResponse is the daemon runtime snapshot.
type StatusResponse struct {
	Running      bool            `json:"running"`
	PID          int             `json:"pid"`
	ShelfDBPath  string          `json:"shelf_db_path"`
	LockFilePath string          `json:"lock_file_path"`
	Services     []ServiceStatus `json:"services"`
}

// QueueRequest asks for the per-book progress listing.
type QueueRequest struct{}

// QueueResponse lists tracked books and their stage counts.
type QueueResponse struct {
	Books []BookProgress `json:"books"`
}

// PingRequest asks the pipeline for an immediate library check.
type PingRequest struct{}

// PingResponse acknowledges a ping.
type PingResponse struct {
	Accepted bool `json:"accepted"`
}

// ErrorsRequest drains the pipeline's error reports.
type ErrorsRequest struct{}

// ErrorReport is one stage failure.
type ErrorReport struct {
	Component  string    `json:"component"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ErrorsResponse carries the drained reports.
type ErrorsResponse struct {
	Reports []ErrorReport `json:"reports"`
}

// PastesRequest drains the pipeline's completed pastes.
type PastesRequest struct{}

// Paste is one completed upload.
type Paste struct {
	URL        string `json:"url"`
	BookID     int64  `json:"book_id"`
	Chapters   int    `json:"chapters"`
	FirstIndex int    `json:"first_index"`
	LastIndex  int    `json:"last_index"`
}

// PastesResponse carries the drained pastes.
type PastesResponse struct {
	Pastes []Paste `json:"pastes"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the outcome of a notification test.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
