package audit

import "errors"

var (
	// ErrStorageNotAvailable indicates the storage backend is unavailable
	ErrStorageNotAvailable = errors.New("audit.storage_unavailable")

	// ErrEventValidation indicates event validation failed
	ErrEventValidation = errors.New("audit.event_validation_failed")

	// ErrBufferFull indicates the recorder buffer is full and the event was dropped
	ErrBufferFull = errors.New("audit.buffer_full")

	// ErrRecorderClosed indicates the recorder no longer accepts events
	ErrRecorderClosed = errors.New("audit.recorder_closed")
)
