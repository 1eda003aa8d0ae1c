package models

import (
	"encoding/json"
	"time"
)

// IndexingState is the stage a file has reached in the indexing pipeline.
type IndexingState string

const (
	IndexingQueued     IndexingState = "queued"
	IndexingTransform  IndexingState = "transform"
	IndexingTranscribe IndexingState = "transcribe"
	IndexingIngest     IndexingState = "ingest"
	IndexingFinished   IndexingState = "finished"
	IndexingError      IndexingState = "error"
)

// Code is the numeric form exposed over RPC.
func (s IndexingState) Code() int {
	switch s {
	case IndexingTransform:
		return 1
	case IndexingTranscribe:
		return 2
	case IndexingIngest:
		return 3
	case IndexingFinished:
		return 4
	case IndexingError:
		return -1
	default:
		return 0
	}
}

// IndexingErrorContext describes why indexing failed.
type IndexingErrorContext struct {
	Message          string `json:"message"`
	Exception        string `json:"exception"`
	ExceptionMessage string `json:"exception_message"`
	Location         string `json:"location"`
	Trace            string `json:"trace"`
}

// FileIndexingState is the indexing progress row for one file. ErrorContext
// is set exactly when State is IndexingError.
type FileIndexingState struct {
	FileID       int64
	State        IndexingState
	ErrorContext *IndexingErrorContext
	LastActivity time.Time
}

// ErrorContextJSON returns the JSON column value, or nil when unset.
func (s *FileIndexingState) ErrorContextJSON() ([]byte, error) {
	if s.ErrorContext == nil {
		return nil, nil
	}
	return json.Marshal(s.ErrorContext)
}
