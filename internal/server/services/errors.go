package services

import (
	"errors"

	"github.com/dmitrijs2005/foxhound/internal/server/models"
)

// ErrSizeLimitExceeded covers a declared length above the limit as well as
// a stored object whose size is too large or differs from the declaration.
var ErrSizeLimitExceeded = errors.New("size limit exceeded")

// ErrNotInErrorState is returned when asking for the indexing error of a
// file whose indexing has not failed.
var ErrNotInErrorState = errors.New("file has not failed indexing")

// AlreadyUploadedError reports that a file with the same hash exists.
type AlreadyUploadedError struct {
	File *models.File
}

func (e *AlreadyUploadedError) Error() string {
	return "file already uploaded"
}

// UploadInProgressError reports a live upload for the same hash, or a
// finish attempted before the object reached storage.
type UploadInProgressError struct {
	Upload *models.Upload
}

func (e *UploadInProgressError) Error() string {
	return "upload in progress"
}
