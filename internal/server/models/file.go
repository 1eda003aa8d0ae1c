package models

import (
	"slices"
	"time"
)

// FileType classifies a file's content for indexing.
type FileType string

const (
	FileTypePlain    FileType = "plain"
	FileTypeDocument FileType = "document"
	FileTypeMedia    FileType = "media"
)

// File is a finalized upload. Its ID is generated independently of the
// upload it came from.
type File struct {
	ID                 int64
	Name               string
	Length             int64
	StoragePath        string
	Tags               []string
	UploadTimestamp    time.Time
	RelevanceTimestamp *time.Time
	// Type is empty until indexing has classified the content.
	Type FileType
	Hash Hash
}

// NewFileFromUpload builds the File that finalizes u. Tags are treated as a
// set: duplicates collapse and the result is sorted. The ID is left zero for
// the repository to allocate.
func NewFileFromUpload(u *Upload, name string, tags []string, relevance *time.Time) *File {
	set := slices.Clone(tags)
	slices.Sort(set)
	set = slices.Compact(set)
	if set == nil {
		set = []string{}
	}

	return &File{
		Name:               name,
		Length:             u.Length,
		StoragePath:        u.StoragePath,
		Tags:               set,
		UploadTimestamp:    u.UploadStart,
		RelevanceTimestamp: relevance,
		Hash:               u.Hash,
	}
}
