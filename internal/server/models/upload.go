// Package models defines the value types persisted by the repositories.
package models

import "time"

// Upload is an in-flight transfer that has not been confirmed yet.
//
// An upload with PendingRemovalSince set is buried: it is hidden from every
// read path except the cleanup sweep.
type Upload struct {
	ID          int64
	Hash        Hash
	Length      int64
	StoragePath string
	Name        string
	UploadStart time.Time
	// Progress is the reported fraction in [0, 1].
	Progress            float64
	LastProgressReport  *time.Time
	PendingRemovalSince *time.Time
}

// Buried reports whether the upload has been soft-deleted.
func (u *Upload) Buried() bool {
	return u.PendingRemovalSince != nil
}

// Stale reports whether the upload is older than staleAfter at now.
func (u *Upload) Stale(now time.Time, staleAfter time.Duration) bool {
	return u.UploadStart.Before(now.Add(-staleAfter))
}
