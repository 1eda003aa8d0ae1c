package handlers

import (
	"time"

	"github.com/dmitrijs2005/foxhound/internal/ids"
	"github.com/dmitrijs2005/foxhound/internal/server/models"
)

type filePresentation struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Tags               []string `json:"tags"`
	UploadTimestamp    string   `json:"upload_timestamp"`
	RelevanceTimestamp *string  `json:"relevance_timestamp"`
	Length             int64    `json:"length"`
	Hash               string   `json:"hash"`
	IndexingState      int      `json:"indexing_state"`
	Type               string   `json:"type"`
}

func presentFile(f *models.File, state models.IndexingState) filePresentation {
	out := filePresentation{
		ID:              ids.Encode(f.ID),
		Name:            f.Name,
		Tags:            f.Tags,
		UploadTimestamp: f.UploadTimestamp.UTC().Format(time.RFC3339),
		Length:          f.Length,
		Hash:            f.Hash.Hex(),
		IndexingState:   state.Code(),
		Type:            string(models.FileTypePlain),
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if f.RelevanceTimestamp != nil {
		s := f.RelevanceTimestamp.UTC().Format(time.RFC3339)
		out.RelevanceTimestamp = &s
	}
	if f.Type != "" {
		out.Type = string(f.Type)
	}
	return out
}

type uploadPresentation struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Progress  float64 `json:"progress"`
	UploadURL string  `json:"upload_url,omitempty"`
}

func presentUpload(u *models.Upload) uploadPresentation {
	return uploadPresentation{ID: ids.Encode(u.ID), Name: u.Name, Progress: u.Progress}
}

type indexingErrorPresentation struct {
	Stage   int    `json:"stage"`
	Message string `json:"message"`
	Log     string `json:"log"`
}
