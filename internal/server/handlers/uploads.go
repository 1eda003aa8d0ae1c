package handlers

import (
	"bytes"
	"context"
	"errors"
	"strconv"

	"github.com/dmitrijs2005/foxhound/internal/common"
	"github.com/dmitrijs2005/foxhound/internal/ids"
	"github.com/dmitrijs2005/foxhound/internal/server/models"
	"github.com/dmitrijs2005/foxhound/internal/server/rpc"
	"github.com/dmitrijs2005/foxhound/internal/server/services"
)

const msgUploadNotFound = "upload_id does not correspond to an in-progress upload."

func (h *Handlers) BeginUpload(ctx context.Context, p rpc.Params) (any, error) {
	raw, ok := p.Lookup("length")
	if !ok {
		return nil, rpc.InvalidParams("length must be a non-negative integer.")
	}
	length, err := integer(raw)
	overflow := errors.Is(err, strconv.ErrRange) && !bytes.HasPrefix(raw, []byte("-"))
	if overflow || err == nil && length > maxSafeInteger {
		return nil, rpc.NewError(rpc.CodeSizeLimitExceeded,
			"The proposed file size exceeds the limit of what can safely transmitted over JSON.")
	}
	if err != nil || length < 0 {
		return nil, rpc.InvalidParams("length must be a non-negative integer.")
	}

	// A non-string hash leaves hex empty, which ParseHash rejects.
	var hex string
	_, _ = p.Get("hash", &hex)
	hash, err := models.ParseHash(hex)
	if err != nil {
		return nil, rpc.InvalidParams("The hash provided is not a valid SHA-1 or SHA-256 hash in hex format.")
	}

	name, err := stringParam(p, "name", "No name provided.", "name must be a string.")
	if err != nil {
		return nil, err
	}

	upload, url, err := h.uploads.Begin(ctx, hash, length, name)
	if err != nil {
		return nil, beginError(err)
	}

	out := presentUpload(upload)
	out.UploadURL = url
	return out, nil
}

func beginError(err error) error {
	var inProgress *services.UploadInProgressError
	var uploaded *services.AlreadyUploadedError
	switch {
	case errors.Is(err, services.ErrSizeLimitExceeded):
		return rpc.NewError(rpc.CodeSizeLimitExceeded, "The proposed file size exceeds the configured limit.")
	case errors.As(err, &inProgress):
		return inProgressError(inProgress)
	case errors.As(err, &uploaded):
		return rpc.NewError(rpc.CodeConflict, "This file has already been uploaded.").
			WithData(ids.Encode(uploaded.File.ID))
	}
	return err
}

func inProgressError(e *services.UploadInProgressError) *rpc.Error {
	rerr := rpc.NewError(rpc.CodeInProgress, "An upload of this file is already in progress.")
	if e.Upload != nil {
		rerr = rerr.WithData(ids.Encode(e.Upload.ID))
	}
	return rerr
}

// uploadError maps a missing upload onto 2404 and passes anything else
// through.
func uploadError(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return rpc.NewError(rpc.CodeNotFound, msgUploadNotFound)
	}
	return err
}

func (h *Handlers) CancelUpload(ctx context.Context, p rpc.Params) (any, error) {
	id, err := uploadID(p)
	if err != nil {
		return nil, err
	}
	if err := h.uploads.Cancel(ctx, id); err != nil {
		return nil, uploadError(err)
	}
	return nil, nil
}

func (h *Handlers) FinishUpload(ctx context.Context, p rpc.Params) (any, error) {
	id, err := uploadID(p)
	if err != nil {
		return nil, err
	}
	name, err := stringParam(p, "name", "No name provided.", "name must be a string.")
	if err != nil {
		return nil, err
	}
	tags, err := tagsParam(p)
	if err != nil {
		return nil, err
	}
	relevance, err := relevanceParam(p)
	if err != nil {
		return nil, err
	}

	f, err := h.uploads.Finish(ctx, id, name, tags, relevance)
	if err != nil {
		var inProgress *services.UploadInProgressError
		var uploaded *services.AlreadyUploadedError
		switch {
		case errors.Is(err, services.ErrSizeLimitExceeded):
			return nil, rpc.NewError(rpc.CodeSizeLimitExceeded,
				"The upload file size exceeds a limit or does not match the size provided initially.")
		case errors.As(err, &inProgress):
			return nil, inProgressError(inProgress)
		case errors.As(err, &uploaded):
			return nil, rpc.NewError(rpc.CodeConflict, "This file has already been uploaded.").
				WithData(ids.Encode(uploaded.File.ID))
		}
		return nil, uploadError(err)
	}

	h.logger.Debug(ctx, "upload finished", "file_id", f.ID)
	return presentFile(f, models.IndexingQueued), nil
}

func (h *Handlers) ReportProgress(ctx context.Context, p rpc.Params) (any, error) {
	id, err := uploadID(p)
	if err != nil {
		return nil, err
	}
	raw, ok := p.Lookup("progress_length")
	if !ok {
		return nil, rpc.InvalidParams("No progress_length provided.")
	}
	reported, err := integer(raw)
	if err != nil {
		return nil, rpc.InvalidParams("progress_length must be an integer.")
	}

	if err := h.uploads.ReportProgress(ctx, id, reported); err != nil {
		return nil, uploadError(err)
	}
	return true, nil
}

func (h *Handlers) GetProgress(ctx context.Context, p rpc.Params) (any, error) {
	id, err := uploadID(p)
	if err != nil {
		return nil, err
	}
	progress, err := h.uploads.GetProgress(ctx, id)
	if err != nil {
		return nil, uploadError(err)
	}
	return progress, nil
}

func (h *Handlers) ListUploads(ctx context.Context, _ rpc.Params) (any, error) {
	list, err := h.uploads.ListInProgress(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]uploadPresentation, 0, len(list))
	for _, u := range list {
		out = append(out, presentUpload(u))
	}
	return out, nil
}
