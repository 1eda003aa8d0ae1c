package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/foxhound/internal/common"
	"github.com/dmitrijs2005/foxhound/internal/server/rpc"
	"github.com/dmitrijs2005/foxhound/internal/server/services"
)

func fileError(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return rpc.NewError(rpc.CodeNotFound, "file_id does not correspond to a file.")
	}
	return err
}

func (h *Handlers) ListFiles(ctx context.Context, _ rpc.Params) (any, error) {
	list, err := h.files.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]filePresentation, 0, len(list))
	for _, e := range list {
		out = append(out, presentFile(e.File, e.Indexing))
	}
	return out, nil
}

func (h *Handlers) GetFile(ctx context.Context, p rpc.Params) (any, error) {
	id, err := fileID(p)
	if err != nil {
		return nil, err
	}
	e, err := h.files.Get(ctx, id)
	if err != nil {
		return nil, fileError(err)
	}
	return presentFile(e.File, e.Indexing), nil
}

func (h *Handlers) IndexingProgress(ctx context.Context, p rpc.Params) (any, error) {
	id, err := fileID(p)
	if err != nil {
		return nil, err
	}
	st, err := h.files.IndexingState(ctx, id)
	if err != nil {
		return nil, fileError(err)
	}
	return st.State.Code(), nil
}

func (h *Handlers) IndexingError(ctx context.Context, p rpc.Params) (any, error) {
	id, err := fileID(p)
	if err != nil {
		return nil, err
	}
	ec, err := h.files.IndexingError(ctx, id)
	if errors.Is(err, services.ErrNotInErrorState) {
		return nil, rpc.NewError(rpc.CodeState, "The file has not failed indexing.")
	}
	if err != nil {
		return nil, fileError(err)
	}
	return indexingErrorPresentation{
		// Only the ingest stage can fail so far.
		Stage:   1,
		Message: ec.Message,
		Log:     fmt.Sprintf("%s: %s\nat %s\n%s", ec.Exception, ec.ExceptionMessage, ec.Location, ec.Trace),
	}, nil
}

func (h *Handlers) RequestDownload(ctx context.Context, p rpc.Params) (any, error) {
	id, err := fileID(p)
	if err != nil {
		return nil, err
	}
	url, err := h.files.RequestDownload(ctx, id)
	if err != nil {
		return nil, fileError(err)
	}
	return url, nil
}
