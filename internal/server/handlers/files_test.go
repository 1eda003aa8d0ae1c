package handlers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/foxhound/internal/common"
	"github.com/dmitrijs2005/foxhound/internal/ids"
	"github.com/dmitrijs2005/foxhound/internal/server/models"
	"github.com/dmitrijs2005/foxhound/internal/server/rpc"
	"github.com/dmitrijs2005/foxhound/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFile() *models.File {
	hash, _ := models.ParseHash(sha256Hex)
	return &models.File{
		ID:              77,
		Name:            "notes.txt",
		Length:          12,
		Tags:            nil,
		UploadTimestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("EET", 2*3600)),
		Type:            models.FileTypeDocument,
		Hash:            hash,
	}
}

func TestListFiles(t *testing.T) {
	f := &fakeFiles{list: func() ([]services.FileEntry, error) {
		return []services.FileEntry{{File: testFile(), Indexing: models.IndexingError}}, nil
	}}

	got, err := newHandlers(nil, f).ListFiles(context.Background(), rpc.Params{})
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(`[{
		"id":%q,"name":"notes.txt","tags":[],
		"upload_timestamp":"2024-01-02T01:04:05Z","relevance_timestamp":null,
		"length":12,"hash":%q,"indexing_state":-1,"type":"document"}]`, ids.Encode(77), sha256Hex), toJSON(t, got))
}

func TestGetFile(t *testing.T) {
	f := &fakeFiles{get: func(id int64) (services.FileEntry, error) {
		if id != 77 {
			return services.FileEntry{}, common.ErrorNotFound
		}
		file := testFile()
		file.Type = ""
		return services.FileEntry{File: file, Indexing: models.IndexingFinished}, nil
	}}
	h := newHandlers(nil, f)

	got, err := h.GetFile(context.Background(), params(t, `{"file_id":"`+ids.Encode(77)+`"}`))
	require.NoError(t, err)
	p := got.(filePresentation)
	assert.Equal(t, "plain", p.Type)
	assert.Equal(t, 4, p.IndexingState)

	_, err = h.GetFile(context.Background(), params(t, `{"file_id":"`+ids.Encode(78)+`"}`))
	requireRPCError(t, err, rpc.CodeNotFound, "file_id does not correspond to a file.")

	_, err = h.GetFile(context.Background(), params(t, `{}`))
	requireRPCError(t, err, rpc.CodeInvalidParams, "No file_id provided.")

	_, err = h.GetFile(context.Background(), params(t, `{"file_id":"short"}`))
	requireRPCError(t, err, rpc.CodeInvalidParams, "file_id is not a valid file ID.")
}

func TestIndexingProgress(t *testing.T) {
	f := &fakeFiles{state: func(id int64) (*models.FileIndexingState, error) {
		if id == 1 {
			return &models.FileIndexingState{FileID: 1, State: models.IndexingIngest}, nil
		}
		return nil, common.ErrorNotFound
	}}
	h := newHandlers(nil, f)

	got, err := h.IndexingProgress(context.Background(), params(t, `{"file_id":"`+ids.Encode(1)+`"}`))
	require.NoError(t, err)
	assert.Equal(t, 3, got)

	_, err = h.IndexingProgress(context.Background(), params(t, `{"file_id":"`+ids.Encode(2)+`"}`))
	requireRPCError(t, err, rpc.CodeNotFound, "file_id does not correspond to a file.")
}

func TestIndexingError(t *testing.T) {
	f := &fakeFiles{failure: func(id int64) (*models.IndexingErrorContext, error) {
		switch id {
		case 1:
			return &models.IndexingErrorContext{
				Message:          "Sorry, an error has occured.",
				Exception:        "*errors.errorString",
				ExceptionMessage: "object vanished",
				Location:         "plaintext.go(40)",
				Trace:            "goroutine 1",
			}, nil
		case 2:
			return nil, services.ErrNotInErrorState
		default:
			return nil, common.ErrorNotFound
		}
	}}
	h := newHandlers(nil, f)

	got, err := h.IndexingError(context.Background(), params(t, `{"file_id":"`+ids.Encode(1)+`"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"stage":1,"message":"Sorry, an error has occured.",
		"log":"*errors.errorString: object vanished\nat plaintext.go(40)\ngoroutine 1"}`, toJSON(t, got))

	_, err = h.IndexingError(context.Background(), params(t, `{"file_id":"`+ids.Encode(2)+`"}`))
	requireRPCError(t, err, rpc.CodeState, "The file has not failed indexing.")

	_, err = h.IndexingError(context.Background(), params(t, `{"file_id":"`+ids.Encode(3)+`"}`))
	requireRPCError(t, err, rpc.CodeNotFound, "file_id does not correspond to a file.")
}

func TestRequestDownload(t *testing.T) {
	boom := errors.New("signer offline")
	f := &fakeFiles{download: func(id int64) (string, error) {
		switch id {
		case 1:
			return "https://signed/get", nil
		case 2:
			return "", boom
		default:
			return "", common.ErrorNotFound
		}
	}}
	h := newHandlers(nil, f)

	got, err := h.RequestDownload(context.Background(), params(t, `{"file_id":"`+ids.Encode(1)+`"}`))
	require.NoError(t, err)
	assert.Equal(t, "https://signed/get", got)

	_, err = h.RequestDownload(context.Background(), params(t, `{"file_id":"`+ids.Encode(2)+`"}`))
	assert.ErrorIs(t, err, boom)

	_, err = h.RequestDownload(context.Background(), params(t, `{"file_id":"`+ids.Encode(3)+`"}`))
	requireRPCError(t, err, rpc.CodeNotFound, "file_id does not correspond to a file.")
}
