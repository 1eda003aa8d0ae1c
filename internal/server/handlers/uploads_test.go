package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

const sha256Hex = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func TestBeginUpload_Success(t *testing.T) {
	u := &fakeUploads{begin: func(hash models.Hash, length int64, name string) (*models.Upload, string, error) {
		assert.Equal(t, sha256Hex, hash.Hex())
		assert.Equal(t, int64(1024), length)
		assert.Equal(t, "a.txt", name)
		return &models.Upload{ID: 42, Name: name, Hash: hash, Length: length}, "https://signed/put", nil
	}}
	h := newHandlers(u, nil)

	got, err := h.BeginUpload(context.Background(),
		params(t, `{"hash":"`+strings.ToUpper(sha256Hex)+`","length":1024,"name":"a.txt"}`))
	require.NoError(t, err)
	assert.JSONEq(t,
		fmt.Sprintf(`{"id":%q,"name":"a.txt","progress":0,"upload_url":"https://signed/put"}`, ids.Encode(42)),
		toJSON(t, got))
}

func TestBeginUpload_InvalidParams(t *testing.T) {
	u := &fakeUploads{begin: func(models.Hash, int64, string) (*models.Upload, string, error) {
		t.Fatal("Begin must not be called")
		return nil, "", nil
	}}
	h := newHandlers(u, nil)

	tests := []struct {
		params  string
		code    int
		message string
	}{
		{`{"hash":"` + sha256Hex + `","name":"a"}`, rpc.CodeInvalidParams, "length must be a non-negative integer."},
		{`{"hash":"` + sha256Hex + `","length":-1,"name":"a"}`, rpc.CodeInvalidParams, "length must be a non-negative integer."},
		{`{"hash":"` + sha256Hex + `","length":1.5,"name":"a"}`, rpc.CodeInvalidParams, "length must be a non-negative integer."},
		{`{"hash":"` + sha256Hex + `","length":"10","name":"a"}`, rpc.CodeInvalidParams, "length must be a non-negative integer."},
		{`{"hash":"` + sha256Hex + `","length":9007199254740992,"name":"a"}`, rpc.CodeSizeLimitExceeded,
			"The proposed file size exceeds the limit of what can safely transmitted over JSON."},
		{`{"hash":"` + sha256Hex + `","length":99999999999999999999999,"name":"a"}`, rpc.CodeSizeLimitExceeded,
			"The proposed file size exceeds the limit of what can safely transmitted over JSON."},
		{`{"hash":"abc","length":1,"name":"a"}`, rpc.CodeInvalidParams,
			"The hash provided is not a valid SHA-1 or SHA-256 hash in hex format."},
		{`{"hash":12,"length":1,"name":"a"}`, rpc.CodeInvalidParams,
			"The hash provided is not a valid SHA-1 or SHA-256 hash in hex format."},
		{`{"hash":"` + sha256Hex + `","length":1}`, rpc.CodeInvalidParams, "No name provided."},
		{`{"hash":"` + sha256Hex + `","length":1,"name":["a"]}`, rpc.CodeInvalidParams, "name must be a string."},
	}
	for _, tt := range tests {
		_, err := h.BeginUpload(context.Background(), params(t, tt.params))
		requireRPCError(t, err, tt.code, tt.message)
	}
}

func TestBeginUpload_ServiceErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
		data    any
	}{
		{"size", services.ErrSizeLimitExceeded, rpc.CodeSizeLimitExceeded,
			"The proposed file size exceeds the configured limit.", nil},
		{"in progress", &services.UploadInProgressError{Upload: &models.Upload{ID: 7}}, rpc.CodeInProgress,
			"An upload of this file is already in progress.", ids.Encode(7)},
		{"uploaded", &services.AlreadyUploadedError{File: &models.File{ID: 9}}, rpc.CodeConflict,
			"This file has already been uploaded.", ids.Encode(9)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &fakeUploads{begin: func(models.Hash, int64, string) (*models.Upload, string, error) {
				return nil, "", tt.err
			}}
			_, err := newHandlers(u, nil).BeginUpload(context.Background(),
				params(t, `{"hash":"`+sha256Hex+`","length":1,"name":"a"}`))
			rerr := requireRPCError(t, err, tt.code, tt.message)
			assert.Equal(t, tt.data, rerr.Data)
		})
	}

	boom := errors.New("db down")
	u := &fakeUploads{begin: func(models.Hash, int64, string) (*models.Upload, string, error) { return nil, "", boom }}
	_, err := newHandlers(u, nil).BeginUpload(context.Background(),
		params(t, `{"hash":"`+sha256Hex+`","length":1,"name":"a"}`))
	assert.ErrorIs(t, err, boom)
}

func TestUploadID_Validation(t *testing.T) {
	h := newHandlers(&fakeUploads{}, nil)

	_, err := h.CancelUpload(context.Background(), params(t, `{}`))
	requireRPCError(t, err, rpc.CodeInvalidParams, "No upload_id provided.")

	_, err = h.CancelUpload(context.Background(), params(t, `{"upload_id":null}`))
	requireRPCError(t, err, rpc.CodeInvalidParams, "No upload_id provided.")

	_, err = h.GetProgress(context.Background(), params(t, `{"upload_id":"@@"}`))
	requireRPCError(t, err, rpc.CodeInvalidParams, "upload_id is not a valid upload ID.")

	_, err = h.GetProgress(context.Background(), params(t, `{"upload_id":12}`))
	requireRPCError(t, err, rpc.CodeInvalidParams, "upload_id is not a valid upload ID.")
}

func TestCancelUpload(t *testing.T) {
	var cancelled int64
	u := &fakeUploads{cancel: func(id int64) error {
		cancelled = id
		if id == 2 {
			return common.ErrorNotFound
		}
		return nil
	}}
	h := newHandlers(u, nil)

	got, err := h.CancelUpload(context.Background(), params(t, `{"upload_id":"`+ids.Encode(1)+`"}`))
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, int64(1), cancelled)

	_, err = h.CancelUpload(context.Background(), params(t, `{"upload_id":"`+ids.Encode(2)+`"}`))
	requireRPCError(t, err, rpc.CodeNotFound, "upload_id does not correspond to an in-progress upload.")
}

func TestReportAndGetProgress(t *testing.T) {
	stored := map[int64]float64{}
	u := &fakeUploads{
		report: func(id, reported int64) error {
			stored[id] = float64(reported) / 200
			return nil
		},
		progress: func(id int64) (float64, error) {
			p, ok := stored[id]
			if !ok {
				return 0, common.ErrorNotFound
			}
			return p, nil
		},
	}
	h := newHandlers(u, nil)
	id := ids.Encode(5)

	got, err := h.ReportProgress(context.Background(), params(t, `{"upload_id":"`+id+`","progress_length":50}`))
	require.NoError(t, err)
	assert.Equal(t, true, got)

	got, err = h.GetProgress(context.Background(), params(t, `{"upload_id":"`+id+`"}`))
	require.NoError(t, err)
	assert.Equal(t, 0.25, got)

	_, err = h.GetProgress(context.Background(), params(t, `{"upload_id":"`+ids.Encode(6)+`"}`))
	requireRPCError(t, err, rpc.CodeNotFound, "upload_id does not correspond to an in-progress upload.")

	_, err = h.ReportProgress(context.Background(), params(t, `{"upload_id":"`+id+`"}`))
	requireRPCError(t, err, rpc.CodeInvalidParams, "No progress_length provided.")

	_, err = h.ReportProgress(context.Background(), params(t, `{"upload_id":"`+id+`","progress_length":"50"}`))
	requireRPCError(t, err, rpc.CodeInvalidParams, "progress_length must be an integer.")
}

func TestListUploads(t *testing.T) {
	u := &fakeUploads{list: func() ([]*models.Upload, error) {
		return []*models.Upload{{ID: 1, Name: "a", Progress: 0.5}}, nil
	}}
	got, err := newHandlers(u, nil).ListUploads(context.Background(), rpc.Params{})
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(`[{"id":%q,"name":"a","progress":0.5}]`, ids.Encode(1)), toJSON(t, got))

	u.list = func() ([]*models.Upload, error) { return nil, nil }
	got, err = newHandlers(u, nil).ListUploads(context.Background(), rpc.Params{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, toJSON(t, got))
}

func TestFinishUpload_Success(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	hash, _ := models.ParseHash(sha256Hex)
	u := &fakeUploads{finish: func(id int64, name string, tags []string, relevance *time.Time) (*models.File, error) {
		assert.Equal(t, int64(3), id)
		assert.Equal(t, []string{"x", "y"}, tags)
		require.NotNil(t, relevance)
		assert.True(t, relevance.Equal(time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)))
		return &models.File{ID: 11, Name: name, Tags: tags, UploadTimestamp: start,
			RelevanceTimestamp: relevance, Length: 10, Hash: hash}, nil
	}}

	got, err := newHandlers(u, nil).FinishUpload(context.Background(), params(t,
		`{"upload_id":"`+ids.Encode(3)+`","name":"final","tags":["x","y"],"relevance_timestamp":"2020-01-02T03:04:05Z"}`))
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(`{
		"id":%q,"name":"final","tags":["x","y"],
		"upload_timestamp":"2024-05-01T12:00:00Z","relevance_timestamp":"2020-01-02T03:04:05Z",
		"length":10,"hash":%q,"indexing_state":0,"type":"plain"}`, ids.Encode(11), sha256Hex), toJSON(t, got))
}

func TestFinishUpload_Errors(t *testing.T) {
	id := ids.Encode(3)
	never := &fakeUploads{finish: func(int64, string, []string, *time.Time) (*models.File, error) {
		t.Fatal("Finish must not be called")
		return nil, nil
	}}
	invalid := []struct {
		params  string
		message string
	}{
		{`{"upload_id":"` + id + `","tags":[]}`, "No name provided."},
		{`{"upload_id":"` + id + `","name":1,"tags":[]}`, "name must be a string."},
		{`{"upload_id":"` + id + `","name":"n"}`, "No tags provided."},
		{`{"upload_id":"` + id + `","name":"n","tags":"x"}`, "tags must be an array of strings."},
		{`{"upload_id":"` + id + `","name":"n","tags":[1]}`, "tags must be an array of strings."},
		{`{"upload_id":"` + id + `","name":"n","tags":[],"relevance_timestamp":"yesterday"}`,
			"relevance_timestamp must be a valid RFC 3339 timestamp."},
	}
	for _, tt := range invalid {
		_, err := newHandlers(never, nil).FinishUpload(context.Background(), params(t, tt.params))
		requireRPCError(t, err, rpc.CodeInvalidParams, tt.message)
	}

	outcomes := []struct {
		err     error
		code    int
		message string
	}{
		{common.ErrorNotFound, rpc.CodeNotFound, "upload_id does not correspond to an in-progress upload."},
		{services.ErrSizeLimitExceeded, rpc.CodeSizeLimitExceeded,
			"The upload file size exceeds a limit or does not match the size provided initially."},
		{&services.UploadInProgressError{Upload: &models.Upload{ID: 3}}, rpc.CodeInProgress,
			"An upload of this file is already in progress."},
		{&services.AlreadyUploadedError{File: &models.File{ID: 4}}, rpc.CodeConflict,
			"This file has already been uploaded."},
	}
	for _, tt := range outcomes {
		u := &fakeUploads{finish: func(int64, string, []string, *time.Time) (*models.File, error) { return nil, tt.err }}
		_, err := newHandlers(u, nil).FinishUpload(context.Background(),
			params(t, `{"upload_id":"`+id+`","name":"n","tags":[],"relevance_timestamp":null}`))
		requireRPCError(t, err, tt.code, tt.message)
	}
}

func TestRegister_MethodTable(t *testing.T) {
	r := rpc.NewRegistry()
	newHandlers(&fakeUploads{}, &fakeFiles{}).Register(r)

	assert.Equal(t, []string{
		"files.get", "files.indexing_error", "files.indexing_progress", "files.list", "files.request_download",
		"test.hello_world",
		"uploads.begin", "uploads.cancel", "uploads.finish", "uploads.list", "uploads.progress", "uploads.report_progress",
	}, r.Methods())

	hello, ok := r.Lookup("test.hello_world")
	require.True(t, ok)
	got, err := hello.ServeRPC(context.Background(), rpc.Params{})
	require.NoError(t, err)
	assert.Equal(t, "hi!", got)
}
