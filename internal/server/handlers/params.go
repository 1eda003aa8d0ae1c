package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/dmitrijs2005/foxhound/internal/ids"
	"github.com/dmitrijs2005/foxhound/internal/server/rpc"
)

// maxSafeInteger is the largest integer a double represents exactly.
const maxSafeInteger = 1<<53 - 1

var errNotInteger = errors.New("not an integer")

func uploadID(p rpc.Params) (int64, error) {
	return idParam(p, "upload_id", "No upload_id provided.", "upload_id is not a valid upload ID.")
}

func fileID(p rpc.Params) (int64, error) {
	return idParam(p, "file_id", "No file_id provided.", "file_id is not a valid file ID.")
}

func idParam(p rpc.Params, name, missing, invalid string) (int64, error) {
	var s string
	ok, err := p.Get(name, &s)
	if !ok {
		return 0, rpc.InvalidParams(missing)
	}
	if err != nil {
		return 0, rpc.InvalidParams(invalid)
	}
	id, err := ids.Decode(s)
	if err != nil {
		return 0, rpc.InvalidParams(invalid)
	}
	return id, nil
}

// integer decodes a JSON number without a fraction or exponent. Values out
// of the int64 range come back as strconv.ErrRange.
func integer(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, errNotInteger
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, errNotInteger
	}
	i, err := strconv.ParseInt(n.String(), 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return 0, strconv.ErrRange
	}
	if err != nil {
		return 0, errNotInteger
	}
	return i, nil
}

func stringParam(p rpc.Params, name, missing, invalid string) (string, error) {
	raw, ok := p.Lookup(name)
	if !ok {
		return "", rpc.InvalidParams(missing)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", rpc.InvalidParams(invalid)
	}
	return s, nil
}

func tagsParam(p rpc.Params) ([]string, error) {
	raw, ok := p.Lookup("tags")
	if !ok {
		return nil, rpc.InvalidParams("No tags provided.")
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil || tags == nil {
		return nil, rpc.InvalidParams("tags must be an array of strings.")
	}
	return tags, nil
}

// relevanceParam reads an optional RFC 3339 timestamp; absent and null
// both mean none.
func relevanceParam(p rpc.Params) (*time.Time, error) {
	raw, ok := p.Lookup("relevance_timestamp")
	if !ok {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, rpc.InvalidParams("relevance_timestamp must be a valid RFC 3339 timestamp.")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, rpc.InvalidParams("relevance_timestamp must be a valid RFC 3339 timestamp.")
	}
	return &t, nil
}
