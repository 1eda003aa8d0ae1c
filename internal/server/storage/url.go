package storage

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/foxhound/internal/server/models"
)

// ErrInvalidURL is returned for object URLs that are not scheme://bucket/object.
var ErrInvalidURL = errors.New("invalid object url")

// URL is the canonical decomposition of an object URL. Port, userinfo,
// query and fragment are discarded.
type URL struct {
	Scheme string
	Bucket string
	Object string
}

// ParseURL splits raw into scheme, bucket and object. The object may be
// empty only for prefixes; use ParseObjectURL for full object addresses.
func ParseURL(raw string) (URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return URL{}, fmt.Errorf("%w: %q: %v", ErrInvalidURL, raw, err)
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return URL{}, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return URL{
		Scheme: strings.ToLower(u.Scheme),
		Bucket: u.Hostname(),
		Object: strings.TrimPrefix(u.Path, "/"),
	}, nil
}

// ParseObjectURL is ParseURL for a complete object address of the given scheme.
func ParseObjectURL(raw, scheme string) (URL, error) {
	u, err := ParseURL(raw)
	if err != nil {
		return URL{}, err
	}
	if u.Scheme != scheme {
		return URL{}, fmt.Errorf("%w: %q is not a %s:// url", ErrInvalidURL, raw, scheme)
	}
	if u.Object == "" || strings.HasSuffix(u.Object, "/") {
		return URL{}, fmt.Errorf("%w: %q has no object name", ErrInvalidURL, raw)
	}
	return u, nil
}

func (u URL) String() string {
	return u.Scheme + "://" + u.Bucket + "/" + u.Object
}

// ObjectPath derives the content-addressed location of hash under prefix.
// The result is deterministic: the same hash always maps to the same object.
func ObjectPath(prefix string, hash models.Hash) string {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + hash.Hex()
}
