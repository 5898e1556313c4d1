package supabase

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Storage is the entry point to the object storage API.
type Storage struct {
	c *Client
}

// Storage returns the storage API of c.
func (c *Client) Storage() *Storage {
	return &Storage{c: c}
}

// Bucket addresses the objects of one storage bucket.
type Bucket struct {
	c  *Client
	id string
}

// From selects a bucket by id.
func (s *Storage) From(bucket string) *Bucket {
	return &Bucket{c: s.c, id: bucket}
}

// UploadOptions are sent as headers with an upload.
type UploadOptions struct {
	ContentType  string
	Upsert       bool   // overwrite an existing object with the same name
	CacheControl string // max-age in seconds, e.g. "3600"
}

type uploadResponse struct {
	Key string `json:"Key"`
	ID  string `json:"Id"`
}

// Upload stores data under name and returns the object path within the bucket.
func (b *Bucket) Upload(ctx context.Context, name string, data []byte, opts UploadOptions) (string, error) {
	name = strings.TrimLeft(name, "/")
	if name == "" {
		return "", errors.New("supabase: object name is required")
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := http.Header{}
	if opts.Upsert {
		h.Set("x-upsert", "true")
	}
	if opts.CacheControl != "" {
		h.Set("Cache-Control", "max-age="+opts.CacheControl)
	}

	var resp uploadResponse
	if err := b.c.do(ctx, call{
		method:      http.MethodPost,
		path:        "/storage/v1/object/" + b.id + "/" + name,
		raw:         data,
		contentType: contentType,
		header:      h,
	}, &resp); err != nil {
		return "", err
	}
	return name, nil
}
