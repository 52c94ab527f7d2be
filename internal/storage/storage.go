// Package storage provides the directory-style blob store holding profile images.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// ErrNotFound is returned when a named blob does not exist.
var ErrNotFound = errors.New("blob not found")

// Storage is a flat namespace of named blobs.
type Storage interface {
	Put(ctx context.Context, name string, r io.Reader) error
	Get(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]string, error)
	Exists(ctx context.Context, name string) (bool, error)
}

// URLSigner is implemented by backends that can hand out direct download links.
type URLSigner interface {
	SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error)
}

// Matching lists every stored name containing fragment.
func Matching(ctx context.Context, s Storage, fragment string) ([]string, error) {
	if fragment == "" {
		return nil, nil
	}
	names, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(names, fragment), nil
}

// Filter keeps the names containing fragment, in order.
func Filter(names []string, fragment string) []string {
	if fragment == "" {
		return nil
	}
	var out []string
	for _, name := range names {
		if strings.Contains(name, fragment) {
			out = append(out, name)
		}
	}
	return out
}
