package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"path"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pageza/extended-accounts/backend/internal/storage"
)

// MaxImageBytes bounds a single profile image upload.
const MaxImageBytes = 10 << 20

// AlternateFormat is the extension of the re-encoded copy kept next to every upload.
const AlternateFormat = "webp"

// ImageService manages profile image files: naming, upload, normalization
// into the alternate format and cleanup of superseded files.
type ImageService struct {
	store storage.Storage
	log   *zap.SugaredLogger
}

// NewImageService creates a new ImageService instance
func NewImageService(store storage.Storage, log *zap.SugaredLogger) *ImageService {
	return &ImageService{store: store, log: log}
}

// Storage exposes the underlying blob store for serving files.
func (s *ImageService) Storage() storage.Storage {
	return s.store
}

// NewImageName returns a random 128-bit hex id followed by the extension of filename.
func NewImageName(filename string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	ext := strings.TrimPrefix(path.Ext(filename), ".")
	if ext == "" {
		return id
	}
	return id + "." + strings.ToLower(ext)
}

// Upload validates that r holds a decodable image and stores it under a
// fresh name. The returned reference still carries its extension.
func (s *ImageService) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) > MaxImageBytes {
		return "", newValidationError("profile_image", "The image file is too large.")
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", newValidationError("profile_image",
			"Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	}

	if path.Ext(filename) == "" {
		filename = filename + "." + format
	}
	ref := NewImageName(filename)
	if err := s.store.Put(ctx, ref, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	s.log.Debugw("stored profile image", "ref", ref, "format", format, "bytes", len(data))
	return ref, nil
}

// BeforeSave removes the files of the stored reference when the incoming one
// replaces or clears it. Failures are logged and never returned.
func (s *ImageService) BeforeSave(ctx context.Context, stored, incoming string) {
	replaced := incoming != "" && !strings.Contains(stored, incoming)
	cleared := incoming == "" && stored != ""
	if !replaced && !cleared {
		return
	}
	s.removeMatching(ctx, stored)
}

// AfterSave normalizes a freshly uploaded reference: the alternate-format copy
// is written beside the original and the extension-less reference is returned.
// References without an extension are left alone.
func (s *ImageService) AfterSave(ctx context.Context, ref string) (string, bool, error) {
	ext := path.Ext(ref)
	if ref == "" || ext == "" {
		return ref, false, nil
	}
	base := strings.TrimSuffix(ref, ext)

	rc, err := s.store.Get(ctx, ref)
	if err != nil {
		return ref, false, fmt.Errorf("failed to open image %s: %w", ref, err)
	}
	defer rc.Close()

	img, err := imaging.Decode(rc, imaging.AutoOrientation(true))
	if err != nil {
		return ref, false, fmt.Errorf("failed to decode image %s: %w", ref, err)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: true}); err != nil {
		return ref, false, fmt.Errorf("failed to encode %s: %w", AlternateFormat, err)
	}
	if err := s.store.Put(ctx, base+"."+AlternateFormat, &buf); err != nil {
		return ref, false, fmt.Errorf("failed to store %s copy: %w", AlternateFormat, err)
	}
	return base, true, nil
}

// AfterDelete removes every file of ref. Failures are logged and never returned.
func (s *ImageService) AfterDelete(ctx context.Context, ref string) {
	s.removeMatching(ctx, ref)
}

func (s *ImageService) removeMatching(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	names, err := storage.Matching(ctx, s.store, ref)
	if err != nil {
		s.log.Warnw("failed to list images for cleanup", "ref", ref, "error", err)
		return
	}
	for _, name := range names {
		if err := s.store.Delete(ctx, name); err != nil {
			s.log.Warnw("failed to delete image", "name", name, "error", err)
		}
	}
}
