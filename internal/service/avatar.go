package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/templui/authapi/internal/storage"
)

// AvatarUpload is a profile picture as received from the client.
// Content type and size are checked by the caller before it gets here.
type AvatarUpload struct {
	Filename    string
	ContentType string // sniffed from the content, not taken from the client
	Content     io.Reader
}

type AvatarService struct {
	storage storage.Storage
}

func NewAvatarService(storage storage.Storage) *AvatarService {
	return &AvatarService{storage: storage}
}

// Save stores the upload under a fresh random name that keeps the original
// extension, and returns that name.
func (s *AvatarService) Save(ctx context.Context, upload AvatarUpload) (string, error) {
	id := uuid.New()
	name := hex.EncodeToString(id[:]) + strings.ToLower(filepath.Ext(upload.Filename))

	err := s.storage.Save(ctx, name, upload.ContentType, upload.Content)
	if err != nil {
		return "", fmt.Errorf("failed to save avatar: %w", err)
	}

	return name, nil
}

// Remove deletes a stored avatar. Failures are logged, not returned: a stray
// file is harmless while the user record is already correct.
func (s *AvatarService) Remove(ctx context.Context, name string) {
	err := s.storage.Delete(ctx, name)
	if err != nil {
		slog.Warn("failed to delete avatar from storage", "name", name, "error", err)
	}
}

func (s *AvatarService) URL(name string) string {
	return s.storage.URL(name)
}
