package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/ygportal/models"
	"github.com/cppla/ygportal/storage"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Post{}, &models.OrphanAttachment{}))
	return db
}

func setupService(t *testing.T, store storage.AttachmentStore) (*PostService, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	return NewPostService(db, store, "/storage", nil), db
}

func newLocalStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	s, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func upload(name string, data []byte) *Upload {
	return &Upload{
		Filename: name,
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func strPtr(s string) *string { return &s }

func validInput() PostInput {
	return PostInput{Title: "T", Content: "C", Category: "Legal", Status: "draft"}
}

// flakyStore wraps a real store and fails writes to one folder or every delete.
type flakyStore struct {
	*storage.LocalStore
	failStoreFolder string
	failDelete      bool
}

var errFlaky = errors.New("disk unavailable")

func (f *flakyStore) Store(ctx context.Context, r io.Reader, filename, folder string) (string, error) {
	if folder == f.failStoreFolder {
		return "", errFlaky
	}
	return f.LocalStore.Store(ctx, r, filename, folder)
}

func (f *flakyStore) Delete(ctx context.Context, path string) error {
	if f.failDelete {
		return errFlaky
	}
	return f.LocalStore.Delete(ctx, path)
}
