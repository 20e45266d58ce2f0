package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// MaxUploadSize is the largest accepted attachment, in bytes.
const MaxUploadSize int64 = 10 * 1024 * 1024

var (
	ErrFileTooLarge = errors.New("file too large")
	// ErrFileExists means another upload already owns the destination path.
	ErrFileExists = errors.New("file already exists")
)

type FileStorage struct {
	basePath string
}

func NewFileStorage(basePath string) (*FileStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStorage{basePath: basePath}, nil
}

// AttachmentPath is the stored path of a task attachment, relative to the storage root.
func AttachmentPath(projectID, taskID uint, filename string) string {
	return path.Join("tasks", fmt.Sprint(projectID), fmt.Sprint(taskID), cleanName(filename))
}

func cleanName(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "file"
	}
	return name
}

// CheckSize rejects uploads over MaxUploadSize before anything is written.
func CheckSize(size int64) error {
	if size > MaxUploadSize {
		return fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrFileTooLarge, size, MaxUploadSize)
	}
	return nil
}

// SaveFile writes src under tasks/{project}/{task}/{filename} and returns the
// relative path and the number of bytes written. An existing file is never
// overwritten. size is the declared length;
// the stream is still capped in case it is longer.
func (fs *FileStorage) SaveFile(src io.Reader, size int64, projectID, taskID uint, filename string) (string, int64, error) {
	if err := CheckSize(size); err != nil {
		return "", 0, err
	}

	relativePath := AttachmentPath(projectID, taskID, filename)
	fullPath := fs.GetFilePath(relativePath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create directory: %w", err)
	}

	dst, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, os.ErrExist) {
		return "", 0, fmt.Errorf("%w: %s", ErrFileExists, relativePath)
	}
	if err != nil {
		return "", 0, fmt.Errorf("failed to create destination file: %w", err)
	}

	written, err := io.Copy(dst, io.LimitReader(src, MaxUploadSize+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(fullPath)
		return "", 0, fmt.Errorf("failed to save file: %w", err)
	}
	if written > MaxUploadSize {
		_ = os.Remove(fullPath)
		return "", 0, CheckSize(written)
	}

	return relativePath, written, nil
}

func (fs *FileStorage) GetFile(relativePath string) (*os.File, error) {
	return os.Open(fs.GetFilePath(relativePath))
}

// DeleteFile removes a stored file. A file that is already gone is not an error.
func (fs *FileStorage) DeleteFile(relativePath string) error {
	err := os.Remove(fs.GetFilePath(relativePath))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (fs *FileStorage) GetFilePath(relativePath string) string {
	return filepath.Join(fs.basePath, filepath.FromSlash(relativePath))
}
