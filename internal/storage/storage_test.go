package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachmentPath(t *testing.T) {
	assert.Equal(t, "tasks/3/7/report.pdf", AttachmentPath(3, 7, "report.pdf"))
	assert.Equal(t, "tasks/3/7/passwd", AttachmentPath(3, 7, "../../etc/passwd"))
	assert.Equal(t, "tasks/3/7/evil.txt", AttachmentPath(3, 7, `C:\tmp\evil.txt`))
	assert.Equal(t, "tasks/3/7/file", AttachmentPath(3, 7, ".."))
}

func TestSaveFileLimit(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	t.Run("exactly the limit is accepted", func(t *testing.T) {
		data := bytes.Repeat([]byte{'a'}, int(MaxUploadSize))
		rel, n, err := fs.SaveFile(bytes.NewReader(data), int64(len(data)), 1, 2, "big.bin")
		require.NoError(t, err)
		assert.Equal(t, "tasks/1/2/big.bin", rel)
		assert.Equal(t, MaxUploadSize, n)

		info, err := os.Stat(fs.GetFilePath(rel))
		require.NoError(t, err)
		assert.Equal(t, MaxUploadSize, info.Size())
	})

	t.Run("one byte over is rejected before writing", func(t *testing.T) {
		data := bytes.Repeat([]byte{'a'}, int(MaxUploadSize)+1)
		_, _, err := fs.SaveFile(bytes.NewReader(data), int64(len(data)), 1, 2, "too-big.bin")
		assert.True(t, errors.Is(err, ErrFileTooLarge))

		_, statErr := os.Stat(fs.GetFilePath("tasks/1/2/too-big.bin"))
		assert.True(t, errors.Is(statErr, os.ErrNotExist))
	})

	t.Run("understated size is caught while copying", func(t *testing.T) {
		data := bytes.Repeat([]byte{'a'}, int(MaxUploadSize)+10)
		_, _, err := fs.SaveFile(bytes.NewReader(data), 5, 1, 2, "liar.bin")
		assert.True(t, errors.Is(err, ErrFileTooLarge))

		_, statErr := os.Stat(filepath.Join(fs.GetFilePath("tasks/1/2"), "liar.bin"))
		assert.True(t, errors.Is(statErr, os.ErrNotExist))
	})
}

func TestDeleteFile(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	rel, _, err := fs.SaveFile(bytes.NewBufferString("hello"), 5, 4, 5, "note.txt")
	require.NoError(t, err)

	f, err := fs.GetFile(rel)
	require.NoError(t, err)
	f.Close()

	require.NoError(t, fs.DeleteFile(rel))
	assert.NoError(t, fs.DeleteFile(rel), "deleting a missing file is a no-op")
}

func TestSaveFileNeverOverwrites(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	rel, _, err := fs.SaveFile(bytes.NewBufferString("first"), 5, 1, 2, "notes.txt")
	require.NoError(t, err)

	_, _, err = fs.SaveFile(bytes.NewBufferString("second!"), 7, 1, 2, "notes.txt")
	assert.ErrorIs(t, err, ErrFileExists)

	data, err := os.ReadFile(fs.GetFilePath(rel))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}
