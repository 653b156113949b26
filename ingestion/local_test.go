package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gargbot/archivist/core"
	"github.com/gargbot/archivist/remote/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localFolder(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	taken := time.Date(2015, 2, 14, 9, 30, 0, 0, time.UTC)
	files := map[string][]byte{
		"IMG_0001.JPG": mock.JPEG(mock.WithDateTimeOriginal(taken)),
		"beach.jpeg":   mock.PlainJPEG(),
		"notes.txt":    []byte("not a picture"),
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), content, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "album.jpg"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(dir, "nowhere"), filepath.Join(dir, "dangling.jpg")))
	return dir
}

func TestLocalImporter_AddLocalPictures(t *testing.T) {
	ctx := context.Background()
	exec, db := newSQLiteExecutor(t)
	l, err := NewLocalImporter(exec)
	require.NoError(t, err)

	report, err := l.AddLocalPictures(ctx, localFolder(t), core.TopicLark, root+"/larkollen/")
	require.NoError(t, err)

	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 2, report.Written)
	assert.Equal(t, 1, report.NoTakenDate)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "dangling.jpg", filepath.Base(report.Failures[0].Path))

	assert.Equal(t, []string{
		root + "/larkollen/img_0001.jpg",
		root + "/larkollen/beach.jpeg",
	}, picturePaths(t, db))
	assert.Equal(t, 2, count(t, db, "SELECT COUNT(*) FROM dbx_pictures WHERE topic = 'lark'"))
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM dbx_pictures WHERE taken IS NOT NULL AND path LIKE '%img_0001.jpg'"))
}

func TestLocalImporter_Deduplication(t *testing.T) {
	ctx := context.Background()
	exec, db := newSQLiteExecutor(t)
	l, err := NewLocalImporter(exec, WithDeduplication())
	require.NoError(t, err)

	dir := localFolder(t)
	_, err = l.AddLocalPictures(ctx, dir, core.TopicFE, root)
	require.NoError(t, err)
	report, err := l.AddLocalPictures(ctx, dir, core.TopicFE, root)
	require.NoError(t, err)

	assert.Zero(t, report.Written)
	assert.Equal(t, 2, count(t, db, "SELECT COUNT(*) FROM dbx_pictures"))
}

func TestLocalImporter_Errors(t *testing.T) {
	ctx := context.Background()
	exec := &recordingExecutor{}
	l, err := NewLocalImporter(exec)
	require.NoError(t, err)

	_, err = l.AddLocalPictures(ctx, t.TempDir(), core.Topic("beach"), root)
	assert.ErrorIs(t, err, core.ErrUnknownTopic)

	_, err = l.AddLocalPictures(ctx, filepath.Join(t.TempDir(), "absent"), core.TopicFE, root)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = NewLocalImporter(nil)
	assert.ErrorIs(t, err, ErrExecutorRequired)
}
