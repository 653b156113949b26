package ingestion

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaceLinker_AddFaces(t *testing.T) {
	exec := &recordingExecutor{}
	f, err := NewFaceLinker(exec)
	require.NoError(t, err)

	n, err := f.AddFaces(context.Background(), map[int]string{3: "Carol", 1: "Alice", 2: "Bob"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Len(t, exec.statements, 3)
	for i, name := range []string{"Alice", "Bob", "Carol"} {
		assert.Equal(t, "INSERT INTO faces (garg_id,name) VALUES (?,?)", exec.statements[i].sql)
		assert.Equal(t, []any{i + 1, name}, exec.statements[i].args)
	}
	assert.Equal(t, 1, exec.commits)
}

func TestFaceLinker_AddFacesTwice(t *testing.T) {
	ctx := context.Background()
	faces := map[int]string{1: "Alice", 2: "Bob"}

	t.Run("duplicate ids fail", func(t *testing.T) {
		exec, db := newSQLiteExecutor(t)
		f, err := NewFaceLinker(exec)
		require.NoError(t, err)

		_, err = f.AddFaces(ctx, faces)
		require.NoError(t, err)
		_, err = f.AddFaces(ctx, faces)
		require.Error(t, err)
		assert.Equal(t, 2, count(t, db, "SELECT COUNT(*) FROM faces"))
	})

	t.Run("deduplicated", func(t *testing.T) {
		exec, db := newSQLiteExecutor(t)
		f, err := NewFaceLinker(exec, WithDeduplication())
		require.NoError(t, err)

		_, err = f.AddFaces(ctx, faces)
		require.NoError(t, err)
		n, err := f.AddFaces(ctx, faces)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, 2, count(t, db, "SELECT COUNT(*) FROM faces"))
	})
}

func TestFaceLinker_AddFacePictures(t *testing.T) {
	ctx := context.Background()
	exec, db := newSQLiteExecutor(t)
	seedPictures(t, exec, nil, root+"/a.jpg", root+"/b.jpg")

	f, err := NewFaceLinker(exec)
	require.NoError(t, err)

	links := `{
		"/kamerabilder/a.jpg": ["alice", "bob"],
		"/kamerabilder/b.jpg": ["bob", "mallory"],
		"/kamerabilder/missing.jpg": ["alice"]
	}`
	report, err := f.AddFacePictures(ctx, strings.NewReader(links), map[string]int{"alice": 1, "bob": 2})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 3, report.Written)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, root+"/b.jpg", report.Failures[0].Path)
	assert.ErrorIs(t, report.Failures[0].Err, ErrUnknownFace)
	assert.ErrorContains(t, report.Failures[0].Err, "mallory")
	assert.Equal(t, root+"/missing.jpg", report.Failures[1].Path)
	assert.ErrorIs(t, report.Failures[1].Err, ErrPictureNotFound)

	assert.Equal(t, 3, count(t, db, "SELECT COUNT(*) FROM dbx_pictures_faces"))
	assert.Equal(t, 2, count(t, db, "SELECT COUNT(*) FROM dbx_pictures_faces WHERE garg_id = 2"))
	assert.Equal(t, 2, count(t, db, `SELECT COUNT(*) FROM dbx_pictures_faces f
		JOIN dbx_pictures p ON p.pic_id = f.pic_id WHERE p.path = '/kamerabilder/a.jpg'`))
}

func TestFaceLinker_AddFacePicturesBadJSON(t *testing.T) {
	exec := &recordingExecutor{}
	f, err := NewFaceLinker(exec)
	require.NoError(t, err)

	_, err = f.AddFacePictures(context.Background(), strings.NewReader(`["not", "a", "map"]`), nil)
	require.Error(t, err)
	assert.Empty(t, exec.statements)
}

func TestNewFaceLinker_RequiresExecutor(t *testing.T) {
	_, err := NewFaceLinker(nil)
	assert.ErrorIs(t, err, ErrExecutorRequired)
}
