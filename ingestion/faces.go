package ingestion

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/Masterminds/squirrel"
	"github.com/gargbot/archivist/storage"
)

// FaceLinker registers people and links them to the pictures they appear in.
type FaceLinker struct {
	exec   storage.Executor
	dedupe bool
	logger *slog.Logger
}

// NewFaceLinker creates a face linker writing through exec.
func NewFaceLinker(exec storage.Executor, opts ...WriterOption) (*FaceLinker, error) {
	if exec == nil {
		return nil, ErrExecutorRequired
	}
	cfg := newWriterConfig("ingestion.faces", opts)
	return &FaceLinker{exec: exec, dedupe: cfg.dedupe, logger: cfg.logger}, nil
}

// AddFaces inserts one faces row per person in ascending id order and
// commits once. It returns the number of rows written.
func (f *FaceLinker) AddFaces(ctx context.Context, faces map[int]string) (int, error) {
	ids := make([]int, 0, len(faces))
	for id := range faces {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	written := 0
	for _, id := range ids {
		insert := squirrel.Insert("faces").Columns("garg_id", "name").Values(id, faces[id])
		if f.dedupe {
			insert = insert.Options(f.exec.Dialect().InsertIgnore())
		}
		result, err := f.exec.ExecBuilder(ctx, insert)
		if err != nil {
			f.rollback()
			return 0, fmt.Errorf("insert face %d: %w", id, err)
		}
		if affected(result) {
			written++
		}
	}

	if err := f.exec.Commit(); err != nil {
		return 0, fmt.Errorf("commit faces: %w", err)
	}
	f.logger.Info("faces added", "written", written)
	return written, nil
}

// AddFacePictures reads a JSON object mapping picture paths to the names of
// the people in them and links each person to the picture. Pictures missing
// from dbx_pictures and names missing from nickToID are recorded in the
// report and skipped. Links are committed together at the end.
func (f *FaceLinker) AddFacePictures(ctx context.Context, r io.Reader, nickToID map[string]int) (*Report, error) {
	var links map[string][]string
	if err := json.NewDecoder(r).Decode(&links); err != nil {
		return nil, fmt.Errorf("decode face links: %w", err)
	}

	paths := make([]string, 0, len(links))
	for path := range links {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	report := &Report{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			f.rollback()
			return report, err
		}
		report.Processed++

		picID, err := f.lookupPicture(ctx, path)
		if errors.Is(err, ErrPictureNotFound) {
			report.fail(path, err)
			continue
		}
		if err != nil {
			f.rollback()
			return report, err
		}

		for _, nick := range links[path] {
			gargID, ok := nickToID[nick]
			if !ok {
				report.fail(path, fmt.Errorf("%w: %q", ErrUnknownFace, nick))
				continue
			}
			insert := squirrel.Insert("dbx_pictures_faces").Columns("garg_id", "pic_id").Values(gargID, picID)
			if _, err := f.exec.ExecBuilder(ctx, insert); err != nil {
				f.rollback()
				return report, fmt.Errorf("link %s to %s: %w", nick, path, err)
			}
			report.Written++
		}
	}

	if err := f.exec.Commit(); err != nil {
		return report, fmt.Errorf("commit face links: %w", err)
	}
	f.logger.Info("face links added", "pictures", report.Processed, "links", report.Written, "failed", len(report.Failures))
	return report, nil
}

func (f *FaceLinker) lookupPicture(ctx context.Context, path string) (int64, error) {
	query := squirrel.Select("pic_id").From("dbx_pictures").Where(squirrel.Eq{"path": path}).Limit(1)
	rows, err := f.exec.QueryBuilder(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("look up %s: %w", path, err)
	}
	defer rows.Close()

	var id sql.NullInt64
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("scan %s: %w", path, err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("look up %s: %w", path, err)
	}
	if !id.Valid {
		return 0, ErrPictureNotFound
	}
	return id.Int64, nil
}

func (f *FaceLinker) rollback() {
	if err := f.exec.Rollback(); err != nil {
		f.logger.Warn("rollback failed", "error", err)
	}
}
