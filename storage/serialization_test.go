package storage

import (
	"testing"
	"time"

	"github.com/gargbot/archivist/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalCheckpoint(t *testing.T) {
	tests := []struct {
		name       string
		checkpoint *core.Checkpoint
	}{
		{"empty checkpoint", &core.Checkpoint{}},
		{"name only", &core.Checkpoint{Name: "classify:/kamera"}},
		{
			"full checkpoint",
			&core.Checkpoint{
				Name:      "classify:/kamera",
				Cursor:    "AAHl0sOpaqueCursorToken",
				UpdatedAt: time.Date(2023, 1, 2, 3, 4, 5, 6000, time.UTC),
			},
		},
		{"unicode cursor", &core.Checkpoint{Name: "n", Cursor: "ærøå"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalCheckpoint(tt.checkpoint)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalCheckpoint(data)
			require.NoError(t, err)
			assert.Equal(t, tt.checkpoint, decoded)
		})
	}
}

func TestUnmarshalCheckpoint_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"nil data", nil},
		{"empty data", []byte{}},
		{"truncated", MarshalCheckpoint(&core.Checkpoint{Name: "classify", Cursor: "abc"})[:4]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalCheckpoint(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in      string
		want    Dialect
		wantErr bool
	}{
		{"mysql", DialectMySQL, false},
		{"MariaDB", DialectMySQL, false},
		{"sqlite", DialectSQLite, false},
		{"sqlite3", DialectSQLite, false},
		{"postgres", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDialect(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnknownDialect)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDialect_InsertIgnore(t *testing.T) {
	assert.Equal(t, "IGNORE", DialectMySQL.InsertIgnore())
	assert.Equal(t, "OR IGNORE", DialectSQLite.InsertIgnore())
}
