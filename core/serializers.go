package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// CheckpointMUS encodes a Checkpoint as name, cursor and the update time in
// Unix microseconds.
var CheckpointMUS = checkpointMUS{}

type checkpointMUS struct{}

func (checkpointMUS) Marshal(c Checkpoint, bs []byte) (n int) {
	n = ord.String.Marshal(c.Name, bs)
	n += ord.String.Marshal(c.Cursor, bs[n:])
	n += varint.Int64.Marshal(updatedMicros(c), bs[n:])
	return
}

func (checkpointMUS) Unmarshal(bs []byte) (c Checkpoint, n int, err error) {
	c.Name, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	c.Cursor, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var micros int64
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if micros != 0 {
		c.UpdatedAt = time.UnixMicro(micros).UTC()
	}
	return
}

func (checkpointMUS) Size(c Checkpoint) (size int) {
	size = ord.String.Size(c.Name)
	size += ord.String.Size(c.Cursor)
	return size + varint.Int64.Size(updatedMicros(c))
}

func updatedMicros(c Checkpoint) int64 {
	if c.UpdatedAt.IsZero() {
		return 0
	}
	return c.UpdatedAt.UnixMicro()
}
