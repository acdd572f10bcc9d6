// Package wire frames persisted query snapshots.
//
//	magic(4) | ver(1) | gen(u64 be) | fetchedAt(i64 unix nano, be) | vlen(u32 be) | payload(vlen)
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version byte = 1
	hdrLen       = 4 + 1 + 8 + 8 + 4
)

var (
	ErrCorrupt = errors.New("scopecache: corrupt snapshot")
	magic      = [...]byte{'S', 'Q', 'C', 'S'}
)

type Snapshot struct {
	Gen       uint64
	FetchedAt time.Time
	Payload   []byte
}

func Encode(s Snapshot) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(s.Payload))

	buf.Write(magic[:])
	buf.WriteByte(version)

	var u8 [8]byte
	binary.BigEndian.PutUint64(u8[:], s.Gen)
	buf.Write(u8[:])

	var at int64
	if !s.FetchedAt.IsZero() {
		at = s.FetchedAt.UnixNano()
	}
	binary.BigEndian.PutUint64(u8[:], uint64(at))
	buf.Write(u8[:])

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(s.Payload)))
	buf.Write(u4[:])

	buf.Write(s.Payload)
	return buf.Bytes()
}

// Decode validates the frame. The returned payload aliases b.
func Decode(b []byte) (Snapshot, error) {
	if len(b) < hdrLen || !bytes.Equal(b[:4], magic[:]) || b[4] != version {
		return Snapshot{}, ErrCorrupt
	}
	off := 5

	gen := binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	at := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen != len(b)-off {
		return Snapshot{}, ErrCorrupt
	}

	s := Snapshot{Gen: gen, Payload: b[off:]}
	if at != 0 {
		s.FetchedAt = time.Unix(0, at)
	}
	return s, nil
}
