package wire

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestEncodeDecode(t *testing.T) {
	at := time.Unix(1700000000, 123456789)
	in := Snapshot{Gen: 42, FetchedAt: at, Payload: []byte(`[{"id":"b1"}]`)}

	out, err := Decode(Encode(in))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Gen != 42 || !out.FetchedAt.Equal(at) || !bytes.Equal(out.Payload, in.Payload) {
		t.Fatalf("roundtrip mismatch: %+v", out)
	}
}

func TestZeroFetchedAtStaysZero(t *testing.T) {
	out, err := Decode(Encode(Snapshot{Gen: 1}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !out.FetchedAt.IsZero() || len(out.Payload) != 0 {
		t.Fatalf("unexpected snapshot %+v", out)
	}
}

func TestDecodeRejectsCorruption(t *testing.T) {
	good := Encode(Snapshot{Gen: 7, FetchedAt: time.Now(), Payload: []byte("abc")})

	cases := map[string][]byte{
		"empty":     nil,
		"short":     good[:hdrLen-1],
		"bad magic": append([]byte("XXXX"), good[4:]...),
		"bad ver":   append(append([]byte{}, good[:4]...), append([]byte{9}, good[5:]...)...),
		"truncated": good[:len(good)-1],
		"trailing":  append(append([]byte{}, good...), 'x'),
	}
	for name, b := range cases {
		if _, err := Decode(b); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("%s: expected ErrCorrupt, got %v", name, err)
		}
	}
}
