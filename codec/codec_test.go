package codec

import (
	"errors"
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

type branch struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func sampleBranch() branch {
	return branch{ID: "b-1", Name: "Main store", CreatedAt: time.Date(2024, 5, 2, 10, 30, 0, 123456789, time.UTC)}
}

func TestStructCodecs(t *testing.T) {
	codecs := map[string]Codec[branch]{
		"json":         JSON[branch]{},
		"json-strict":  JSON[branch]{Strict: true},
		"cbor":         MustCBOR[branch](CBOROptions{}),
		"cbor-det":     MustCBOR[branch](CBOROptions{Deterministic: true}),
		"msgpack":      Msgpack[branch]{},
		"msgpack-json": Msgpack[branch]{JSONTags: true},
	}
	want := sampleBranch()
	for name, c := range codecs {
		t.Run(name, func(t *testing.T) {
			b, err := c.Encode(want)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := c.Decode(b)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got.ID != want.ID || got.Name != want.Name || !got.CreatedAt.Equal(want.CreatedAt) {
				t.Fatalf("got %+v, want %+v", got, want)
			}
		})
	}
}

func TestJSONStrictRejectsUnknownFields(t *testing.T) {
	payload := []byte(`{"id":"b-1","name":"Main","region":"north"}`)
	if _, err := (JSON[branch]{}).Decode(payload); err != nil {
		t.Fatalf("lenient decode: %v", err)
	}
	if _, err := (JSON[branch]{Strict: true}).Decode(payload); err == nil {
		t.Fatalf("strict decode accepted unknown field")
	}
	if _, err := (JSON[branch]{Strict: true}).Decode([]byte(`{"id":"b-1"} {}`)); err == nil {
		t.Fatalf("strict decode accepted trailing data")
	}
}

func TestMsgpackJSONTagsUsesJSONNames(t *testing.T) {
	b, err := Msgpack[branch]{JSONTags: true}.Encode(sampleBranch())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	m, err := Msgpack[map[string]any]{}.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := m["created_at"]; !ok {
		t.Fatalf("expected json field names, got %v", m)
	}
}

func TestCBORDeterministicIsStable(t *testing.T) {
	c := MustCBOR[map[string]int](CBOROptions{Deterministic: true})
	a, err := c.Encode(map[string]int{"b-2": 4, "b-1": 9, "b-3": 0})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for i := 0; i < 10; i++ {
		b, _ := c.Encode(map[string]int{"b-3": 0, "b-1": 9, "b-2": 4})
		if string(a) != string(b) {
			t.Fatalf("deterministic encoding differs")
		}
	}
}

func TestProtobuf(t *testing.T) {
	c := NewProtobuf(func() *wrapperspb.Int64Value { return &wrapperspb.Int64Value{} })
	b, err := c.Encode(wrapperspb.Int64(128))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := c.Decode(b)
	if err != nil || got.GetValue() != 128 {
		t.Fatalf("Decode = (%v, %v)", got, err)
	}
}

func TestInt(t *testing.T) {
	for _, n := range []int{0, 1, -1, 250, 1 << 40} {
		b, _ := Int{}.Encode(n)
		got, err := Int{}.Decode(b)
		if err != nil || got != n {
			t.Fatalf("Int(%d) = (%d, %v)", n, got, err)
		}
	}
	if _, err := (Int{}).Decode(nil); err == nil {
		t.Fatalf("empty payload decoded")
	}
	b, _ := Int{}.Encode(7)
	if _, err := (Int{}).Decode(append(b, 0)); err == nil {
		t.Fatalf("trailing byte accepted")
	}
}

func TestScalarIdentity(t *testing.T) {
	if b, _ := (Bytes{}).Encode([]byte("x")); string(b) != "x" {
		t.Fatalf("Bytes changed payload")
	}
	if s, _ := (String{}).Decode([]byte("main")); s != "main" {
		t.Fatalf("String = %q", s)
	}
}

func TestLimit(t *testing.T) {
	c := Limit[string]{Inner: String{}, MaxEncode: 4, MaxDecode: 3}
	if _, err := c.Encode("12345"); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Encode err = %v, want ErrTooLarge", err)
	}
	if _, err := c.Decode([]byte("1234")); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Decode err = %v, want ErrTooLarge", err)
	}
	if s, err := c.Decode([]byte("123")); err != nil || s != "123" {
		t.Fatalf("Decode = (%q, %v)", s, err)
	}
	if _, err := (Limit[string]{Inner: String{}}).Encode("unbounded"); err != nil {
		t.Fatalf("disabled limit rejected: %v", err)
	}
}

func TestFunc(t *testing.T) {
	c := Func[int]{
		EncodeFunc: func(n int) ([]byte, error) { return []byte{byte(n)}, nil },
		DecodeFunc: func(b []byte) (int, error) { return int(b[0]), nil },
	}
	b, _ := c.Encode(9)
	if n, _ := c.Decode(b); n != 9 {
		t.Fatalf("Func round trip = %d", n)
	}
}
