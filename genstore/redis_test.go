package genstore

import (
	"errors"
	"testing"
)

func TestNewRedisGenStoreRequiresClient(t *testing.T) {
	if _, err := NewRedisGenStore(RedisConfig{}); !errors.Is(err, ErrNilClient) {
		t.Fatalf("err=%v want ErrNilClient", err)
	}
}
