package scopecache

import (
	"github.com/unkn0wn-root/scopecache/internal/util"
)

// Key identifies a cached query: an entity tag plus ordered scope values
// (user id, branch id, ...). Keys compare by value; two keys built from the
// same tag and scope address the same entry.
//
// An empty scope value means "absent" (e.g. no active branch yet) and makes the
// key invalid for Query and Subscribe.
type Key struct {
	tag   string
	scope []string
	id    string
}

// NewKey builds a key. The scope slice is copied.
func NewKey(tag string, scope ...string) Key {
	s := make([]string, len(scope))
	copy(s, scope)
	return Key{tag: tag, scope: s, id: util.EncodeKey(tag, s)}
}

func (k Key) Tag() string { return k.tag }

// Scope returns a copy of the scope values.
func (k Key) Scope() []string {
	s := make([]string, len(k.scope))
	copy(s, k.scope)
	return s
}

// Len is the number of scope values.
func (k Key) Len() int { return len(k.scope) }

// String is the canonical, injective serialization of the key.
func (k Key) String() string {
	if k.id == "" {
		// zero Key
		return util.EncodeKey(k.tag, k.scope)
	}
	return k.id
}

func (k Key) Equal(o Key) bool { return k.String() == o.String() }

// HasPrefix reports whether k has the given tag and starts with the given scope values.
func (k Key) HasPrefix(tag string, scope ...string) bool {
	if k.tag != tag || len(scope) > len(k.scope) {
		return false
	}
	for i, s := range scope {
		if k.scope[i] != s {
			return false
		}
	}
	return true
}

// Validate returns *InvalidKeyError if the tag or any scope value is empty.
func (k Key) Validate() error {
	if k.tag == "" {
		return &InvalidKeyError{Key: k, Index: TagIndex, Reason: "empty tag"}
	}
	for i, s := range k.scope {
		if s == "" {
			return &InvalidKeyError{Key: k, Index: i, Reason: "missing scope value"}
		}
	}
	return nil
}

// storage keys used against the GenStore
func (k Key) genKey() string { return "key:" + k.String() }

func tagGenKey(tag string) string { return "tag:" + tag }
