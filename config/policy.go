package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/scopecache"
)

// policyFile is the YAML layout of a policy file:
//
//	policies:
//	  productCount:
//	    ttl: 30s
//	    stale_while_revalidate: false
//	  dashboardData:
//	    ttl: 1m
type policyFile struct {
	Policies map[string]policy `yaml:"policies"`
}

type policy struct {
	TTL                  string `yaml:"ttl"`
	Disabled             bool   `yaml:"disabled"`
	StaleWhileRevalidate *bool  `yaml:"stale_while_revalidate"`
}

// LoadPolicies reads a policy file.
func LoadPolicies(path string) (map[string]scopecache.QueryOptions, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicies(raw)
}

// ParsePolicies decodes YAML policies keyed by tag. Unknown fields are errors.
func ParsePolicies(raw []byte) (map[string]scopecache.QueryOptions, error) {
	var f policyFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}

	out := make(map[string]scopecache.QueryOptions, len(f.Policies))
	for tag, p := range f.Policies {
		if tag == "" {
			return nil, errors.New("policy with empty tag")
		}
		var o scopecache.QueryOptions
		if p.TTL != "" {
			d, err := time.ParseDuration(p.TTL)
			if err != nil {
				return nil, fmt.Errorf("policy %q: ttl: %w", tag, err)
			}
			if d <= 0 {
				return nil, fmt.Errorf("policy %q: ttl must be positive", tag)
			}
			o.TTL = d
		}
		o.Disabled = p.Disabled
		if p.StaleWhileRevalidate != nil {
			o.NoStaleWhileRevalidate = !*p.StaleWhileRevalidate
		}
		out[tag] = o
	}
	return out, nil
}
