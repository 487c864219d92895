package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cached memoizes successful Analyze and ExtractText results keyed by a hash
// of the submitted content, so identical evidence uploaded twice is analyzed
// once.
type Cached struct {
	next     Oracle
	analyses *expirable.LRU[string, *Analysis]
	texts    *expirable.LRU[string, string]
}

var _ Oracle = (*Cached)(nil)

// WithCache wraps next with an LRU cache of the given size and TTL.
func WithCache(next Oracle, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = 256
	}
	return &Cached{
		next:     next,
		analyses: expirable.NewLRU[string, *Analysis](size, nil, ttl),
		texts:    expirable.NewLRU[string, string](size, nil, ttl),
	}
}

func (c *Cached) Analyze(ctx context.Context, content Content) (*Analysis, error) {
	key := ContentHash(content)
	if a, ok := c.analyses.Get(key); ok {
		return a, nil
	}
	a, err := c.next.Analyze(ctx, content)
	if err != nil {
		return nil, err
	}
	if !a.Absent {
		c.analyses.Add(key, a)
	}
	return a, nil
}

func (c *Cached) ExtractText(ctx context.Context, content Content) (string, error) {
	key := ContentHash(content)
	if s, ok := c.texts.Get(key); ok {
		return s, nil
	}
	s, err := c.next.ExtractText(ctx, content)
	if err != nil {
		return "", err
	}
	c.texts.Add(key, s)
	return s, nil
}

// Transcribe is not cached; audio payloads are large and rarely repeated.
func (c *Cached) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return c.next.Transcribe(ctx, audio, mimeType)
}

// ContentHash returns the SHA-256 of the content's MIME type and payload.
func ContentHash(content Content) string {
	h := sha256.New()
	h.Write([]byte(content.MIMEType))
	h.Write([]byte{0})
	h.Write([]byte(content.Text))
	h.Write([]byte{0})
	h.Write(content.Blob)
	return hex.EncodeToString(h.Sum(nil))
}
