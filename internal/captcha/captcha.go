// Package captcha issues short codes bound to a claimed username and renders
// them as PNG images. Challenges live only in process memory, expire after a
// TTL and are consumed by the first successful Verify.
package captcha

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mojocn/base64Captcha"
)

const (
	// Alphabet leaves out glyphs that are easy to misread: 0 O o 1 I i j l q u v.
	Alphabet = "abcdefghkmnprstwxyzABCDEFGHJKLMNPQRSTWXYZ23456789"
	// CodeLength is the number of characters per challenge.
	CodeLength = 4

	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 10000
)

// Renderer draws code as an image.
type Renderer interface {
	Render(code string) ([]byte, error)
}

// Issuer holds at most one live challenge per username.
type Issuer struct {
	// mu makes Verify's compare-and-consume atomic with respect to Issue.
	mu       sync.Mutex
	store    *expirable.LRU[string, string]
	renderer Renderer
}

// Option configures an Issuer.
type Option func(*issuerOptions)

type issuerOptions struct {
	maxEntries int
}

// WithMaxEntries bounds the number of live challenges. Issuing beyond the
// bound evicts the least recently issued one. n <= 0 keeps DefaultMaxEntries.
func WithMaxEntries(n int) Option {
	return func(o *issuerOptions) {
		if n > 0 {
			o.maxEntries = n
		}
	}
}

// NewIssuer builds an Issuer. ttl <= 0 selects DefaultTTL; a nil renderer
// selects the PNG renderer.
func NewIssuer(ttl time.Duration, renderer Renderer, opts ...Option) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if renderer == nil {
		renderer = NewImageRenderer()
	}
	o := issuerOptions{maxEntries: DefaultMaxEntries}
	for _, opt := range opts {
		opt(&o)
	}
	return &Issuer{
		store:    expirable.NewLRU[string, string](o.maxEntries, nil, ttl),
		renderer: renderer,
	}
}

// Issue creates a new challenge for username, replacing any earlier one,
// and returns the code with its rendered image.
func (i *Issuer) Issue(username string) (string, []byte, error) {
	code, err := NewCode()
	if err != nil {
		return "", nil, err
	}
	img, err := i.renderer.Render(code)
	if err != nil {
		return "", nil, fmt.Errorf("render captcha: %w", err)
	}
	i.mu.Lock()
	i.store.Add(username, code)
	i.mu.Unlock()
	return code, img, nil
}

// Verify reports whether code matches the live challenge for username
// (case-sensitive). A match consumes the challenge; a mismatch leaves it.
func (i *Issuer) Verify(username, code string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	want, ok := i.store.Peek(username)
	if !ok || code == "" || want != code {
		return false
	}
	i.store.Remove(username)
	return true
}

// Len returns the number of live challenges.
func (i *Issuer) Len() int {
	return i.store.Len()
}

// NewCode draws CodeLength characters uniformly from Alphabet.
func NewCode() (string, error) {
	size := big.NewInt(int64(len(Alphabet)))
	b := make([]byte, CodeLength)
	for j := range b {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		b[j] = Alphabet[n.Int64()]
	}
	return string(b), nil
}

// ImageRenderer draws distorted text with base64Captcha.
type ImageRenderer struct {
	driver *base64Captcha.DriverString
}

func NewImageRenderer() *ImageRenderer {
	d := base64Captcha.NewDriverString(
		80, 240, 20,
		base64Captcha.OptionShowSlimeLine|base64Captcha.OptionShowSineLine,
		CodeLength, Alphabet, nil, nil, nil,
	)
	return &ImageRenderer{driver: d}
}

// Render returns the PNG encoding of code.
func (r *ImageRenderer) Render(code string) ([]byte, error) {
	item, err := r.driver.DrawCaptcha(code)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := item.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
