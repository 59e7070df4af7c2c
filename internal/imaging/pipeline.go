// Package imaging bounds, downsamples, and thumbnails image payloads,
// and keeps a size-bounded LRU cache of processed results keyed by item
// id.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	// Clipboard payloads arrive as PNG, but files dragged through other
	// apps occasionally land as JPEG or GIF.
	_ "image/gif"
	_ "image/jpeg"

	"github.com/nfnt/resize"

	"clipd/internal/clip"
)

// Config bounds the pipeline.
type Config struct {
	// MaxBytes is the hard ceiling on an incoming encoded payload.
	// Larger payloads are rejected without creating a history item.
	MaxBytes int64

	// MaxEdge is the maximum long-edge dimension of the stored image.
	MaxEdge uint

	// ThumbEdge is the long-edge dimension of the list thumbnail.
	ThumbEdge uint

	// CacheEntries and CacheBytes bound the processed-image cache.
	CacheEntries int
	CacheBytes   int64

	// Workers bounds concurrent decode/resize jobs to cap peak memory
	// from transient decode buffers.
	Workers int
}

// DefaultConfig returns the production bounds.
func DefaultConfig() Config {
	return Config{
		MaxBytes:     50 << 20,
		MaxEdge:      800,
		ThumbEdge:    160,
		CacheEntries: 64,
		CacheBytes:   64 << 20,
		Workers:      2,
	}
}

// Ingested is the output of one image ingestion.
type Ingested struct {
	Full   []byte // PNG, long edge <= MaxEdge
	Thumb  []byte // PNG, long edge <= ThumbEdge
	Width  int    // dimensions of Full
	Height int
}

// Pipeline processes image payloads off the caller's goroutine pool.
type Pipeline struct {
	cfg   Config
	sem   chan struct{}
	cache *lruCache
}

// New creates a pipeline with the given bounds.
func New(cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Pipeline{
		cfg:   cfg,
		sem:   make(chan struct{}, cfg.Workers),
		cache: newLRUCache(cfg.CacheEntries, cfg.CacheBytes),
	}
}

// Ingest decodes, downsamples, and thumbnails an encoded image payload.
// Payloads above the byte ceiling fail with clip.ErrImageTooLarge. The
// processed result is cached under id. Ingest blocks while the worker
// pool is saturated; ctx cancels the wait.
func (p *Pipeline) Ingest(ctx context.Context, id string, encoded []byte) (*Ingested, error) {
	if int64(len(encoded)) > p.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", clip.ErrImageTooLarge, len(encoded), p.cfg.MaxBytes)
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-p.sem }()

	// Decode buffers live only within this call; once it returns the
	// only retained allocations are the re-encoded outputs.
	src, _, err := image.Decode(bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	full := boundLongEdge(src, p.cfg.MaxEdge)
	thumb := boundLongEdge(src, p.cfg.ThumbEdge)

	out := &Ingested{
		Width:  full.Bounds().Dx(),
		Height: full.Bounds().Dy(),
	}
	if out.Full, err = encodePNG(full); err != nil {
		return nil, err
	}
	if out.Thumb, err = encodePNG(thumb); err != nil {
		return nil, err
	}

	p.cache.put(id, out)
	return out, nil
}

// Cached returns the processed result for an item id, if still cached.
func (p *Pipeline) Cached(id string) (*Ingested, bool) {
	return p.cache.get(id)
}

// Forget drops an item's cached result, if any.
func (p *Pipeline) Forget(id string) {
	p.cache.remove(id)
}

// boundLongEdge scales an image down so max(width,height) <= maxEdge,
// preserving aspect ratio. Images already within bounds pass through.
func boundLongEdge(src image.Image, maxEdge uint) image.Image {
	b := src.Bounds()
	w, h := uint(b.Dx()), uint(b.Dy())
	if w <= maxEdge && h <= maxEdge {
		return src
	}
	if w >= h {
		return resize.Resize(maxEdge, 0, src, resize.Lanczos3)
	}
	return resize.Resize(0, maxEdge, src, resize.Lanczos3)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
