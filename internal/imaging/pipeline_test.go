package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"clipd/internal/clip"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x40, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	return cfg.Width, cfg.Height
}

func TestIngestDownsamplesLargeImage(t *testing.T) {
	p := New(Config{MaxBytes: 50 << 20, MaxEdge: 800, ThumbEdge: 100, CacheEntries: 8, CacheBytes: 8 << 20, Workers: 1})

	out, err := p.Ingest(context.Background(), "item-1", testPNG(t, 2000, 2000))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if out.Width > 800 || out.Height > 800 {
		t.Errorf("stored image %dx%d exceeds 800px long edge", out.Width, out.Height)
	}
	// Square in, square out (within 1px of rounding).
	if diff := out.Width - out.Height; diff > 1 || diff < -1 {
		t.Errorf("aspect ratio not preserved: %dx%d", out.Width, out.Height)
	}

	tw, th := decodeSize(t, out.Thumb)
	if tw > 100 || th > 100 {
		t.Errorf("thumbnail %dx%d exceeds 100px long edge", tw, th)
	}
}

func TestIngestPreservesAspectRatio(t *testing.T) {
	p := New(Config{MaxBytes: 50 << 20, MaxEdge: 800, ThumbEdge: 100, CacheEntries: 8, CacheBytes: 8 << 20, Workers: 1})

	out, err := p.Ingest(context.Background(), "item-wide", testPNG(t, 1600, 400))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if out.Width != 800 {
		t.Errorf("long edge = %d, want 800", out.Width)
	}
	if out.Height < 199 || out.Height > 201 {
		t.Errorf("short edge = %d, want 200 within 1px rounding", out.Height)
	}
}

func TestIngestSmallImagePassesThrough(t *testing.T) {
	p := New(DefaultConfig())

	out, err := p.Ingest(context.Background(), "item-small", testPNG(t, 300, 200))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if out.Width != 300 || out.Height != 200 {
		t.Errorf("in-bounds image resized to %dx%d", out.Width, out.Height)
	}
}

func TestIngestRejectsOversizedPayload(t *testing.T) {
	p := New(Config{MaxBytes: 1024, MaxEdge: 800, ThumbEdge: 100, CacheEntries: 8, CacheBytes: 8 << 20, Workers: 1})

	_, err := p.Ingest(context.Background(), "item-huge", make([]byte, 60<<20))
	if !errors.Is(err, clip.ErrImageTooLarge) {
		t.Fatalf("err = %v, want ErrImageTooLarge", err)
	}
	if _, ok := p.Cached("item-huge"); ok {
		t.Error("rejected payload should not be cached")
	}
}

func TestIngestRejectsGarbage(t *testing.T) {
	p := New(DefaultConfig())
	if _, err := p.Ingest(context.Background(), "item-bad", []byte("not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestCacheLookupAndForget(t *testing.T) {
	p := New(DefaultConfig())

	if _, err := p.Ingest(context.Background(), "item-1", testPNG(t, 64, 64)); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if _, ok := p.Cached("item-1"); !ok {
		t.Fatal("ingested item missing from cache")
	}
	p.Forget("item-1")
	if _, ok := p.Cached("item-1"); ok {
		t.Error("Forget left item in cache")
	}
}

func TestCacheEvictsByEntryCount(t *testing.T) {
	c := newLRUCache(3, 0)
	for i := 0; i < 5; i++ {
		c.put(fmt.Sprintf("id-%d", i), &Ingested{Full: []byte{1}})
	}
	if c.len() != 3 {
		t.Fatalf("cache len = %d, want 3", c.len())
	}
	if _, ok := c.get("id-0"); ok {
		t.Error("oldest entry survived count eviction")
	}
	if _, ok := c.get("id-4"); !ok {
		t.Error("newest entry evicted")
	}
}

func TestCacheEvictsByAggregateBytes(t *testing.T) {
	c := newLRUCache(0, 100)
	c.put("a", &Ingested{Full: make([]byte, 40)})
	c.put("b", &Ingested{Full: make([]byte, 40)})
	// Touch "a" so "b" is the LRU victim.
	c.get("a")
	c.put("c", &Ingested{Full: make([]byte, 40)})

	if _, ok := c.get("b"); ok {
		t.Error("LRU entry survived byte eviction")
	}
	if _, ok := c.get("a"); !ok {
		t.Error("recently used entry evicted")
	}
	if c.curBytes > 100 {
		t.Errorf("aggregate bytes %d over limit", c.curBytes)
	}
}
