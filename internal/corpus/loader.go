// Package corpus streams chunk records from the corpus artifact.
package corpus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/hyperjump/norma/internal/models"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Stream decodes chunks one at a time and hands each to fn. The input may be a JSON array
// or newline-delimited JSON, optionally gzip or zstd compressed (detected from magic bytes).
// A record without id or content, or a repeated id, yields models.ErrStructural.
func Stream(r io.Reader, fn func(*models.Chunk) error) error {
	br := bufio.NewReaderSize(r, 256*1024)
	head, _ := br.Peek(4)

	var src io.Reader = br
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("open gzip corpus: %v: %w", err, models.ErrStructural)
		}
		defer gz.Close()
		src = gz
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return fmt.Errorf("open zstd corpus: %v: %w", err, models.ErrStructural)
		}
		defer zr.Close()
		src = zr
	}

	sr := bufio.NewReaderSize(src, 256*1024)
	lead, err := firstNonSpace(sr)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read corpus: %w", err)
	}

	dec := json.NewDecoder(sr)
	seen := make(map[string]struct{})
	emit := func(c *models.Chunk, n int) error {
		if c.ID == "" {
			return fmt.Errorf("corpus record %d has no id: %w", n, models.ErrStructural)
		}
		if c.Content == "" {
			return fmt.Errorf("corpus record %s has no content: %w", c.ID, models.ErrStructural)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("corpus record id %s repeated: %w", c.ID, models.ErrStructural)
		}
		seen[c.ID] = struct{}{}
		return fn(c)
	}

	switch lead {
	case '[':
		if _, err := dec.Token(); err != nil {
			return fmt.Errorf("read corpus: %v: %w", err, models.ErrStructural)
		}
		n := 0
		for dec.More() {
			var c models.Chunk
			if err := dec.Decode(&c); err != nil {
				return fmt.Errorf("decode corpus record %d: %v: %w", n, err, models.ErrStructural)
			}
			if err := emit(&c, n); err != nil {
				return err
			}
			n++
		}
		if _, err := dec.Token(); err != nil {
			return fmt.Errorf("corpus array not terminated: %v: %w", err, models.ErrStructural)
		}
		return nil
	case '{':
		for n := 0; ; n++ {
			var c models.Chunk
			err := dec.Decode(&c)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("decode corpus record %d: %v: %w", n, err, models.ErrStructural)
			}
			if err := emit(&c, n); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("corpus must be a JSON array or NDJSON objects: %w", models.ErrStructural)
	}
}

// firstNonSpace returns the first byte that is not whitespace or a byte order mark, leaving it unread.
func firstNonSpace(r *bufio.Reader) (byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\n', '\r', 0xef, 0xbb, 0xbf:
			continue
		}
		if err := r.UnreadByte(); err != nil {
			return 0, err
		}
		return b, nil
	}
}

// Load reads every chunk of the artifact at path. A missing file yields models.ErrNotFound.
func Load(path string) ([]*models.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("corpus %s: %w", path, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer f.Close()

	var chunks []*models.Chunk
	err = Stream(f, func(c *models.Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// Write encodes chunks as NDJSON. Paths ending in .gz or .zst are compressed accordingly.
func Write(path string, chunks []*models.Chunk) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create corpus: %w", err)
	}
	defer f.Close()

	var (
		w      io.Writer = f
		closer io.Closer
	)
	switch {
	case strings.HasSuffix(path, ".gz"):
		gz := gzip.NewWriter(f)
		w, closer = gz, gz
	case strings.HasSuffix(path, ".zst"):
		zw, err := zstd.NewWriter(f)
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		w, closer = zw, zw
	}
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, c := range chunks {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("failed to encode chunk %s: %w", c.ID, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if closer != nil {
		return closer.Close()
	}
	return nil
}
