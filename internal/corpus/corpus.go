package corpus

import "github.com/hyperjump/norma/internal/models"

// Corpus is the read-only set of loaded chunks, addressable by id.
type Corpus struct {
	chunks []*models.Chunk
	byID   map[string]*models.Chunk
}

// New indexes chunks by id. Later duplicates replace earlier ones.
func New(chunks []*models.Chunk) *Corpus {
	c := &Corpus{chunks: chunks, byID: make(map[string]*models.Chunk, len(chunks))}
	for _, ch := range chunks {
		c.byID[ch.ID] = ch
	}
	return c
}

// Get returns the chunk with id.
func (c *Corpus) Get(id string) (*models.Chunk, bool) {
	if c == nil {
		return nil, false
	}
	ch, ok := c.byID[id]
	return ch, ok
}

// Chunks returns the chunks in artifact order. Callers must not modify them.
func (c *Corpus) Chunks() []*models.Chunk {
	if c == nil {
		return nil
	}
	return c.chunks
}

// Len returns the number of chunks.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.chunks)
}
