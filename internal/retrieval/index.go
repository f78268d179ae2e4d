// Package retrieval maintains a full-text index over the regional
// knowledge base and serves the context snippets injected into
// conversations.
package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve"
)

// DocChunk is one indexed passage of the knowledge base.
type DocChunk struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Index wraps a bleve index on disk.
type Index struct {
	idx bleve.Index
}

// Open opens an existing index.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	return &Index{idx: idx}, nil
}

// Create builds a fresh index at path, replacing nothing (fails if the
// path already exists, same as bleve).
func Create(path string) (*Index, error) {
	idx, err := bleve.New(path, bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index %s: %w", path, err)
	}
	return &Index{idx: idx}, nil
}

// InMemory builds a transient index, used by tests and small corpora.
func InMemory() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{idx: idx}, nil
}

func (ix *Index) Close() error { return ix.idx.Close() }

// IngestDir indexes every .md and .txt file under dir, one chunk per
// blank-line-separated paragraph block. Returns the number of chunks
// indexed.
func (ix *Index) IngestDir(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		title := strings.TrimSuffix(d.Name(), ext)
		for i, block := range splitChunks(string(data)) {
			id := fmt.Sprintf("%s#%d", title, i)
			if err := ix.idx.Index(id, DocChunk{Title: title, Text: block}); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("ingest %s: %w", dir, err)
	}
	return count, nil
}

// Add indexes a single chunk.
func (ix *Index) Add(id string, chunk DocChunk) error {
	return ix.idx.Index(id, chunk)
}

// Retrieve returns the text of the top-k matching chunks. Satisfies
// chat.ContextRetriever.
func (ix *Index) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	q := bleve.NewQueryStringQuery(query)
	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	req.Fields = []string{"text"}
	res, err := ix.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, hit := range res.Hits {
		if text, ok := hit.Fields["text"].(string); ok && text != "" {
			out = append(out, text)
		}
	}
	return out, nil
}

func splitChunks(text string) []string {
	var out []string
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			out = append(out, block)
		}
	}
	return out
}
