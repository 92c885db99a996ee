package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// chunkRecord is one addressable chunk awaiting embedding.
type chunkRecord struct {
	ID        string
	Text      string
	FilePath  string
	StartLine int
	EndLine   int
	Tokens    int
}

// embedChunks embeds every eligible chunk under the configured concurrency
// limit. The returned slice is parallel to chunks; a nil entry marks a chunk
// that was skipped (empty text or over the embedding input bound). Workers
// may finish out of order, but results are placed by chunk index so output
// never depends on completion order. The first provider error aborts the
// whole stage.
func (ing *Ingestor) embedChunks(ctx context.Context, chunks []chunkRecord) ([][]float32, int, error) {
	vectors := make([][]float32, len(chunks))
	var skipped atomic.Int64

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := ing.opts.EmbedConcurrency
	if workers > len(chunks) {
		workers = len(chunks)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int, len(chunks))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		cancel()
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}

				c := chunks[i]
				if strings.TrimSpace(c.Text) == "" {
					ing.logger.Warn("embed.skip.empty", "chunk", c.ID)
					skipped.Add(1)
					continue
				}
				if c.Tokens > ing.opts.MaxEmbedTokens {
					ing.logger.Warn("embed.skip.oversized",
						"chunk", c.ID,
						"tokens", c.Tokens,
						"limit", ing.opts.MaxEmbedTokens,
					)
					skipped.Add(1)
					continue
				}

				vecs, err := ing.provider.EmbedTexts(ctx, []string{c.Text})
				if err != nil {
					fail(fmt.Errorf("%w: embedding %s: %v", ErrRemoteService, c.ID, err))
					return
				}
				if len(vecs) != 1 {
					fail(fmt.Errorf("%w: embedding %s: got %d vectors for 1 input", ErrRemoteService, c.ID, len(vecs)))
					return
				}
				vectors[i] = vecs[0]
			}
		}()
	}

	for i := range chunks {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, 0, firstErr
	}
	return vectors, int(skipped.Load()), nil
}
