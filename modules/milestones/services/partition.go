package services

import (
	"context"
	"hash/fnv"
	"io"
	"strings"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"
)

const partitionQueueSize = 64

// partitioned routes every row of a business key to the same worker, so
// rows sharing a key keep their source order. Order across keys is not kept.
func (r *importRun) partitioned(ctx context.Context, src Source, summary *Summary) error {
	workers := r.svc.workers
	g, gctx := errgroup.WithContext(ctx)

	queues := make([]chan Record, workers)
	partials := make([]*Summary, workers+1)
	for i := range partials {
		partials[i] = newSummary(summary.RunID, summary.StartedAt, summary.DryRun)
	}

	for i := 0; i < workers; i++ {
		queue := make(chan Record, partitionQueueSize)
		queues[i] = queue
		partial := partials[i]
		g.Go(func() error {
			for rec := range queue {
				if err := r.process(gctx, rec, partial); err != nil {
					return err
				}
			}
			return nil
		})
	}

	// Lines without a business key never touch the store and are settled
	// by the reader itself.
	readerPartial := partials[workers]
	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		for {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := src.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return errors.Wrap(err, "read source")
			}
			if rec.Err != nil || rec.Blank() {
				if err := r.process(gctx, rec, readerPartial); err != nil {
					return err
				}
				continue
			}

			idx := partitionOf(r.mapping.Canonical(rec.Fields), workers)
			select {
			case queues[idx] <- rec:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	err := g.Wait()
	for _, p := range partials {
		summary.merge(p)
	}
	return err
}

// partitionOf hashes the business key the same way the store matches it:
// project case-insensitively, title exactly.
func partitionOf(row CanonicalRow, workers int) int {
	if workers <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(ParseText(row[FieldProject]))))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(ParseText(row[FieldMilestone])))
	return int(h.Sum32() % uint32(workers))
}
