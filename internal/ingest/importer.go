package ingest

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/munipolis/vasefirma-ai/internal/assist"
	"github.com/munipolis/vasefirma-ai/internal/log"
	"github.com/munipolis/vasefirma-ai/internal/pinecone"
)

// Upserter writes vector batches to the index.
type Upserter interface {
	Upsert(ctx context.Context, vectors []pinecone.Vector) error
}

// Importer embeds records and upserts them in batches. Embedding calls are
// throttled so a large workbook does not trip upstream rate limits.
type Importer struct {
	embedder  assist.Embedder
	upserter  Upserter
	batchSize int
	limiter   *rate.Limiter
	logger    log.Logger
}

// NewImporter creates an importer. ratePerSec bounds embedding calls per
// second; zero or negative means unthrottled. A nil logger discards output.
func NewImporter(embedder assist.Embedder, upserter Upserter, batchSize int, ratePerSec float64, logger log.Logger) *Importer {
	if logger == nil {
		logger = log.NewNop()
	}
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	return &Importer{
		embedder:  embedder,
		upserter:  upserter,
		batchSize: batchSize,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}
}

// Run imports all records and returns how many vectors were upserted.
// A record whose embedding fails is logged and skipped; a failed upsert
// aborts the run, since every record after it would fail the same way.
func (im *Importer) Run(ctx context.Context, records []Record) (int, error) {
	total := 0
	batch := make([]pinecone.Vector, 0, im.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		im.logger.Info("upserting batch", "size", len(batch))
		if err := im.upserter.Upsert(ctx, batch); err != nil {
			return fmt.Errorf("upserting batch: %w", err)
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for i, rec := range records {
		if err := im.limiter.Wait(ctx); err != nil {
			return total, fmt.Errorf("waiting for embed slot: %w", err)
		}

		im.logger.Info("embedding record",
			"progress", fmt.Sprintf("%d/%d", i+1, len(records)),
			"source", rec.Source,
		)
		values, err := im.embedder.Embed(ctx, rec.Text)
		if err != nil {
			im.logger.Error("embedding record failed", "id", rec.ID, "error", err)
			continue
		}

		batch = append(batch, pinecone.Vector{
			ID:     rec.ID,
			Values: values,
			Metadata: pinecone.Metadata{
				Text:    rec.Text,
				Source:  rec.Source,
				Sheet:   rec.Sheet,
				Company: "vasefirma",
			},
		})

		if len(batch) >= im.batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}

	if err := flush(); err != nil {
		return total, err
	}

	im.logger.Info("import finished", "upserted", total, "records", len(records))
	return total, nil
}
