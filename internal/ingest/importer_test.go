package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/munipolis/vasefirma-ai/internal/log"
	"github.com/munipolis/vasefirma-ai/internal/pinecone"
)

type stubEmbedder struct {
	failOn map[string]bool
	calls  int
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.calls++
	if s.failOn[text] {
		return nil, errors.New("embedding failed")
	}
	return []float32{0.1, 0.2}, nil
}

type stubUpserter struct {
	batches [][]pinecone.Vector
	err     error
}

func (s *stubUpserter) Upsert(_ context.Context, vectors []pinecone.Vector) error {
	if s.err != nil {
		return s.err
	}
	batch := make([]pinecone.Vector, len(vectors))
	copy(batch, vectors)
	s.batches = append(s.batches, batch)
	return nil
}

func someRecords(n int) []Record {
	records := make([]Record, n)
	for i := range records {
		records[i] = Record{
			ID:     fmt.Sprintf("rec-%d", i),
			Text:   fmt.Sprintf("text %d", i),
			Source: "Směrnice",
			Sheet:  "Směrnice",
		}
	}
	return records
}

func TestImporter_Batching(t *testing.T) {
	embedder := &stubEmbedder{}
	upserter := &stubUpserter{}
	im := NewImporter(embedder, upserter, 2, 0, log.NewNop())

	total, err := im.Run(context.Background(), someRecords(5))
	require.NoError(t, err)

	assert.Equal(t, 5, total)
	require.Len(t, upserter.batches, 3, "5 records at batch size 2 flush as 2+2+1")
	assert.Len(t, upserter.batches[0], 2)
	assert.Len(t, upserter.batches[2], 1)

	first := upserter.batches[0][0]
	assert.Equal(t, "rec-0", first.ID)
	assert.Equal(t, "vasefirma", first.Metadata.Company)
	assert.Equal(t, "Směrnice", first.Metadata.Source)
}

func TestImporter_FailedEmbeddingSkipped(t *testing.T) {
	embedder := &stubEmbedder{failOn: map[string]bool{"text 1": true}}
	upserter := &stubUpserter{}
	im := NewImporter(embedder, upserter, 10, 0, log.NewNop())

	total, err := im.Run(context.Background(), someRecords(3))
	require.NoError(t, err)

	assert.Equal(t, 2, total, "a failed record is skipped, not fatal")
	require.Len(t, upserter.batches, 1)
	assert.Equal(t, "rec-0", upserter.batches[0][0].ID)
	assert.Equal(t, "rec-2", upserter.batches[0][1].ID)
}

func TestImporter_UpsertFailureAborts(t *testing.T) {
	embedder := &stubEmbedder{}
	upserter := &stubUpserter{err: errors.New("index unreachable")}
	im := NewImporter(embedder, upserter, 2, 0, log.NewNop())

	total, err := im.Run(context.Background(), someRecords(5))
	require.Error(t, err)
	assert.Zero(t, total)
	assert.Equal(t, 2, embedder.calls, "run stops at the first failed flush")
}

func TestImporter_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	im := NewImporter(&stubEmbedder{}, &stubUpserter{}, 2, 1.0, log.NewNop())
	_, err := im.Run(ctx, someRecords(3))
	assert.Error(t, err)
}

func TestImporter_EmptyInput(t *testing.T) {
	upserter := &stubUpserter{}
	im := NewImporter(&stubEmbedder{}, upserter, 2, 0, log.NewNop())

	total, err := im.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, upserter.batches)
}
