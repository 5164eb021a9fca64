package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/munipolis/vasefirma-ai/internal/config"
	"github.com/munipolis/vasefirma-ai/internal/ingest"
	"github.com/munipolis/vasefirma-ai/internal/openai"
	"github.com/munipolis/vasefirma-ai/internal/pinecone"
)

// ingestEmbedChars caps the embedding input for workbook chunks. Chunks can
// legitimately be much longer than a user question.
const ingestEmbedChars = 8000

var ingestCmd = &cobra.Command{
	Use:   "ingest <workbook.xlsx>",
	Short: "Import an Excel documentation workbook into the vector index",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runIngest(args[0])
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(path string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()

	records, err := ingest.ReadWorkbook(path)
	if err != nil {
		return err
	}
	logger.Info("workbook parsed", "path", path, "records", len(records))

	embedder := openai.New(openai.Config{
		APIKey:             cfg.OpenAIAPIKey,
		EmbeddingModel:     cfg.EmbeddingModel,
		EmbeddingDimension: cfg.EmbeddingDimension,
		MaxInputChars:      ingestEmbedChars,
	})
	index := pinecone.New(pinecone.Config{
		APIKey:     cfg.PineconeAPIKey,
		Index:      cfg.PineconeIndex,
		ControlURL: cfg.PineconeControlURL,
	}, logger)

	importer := ingest.NewImporter(embedder, index, cfg.IngestBatchSize, cfg.IngestRateLimit, logger)
	total, err := importer.Run(ctx, records)
	if err != nil {
		return fmt.Errorf("importing workbook: %w", err)
	}

	fmt.Printf("Upserted %d vectors into %s\n", total, cfg.PineconeIndex)

	if stats, err := index.DescribeStats(ctx); err == nil {
		fmt.Printf("Index now holds %d vectors (dimension %d)\n", stats.TotalVectorCount, stats.Dimension)
	} else {
		logger.Warn("reading index stats", "error", err)
	}
	return nil
}
