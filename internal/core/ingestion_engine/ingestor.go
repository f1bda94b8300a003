package ingestion_engine

import "context"

type Ingestor interface {
	Run(ctx context.Context) (int, error)
	BackfillEmbeddings(ctx context.Context, limit int) (int, error)
}
