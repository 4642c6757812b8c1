package driving

import "context"

// RankingService computes work authority scores.
type RankingService interface {
	// RankWorks rebuilds the citation graph and publishes scores.
	RankWorks(ctx context.Context) (*RankReport, error)
}

// RankReport summarises a ranking run.
type RankReport struct {
	Nodes            int
	Edges            int
	Pivot            float64
	ReindexedDocs    int
	UpdatedWorkCount int
}
