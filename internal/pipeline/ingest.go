package pipeline

import (
	"context"

	"code-analysis-api/internal/codeanalysis"
	"code-analysis-api/internal/repoingest"
)

// Ingester produces the repository digest consumed by the identification stages.
type Ingester interface {
	Ingest(ctx context.Context, repositoryURL string) (repoingest.Ingestion, error)
}

// NodeIngest is the name of the ingest stage.
const NodeIngest = "ingest"

// NewIngestNode builds the stage that ingests the repository.
func NewIngestNode(ingester Ingester) Node {
	return Node{
		Name: NodeIngest,
		Run: func(ctx context.Context, s State) Partial {
			out, err := ingester.Ingest(ctx, s.RepositoryURL)
			if err != nil {
				return Failure("Repository ingest failed: " + err.Error())
			}
			return Partial{
				codeanalysis.FieldIngestedRepository: Text(out.IngestedRepository),
				codeanalysis.FieldTechnologies:       List(out.Technologies),
			}
		},
	}
}
