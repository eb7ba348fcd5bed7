package pipeline

import (
	"context"
	"strings"

	"code-analysis-api/internal/codeanalysis"
	"code-analysis-api/internal/shared/metrics"
	"code-analysis-api/internal/shared/storage/object"
	"code-analysis-api/internal/shared/telemetry"
)

// NodeArchive is the name of the report archive stage.
const NodeArchive = "archive_reports"

// ArchiveKey is the object key of an archived report.
func ArchiveKey(analysisID string, f codeanalysis.Field) string {
	return analysisID + "/" + f.String() + ".md"
}

// NewArchiveNode builds the stage copying every present report to the object
// store. Failures are logged and counted but never change the run's outcome.
func NewArchiveNode(store object.ObjectStore, deps ...string) Node {
	return Node{
		Name: NodeArchive,
		Deps: deps,
		Run: func(ctx context.Context, s State) Partial {
			for _, f := range codeanalysis.ReportFields() {
				text, ok := s.Text(f)
				if !ok || text == "" {
					continue
				}
				key := ArchiveKey(s.AnalysisID, f)
				n, err := store.SaveWithKey(ctx, key, "text/markdown", strings.NewReader(text))
				if err != nil {
					metrics.IncArchiveFailure()
					telemetry.Error("pipeline.archive_failed", map[string]any{
						"analysis_id": s.AnalysisID,
						"key":         key,
						"error":       err,
					})
					continue
				}
				telemetry.Debug("pipeline.archived", map[string]any{
					"analysis_id": s.AnalysisID,
					"key":         key,
					"bytes":       n,
				})
			}
			return Partial{}
		},
	}
}
