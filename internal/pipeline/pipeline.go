package pipeline

import (
	"context"
	"errors"
	"fmt"

	"code-analysis-api/internal/codeanalysis"
	"code-analysis-api/internal/llm"
	"code-analysis-api/internal/shared/storage/object"
	"code-analysis-api/internal/shared/telemetry"
)

// ErrModelUnavailable is returned by New when the model provider failed to
// initialize; no stage is registered in that case.
var ErrModelUnavailable = errors.New("model provider unavailable")

// Options wires the pipeline's collaborators.
type Options struct {
	Repo     codeanalysis.Repo
	Ingester Ingester
	// Tools are handed to every analysis agent.
	Tools []llm.Tool
	// Archive, when set, receives a copy of every report after synthesis.
	Archive          object.ObjectStore
	ArchitectureDocs bool
}

// Pipeline runs the fixed analysis graph and persists each stage's output.
type Pipeline struct {
	graph *Graph
	repo  codeanalysis.Repo
}

// New assembles the graph:
//
//	ingest -> identify_<concern> -> analyze_<concern> -> synthesize_requirements [-> archive_reports]
//
// with architecture_documentation between analyze_data_model and synthesis
// when enabled.
func New(ready llm.Init, opts Options) (*Pipeline, error) {
	if !ready.OK() {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, ready.Err())
	}
	if opts.Repo == nil || opts.Ingester == nil {
		return nil, errors.New("pipeline requires a repo and an ingester")
	}
	model := ready.Provider()

	nodes := []Node{NewIngestNode(opts.Ingester)}
	var synthDeps []string
	for _, c := range codeanalysis.Concerns() {
		nodes = append(nodes,
			NewIdentifyNode(c, model, NodeIngest),
			NewAnalyzeNode(c, model, opts.Tools, IdentifyNodeName(c)),
		)
		synthDeps = append(synthDeps, AnalyzeNodeName(c))
	}
	if opts.ArchitectureDocs {
		nodes = append(nodes, NewArchitectureNode(model, AnalyzeNodeName(codeanalysis.ConcernDataModel)))
		synthDeps = append(synthDeps, NodeArchitecture)
	}
	nodes = append(nodes, NewSynthesizeNode(model, synthDeps...))
	if opts.Archive != nil {
		nodes = append(nodes, NewArchiveNode(opts.Archive, NodeSynthesize))
	}

	g, err := NewGraph(nodes...)
	if err != nil {
		return nil, err
	}
	telemetry.Info("pipeline.ready", map[string]any{
		"model":  model.Model(),
		"stages": g.Nodes(),
	})
	return &Pipeline{graph: g, repo: opts.Repo}, nil
}

// Stages lists the registered stage names in execution order.
func (p *Pipeline) Stages() []string {
	return p.graph.Nodes()
}

// Run executes the graph for one analysis, writing each stage's fields to the
// repository as soon as the stage completes.
func (p *Pipeline) Run(ctx context.Context, analysisID, repositoryURL string) error {
	final, err := p.graph.Run(ctx, NewState(analysisID, repositoryURL), func(ctx context.Context, node string, part Partial) error {
		u := part.Update()
		if u.IsEmpty() {
			return nil
		}
		_, err := p.repo.Update(ctx, analysisID, u)
		return err
	})
	status, _ := final.Status()
	telemetry.Info("pipeline.finished", map[string]any{
		"request_id":  telemetry.RequestID(ctx),
		"analysis_id": analysisID,
		"status":      status,
		"fields":      len(final.Fields()),
		"writes":      final.Seq(),
	})
	return err
}

var _ codeanalysis.Runner = (*Pipeline)(nil)
