package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"code-analysis-api/internal/shared/metrics"
	"code-analysis-api/internal/shared/telemetry"
)

var tracer = otel.Tracer("code-analysis-api/pipeline")

var (
	// ErrDuplicateNode is returned when two nodes share a name.
	ErrDuplicateNode = errors.New("duplicate node")
	// ErrUnknownDependency is returned when a node depends on a missing node.
	ErrUnknownDependency = errors.New("unknown dependency")
	// ErrCycle is returned when the dependencies form a cycle.
	ErrCycle = errors.New("dependency cycle")
)

// Node is one stage. Run must not panic and reports failures through its
// Partial; the graph still recovers panics into a failure partial.
type Node struct {
	Name string
	Deps []string
	Run  func(ctx context.Context, s State) Partial
}

// OnComplete is called with each node's partial before its dependents start.
// A returned error aborts the run.
type OnComplete func(ctx context.Context, node string, p Partial) error

// Graph is a validated DAG of nodes.
type Graph struct {
	nodes      map[string]Node
	dependents map[string][]string
	order      []string
}

// NewGraph validates the nodes and returns a runnable graph.
func NewGraph(nodes ...Node) (*Graph, error) {
	g := &Graph{
		nodes:      make(map[string]Node, len(nodes)),
		dependents: make(map[string][]string, len(nodes)),
	}
	for _, n := range nodes {
		if n.Name == "" || n.Run == nil {
			return nil, fmt.Errorf("node %q: name and run func are required", n.Name)
		}
		if _, dup := g.nodes[n.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, n.Name)
		}
		g.nodes[n.Name] = n
	}
	for _, n := range nodes {
		for _, dep := range n.Deps {
			if _, ok := g.nodes[dep]; !ok {
				return nil, fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, n.Name, dep)
			}
			g.dependents[dep] = append(g.dependents[dep], n.Name)
		}
	}
	order, err := g.topoSort()
	if err != nil {
		return nil, err
	}
	g.order = order
	return g, nil
}

// Nodes returns node names in a valid execution order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.order...)
}

func (g *Graph) topoSort() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	for name, n := range g.nodes {
		indegree[name] = len(n.Deps)
	}
	var ready []string
	for name, d := range indegree {
		if d == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)
		next := append([]string(nil), g.dependents[name]...)
		sort.Strings(next)
		for _, dep := range next {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	if len(order) != len(g.nodes) {
		return nil, ErrCycle
	}
	return order, nil
}

// Run executes every node once all its dependencies have completed,
// successfully or not. Independent nodes run concurrently. Each node sees
// the state merged from every node that completed before it started.
func (g *Graph) Run(ctx context.Context, initial State, onComplete OnComplete) (State, error) {
	ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("analysis.id", initial.AnalysisID),
		attribute.Int("pipeline.nodes", len(g.nodes)),
	))
	defer span.End()

	var (
		mu      sync.Mutex
		state   = initial
		pending = make(map[string]int, len(g.nodes))
	)
	for name, n := range g.nodes {
		pending[name] = len(n.Deps)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	var start func(name string)
	start = func(name string) {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			mu.Lock()
			snapshot := state
			mu.Unlock()

			p := g.runNode(egCtx, g.nodes[name], snapshot)

			mu.Lock()
			state = Apply(state, p)
			mu.Unlock()

			if onComplete != nil {
				if err := onComplete(egCtx, name, p); err != nil {
					return fmt.Errorf("persist %s: %w", name, err)
				}
			}

			mu.Lock()
			var released []string
			for _, dep := range g.dependents[name] {
				pending[dep]--
				if pending[dep] == 0 {
					released = append(released, dep)
				}
			}
			mu.Unlock()
			for _, dep := range released {
				start(dep)
			}
			return nil
		})
	}
	for _, name := range g.order {
		if len(g.nodes[name].Deps) == 0 {
			start(name)
		}
	}

	err := eg.Wait()
	mu.Lock()
	final := state
	mu.Unlock()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return final, err
	}
	span.SetStatus(codes.Ok, "")
	return final, nil
}

func (g *Graph) runNode(ctx context.Context, n Node, s State) (p Partial) {
	ctx, span := tracer.Start(ctx, n.Name, trace.WithAttributes(
		attribute.String("pipeline.node", n.Name),
		attribute.StringSlice("pipeline.dependencies", n.Deps),
	))
	defer span.End()
	startedAt := time.Now()

	defer func() {
		if r := recover(); r != nil {
			p = Failure(fmt.Sprintf("%s failed: panic: %v", n.Name, r))
		}
		outcome := "ok"
		if msg, failed := p.Failed(); failed {
			outcome = "error"
			span.SetStatus(codes.Error, msg)
		}
		elapsed := time.Since(startedAt)
		metrics.ObserveStage(n.Name, outcome, elapsed)
		telemetry.Info("pipeline.node_complete", map[string]any{
			"request_id":  telemetry.RequestID(ctx),
			"analysis_id": s.AnalysisID,
			"node":        n.Name,
			"outcome":     outcome,
			"fields":      fieldNames(p),
			"duration_ms": float64(elapsed.Microseconds()) / 1000.0,
		})
	}()

	p = n.Run(ctx, s)
	if p == nil {
		p = Partial{}
	}
	return p
}

func fieldNames(p Partial) []string {
	out := make([]string, 0, len(p))
	for _, f := range sortedFields(p) {
		out = append(out, f.String())
	}
	return out
}
