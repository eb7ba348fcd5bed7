package pipeline

import (
	"context"
	"fmt"
	"strings"

	"code-analysis-api/internal/codeanalysis"
	"code-analysis-api/internal/llm"
)

// AnalyzeNodeName is the stage name for a concern's analysis.
func AnalyzeNodeName(c codeanalysis.Concern) string { return "analyze_" + c.Key() }

// NewAnalyzeNode builds the stage that runs the tool-using agent over the
// concern's files and stores its final answer verbatim.
func NewAnalyzeNode(c codeanalysis.Concern, agent llm.Agent, tools []llm.Tool, deps ...string) Node {
	prompt := llm.MustPrompt("analyze_" + c.Key())
	return Node{
		Name: AnalyzeNodeName(c),
		Deps: deps,
		Run: func(ctx context.Context, s State) Partial {
			files, ok := s.List(c.FilesField())
			if !ok || len(files) == 0 {
				return Failure(fmt.Sprintf("No %s data available for %s analysis", c.FilesField(), c.Title()))
			}

			res := agent.RunAgent(ctx, llm.AgentRequest{
				System: prompt.System,
				Prompt: prompt.Render(map[string]string{
					"repository_url": s.RepositoryURL,
					"file_list":      formatFileList(files),
				}),
				Tools: tools,
			})
			if !res.OK() {
				return Failure(fmt.Sprintf("%s analysis failed: %v", c.Title(), res.Err()))
			}
			return Partial{c.AnalysisField(): Text(res.Output())}
		},
	}
}

func formatFileList(files []string) string {
	lines := make([]string, len(files))
	for i, f := range files {
		lines[i] = "- " + f
	}
	return strings.Join(lines, "\n")
}
