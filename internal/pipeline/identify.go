package pipeline

import (
	"context"
	"fmt"

	"code-analysis-api/internal/codeanalysis"
	"code-analysis-api/internal/llm"
)

type fileSelection struct {
	Files []string `json:"files" description:"List of file paths identified in the repository"`
}

// IdentifyNodeName is the stage name for a concern's identification.
func IdentifyNodeName(c codeanalysis.Concern) string { return "identify_" + c.Key() }

// NewIdentifyNode builds the stage asking the model which files matter for c.
// The answer is schema-validated; duplicates are kept as returned.
func NewIdentifyNode(c codeanalysis.Concern, model llm.StructuredCompleter, deps ...string) Node {
	prompt := llm.MustPrompt("identify_" + c.Key())
	field := c.FilesField()
	return Node{
		Name: IdentifyNodeName(c),
		Deps: deps,
		Run: func(ctx context.Context, s State) Partial {
			repo, ok := s.Text(codeanalysis.FieldIngestedRepository)
			if !ok || repo == "" {
				return Failure(fmt.Sprintf("%s data unavailable", codeanalysis.FieldIngestedRepository))
			}

			var out fileSelection
			err := model.CompleteStructured(ctx, llm.StructuredRequest{
				System:     prompt.System,
				Prompt:     prompt.Render(map[string]string{"ingested_repository": repo}),
				SchemaName: field.String(),
			}, &out)
			if err != nil {
				return Failure(fmt.Sprintf("%s failed: %v", field, err))
			}
			return Partial{field: List(out.Files)}
		},
	}
}
