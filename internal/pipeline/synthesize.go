package pipeline

import (
	"context"
	"strings"

	"code-analysis-api/internal/codeanalysis"
	"code-analysis-api/internal/llm"
)

const (
	// NodeSynthesize is the name of the product requirements stage.
	NodeSynthesize = "synthesize_requirements"
	// NodeArchitecture is the name of the optional architecture documentation stage.
	NodeArchitecture = "architecture_documentation"
)

// NewSynthesizeNode builds the final stage. It needs all three analyses and
// is the only stage that marks a run COMPLETED.
func NewSynthesizeNode(model llm.Completer, deps ...string) Node {
	prompt := llm.MustPrompt("product_requirements")
	return Node{
		Name: NodeSynthesize,
		Deps: deps,
		Run: func(ctx context.Context, s State) Partial {
			vars := make(map[string]string, 3)
			for _, c := range codeanalysis.Concerns() {
				text, ok := s.Text(c.AnalysisField())
				if !ok || strings.TrimSpace(text) == "" {
					return Failure("Missing one or more required analyses for product requirements generation")
				}
				vars[c.AnalysisField().String()] = text
			}

			doc, err := model.Complete(ctx, prompt.System, prompt.Render(vars))
			if err != nil {
				return Failure("Product requirements generation failed: " + err.Error())
			}
			return Partial{
				codeanalysis.FieldProductRequirements: Text(doc),
				codeanalysis.FieldStatus:              StatusValue(codeanalysis.StatusCompleted),
			}
		},
	}
}

// NewArchitectureNode builds the optional stage documenting the architecture
// from the data model analysis.
func NewArchitectureNode(model llm.Completer, deps ...string) Node {
	prompt := llm.MustPrompt("architecture_documentation")
	return Node{
		Name: NodeArchitecture,
		Deps: deps,
		Run: func(ctx context.Context, s State) Partial {
			analysis, ok := s.Text(codeanalysis.FieldDataModelAnalysis)
			if !ok || strings.TrimSpace(analysis) == "" {
				return Failure("No data_model_analysis data available for architecture documentation")
			}
			techs, _ := s.List(codeanalysis.FieldTechnologies)
			techList := "No specific technologies identified."
			if len(techs) > 0 {
				techList = formatFileList(techs)
			}

			doc, err := model.Complete(ctx, prompt.System, prompt.Render(map[string]string{
				"data_model_analysis": analysis,
				"technologies":        techList,
			}))
			if err != nil {
				return Failure("Architecture documentation generation failed: " + err.Error())
			}
			return Partial{codeanalysis.FieldArchitectureDocumentation: Text(doc)}
		},
	}
}
