package repoingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"

	"code-analysis-api/internal/llm"
)

// ToolName is the name the agent uses to fetch file contents.
const ToolName = "retrieve_files"

type retrieveFilesArgs struct {
	RepositoryURL string   `json:"repository_url"`
	FilePaths     []string `json:"file_paths"`
}

// RetrieveFilesTool exposes Client.RetrieveFiles to the agent. The result is
// a JSON object mapping each path to its content.
func RetrieveFilesTool(client *Client) llm.Tool {
	return llm.Tool{
		Name:        ToolName,
		Description: "Retrieve file contents from a repository for the specified file paths. Returns an object mapping file paths to their contents.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"repository_url": {
					Type:        jsonschema.String,
					Description: "URL of the repository",
				},
				"file_paths": {
					Type:        jsonschema.Array,
					Description: "List of file paths to retrieve",
					Items:       &jsonschema.Definition{Type: jsonschema.String},
				},
			},
			Required: []string{"repository_url", "file_paths"},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var args retrieveFilesArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}
			if args.RepositoryURL == "" || len(args.FilePaths) == 0 {
				return "", fmt.Errorf("repository_url and file_paths are required")
			}
			files, err := client.RetrieveFiles(ctx, args.RepositoryURL, args.FilePaths)
			if err != nil {
				return "", err
			}
			out, err := json.Marshal(files)
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}
