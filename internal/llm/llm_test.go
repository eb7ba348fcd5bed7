package llm

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitFailedCarriesCause(t *testing.T) {
	cause := errors.New("LLM_API_KEY is required")
	res := Failed(cause)

	assert.False(t, res.OK())
	assert.Nil(t, res.Provider())
	assert.ErrorIs(t, res.Err(), cause)
}

func TestInitReadyWithNilProviderFails(t *testing.T) {
	res := Ready(nil)
	assert.False(t, res.OK())
	assert.ErrorIs(t, res.Err(), ErrNotInitialized)
}

func TestAgentResultVariants(t *testing.T) {
	ok := AgentSucceeded("# Report", 3)
	assert.True(t, ok.OK())
	assert.Equal(t, "# Report", ok.Output())
	assert.Equal(t, 3, ok.Steps())
	assert.NoError(t, ok.Err())

	failed := AgentFailed(nil, 25)
	assert.False(t, failed.OK())
	assert.Empty(t, failed.Output())
	assert.Error(t, failed.Err())
}

func TestToolError(t *testing.T) {
	assert.JSONEq(t, `{"error":"Repo Files API failed: \"boom\""}`, ToolError(errors.New(`Repo Files API failed: "boom"`)))
}

func TestEmbeddedPrompts(t *testing.T) {
	names := []string{
		"identify_data_model", "identify_routes_interfaces", "identify_business_logic",
		"analyze_data_model", "analyze_routes_interfaces", "analyze_business_logic",
		"product_requirements", "architecture_documentation",
	}
	for _, name := range names {
		p, ok := Prompt(name)
		require.True(t, ok, name)
		assert.NotEmpty(t, strings.TrimSpace(p.System), name)
		assert.NotEmpty(t, strings.TrimSpace(p.User), name)
	}

	_, ok := Prompt("resume_v1")
	assert.False(t, ok)
}

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	p := MustPrompt("analyze_data_model")
	out := p.Render(map[string]string{
		"repository_url": "https://github.com/acme/shop",
		"file_list":      "- models/user.py",
	})
	assert.Contains(t, out, "repository https://github.com/acme/shop")
	assert.Contains(t, out, "- models/user.py")
	assert.NotContains(t, out, "{{")
}
