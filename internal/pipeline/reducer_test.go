package pipeline

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code-analysis-api/internal/codeanalysis"
)

var stateOpts = cmp.AllowUnexported(State{}, Entry{}, Value{})

func TestApplyStampsSequence(t *testing.T) {
	s := Apply(NewState("a-1", "https://github.com/acme/shop"), Partial{
		codeanalysis.FieldIngestedRepository: Text("digest"),
		codeanalysis.FieldTechnologies:       List([]string{"Go"}),
	})

	assert.Equal(t, uint64(2), s.Seq())
	ingest, ok := s.Entry(codeanalysis.FieldIngestedRepository)
	require.True(t, ok)
	techs, ok := s.Entry(codeanalysis.FieldTechnologies)
	require.True(t, ok)
	assert.Less(t, ingest.Seq, techs.Seq)

	s = Apply(s, Partial{codeanalysis.FieldIngestedRepository: Text("digest v2")})
	text, _ := s.Text(codeanalysis.FieldIngestedRepository)
	assert.Equal(t, "digest v2", text)
	entry, _ := s.Entry(codeanalysis.FieldIngestedRepository)
	assert.Equal(t, uint64(3), entry.Seq)
}

func TestApplyIsPure(t *testing.T) {
	base := Apply(NewState("a-1", "u"), Partial{codeanalysis.FieldDataModelFiles: List([]string{"a.py"})})
	before := base.clone()

	_ = Apply(base, Partial{
		codeanalysis.FieldDataModelFiles: List([]string{"b.py"}),
		codeanalysis.FieldError:          Text("boom"),
	})

	if diff := cmp.Diff(before, base, stateOpts); diff != "" {
		t.Fatalf("Apply modified its input (-before +after):\n%s", diff)
	}
}

func TestMergeHigherSequenceWins(t *testing.T) {
	root := NewState("a-1", "u")
	a := Apply(root, Partial{codeanalysis.FieldDataModelFiles: List([]string{"a.py"})})
	b := Apply(Apply(root, Partial{codeanalysis.FieldBusinessLogicFiles: List([]string{"b.py"})}),
		Partial{codeanalysis.FieldDataModelFiles: List([]string{"newer.py"})})

	merged := Merge(a, b)
	files, _ := merged.List(codeanalysis.FieldDataModelFiles)
	assert.Equal(t, []string{"newer.py"}, files)
	bl, _ := merged.List(codeanalysis.FieldBusinessLogicFiles)
	assert.Equal(t, []string{"b.py"}, bl)
	assert.Equal(t, uint64(2), merged.Seq())

	reversed := Merge(b, a)
	files, _ = reversed.List(codeanalysis.FieldDataModelFiles)
	assert.Equal(t, []string{"newer.py"}, files, "higher sequence wins regardless of argument order")
}

func TestMergeTieGoesToSecond(t *testing.T) {
	root := NewState("a-1", "u")
	a := Apply(root, Partial{codeanalysis.FieldError: Text("first")})
	b := Apply(root, Partial{codeanalysis.FieldError: Text("second")})

	msg, _ := Merge(a, b).Text(codeanalysis.FieldError)
	assert.Equal(t, "second", msg)
	msg, _ = Merge(b, a).Text(codeanalysis.FieldError)
	assert.Equal(t, "first", msg)
}

func TestMergeKeepsDisjointFieldsAndInputs(t *testing.T) {
	root := NewState("a-1", "u")
	a := Apply(root, Partial{codeanalysis.FieldDataModelAnalysis: Text("# DM")})
	b := Apply(root, Partial{codeanalysis.FieldRoutesInterfacesAnalysis: Text("# RI")})
	aBefore, bBefore := a.clone(), b.clone()

	merged := Merge(a, b)
	assert.Equal(t, []codeanalysis.Field{codeanalysis.FieldDataModelAnalysis, codeanalysis.FieldRoutesInterfacesAnalysis}, merged.Fields())
	assert.Empty(t, cmp.Diff(aBefore, a, stateOpts))
	assert.Empty(t, cmp.Diff(bBefore, b, stateOpts))
}

func TestMergeFillsIdentity(t *testing.T) {
	merged := Merge(State{}, NewState("a-1", "u"))
	assert.Equal(t, "a-1", merged.AnalysisID)
	assert.Equal(t, "u", merged.RepositoryURL)
}

func TestPartialUpdateProjection(t *testing.T) {
	u := Partial{
		codeanalysis.FieldStatus:                    StatusValue(codeanalysis.StatusCompleted),
		codeanalysis.FieldTechnologies:              List([]string{"Go"}),
		codeanalysis.FieldRoutesInterfacesFiles:     List(nil),
		codeanalysis.FieldBusinessLogicAnalysis:     Text("# BL"),
		codeanalysis.FieldArchitectureDocumentation: Text("# Arch"),
	}.Update()

	status, ok := u.Status()
	require.True(t, ok)
	assert.Equal(t, codeanalysis.StatusCompleted, status)
	files, ok := u.List(codeanalysis.FieldRoutesInterfacesFiles)
	require.True(t, ok)
	assert.NotNil(t, files)
	assert.Empty(t, files)
	text, ok := u.Text(codeanalysis.FieldBusinessLogicAnalysis)
	require.True(t, ok)
	assert.Equal(t, "# BL", text)
	assert.Len(t, u.Fields(), 5)

	assert.True(t, Partial{}.Update().IsEmpty())
}

func TestFailurePartial(t *testing.T) {
	p := Failure("Repository ingest failed: 502")
	msg, failed := p.Failed()
	assert.True(t, failed)
	assert.Equal(t, "Repository ingest failed: 502", msg)
	assert.Equal(t, StatusValue(codeanalysis.StatusError), p[codeanalysis.FieldStatus])

	_, failed = Partial{codeanalysis.FieldDataModelFiles: List(nil)}.Failed()
	assert.False(t, failed)
}
