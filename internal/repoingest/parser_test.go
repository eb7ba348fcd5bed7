package repoingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bundle = `This file is a merged representation of selected files.
<files>
<file path="models/user.py">
1: class User:
2:     name = "x"

3: # ratio 10: 1
</file>
<file path="broken.py">
no closing tag here
<file path="app/routes.py">
  @app.get("/users")
  def list_users(): pass
</file>
</files>`

func TestParseFiles(t *testing.T) {
	files, err := ParseFiles(bundle)
	require.NoError(t, err)

	assert.Len(t, files, 2)
	assert.NotContains(t, files, "broken.py")
	assert.Equal(t, "class User:\n    name = \"x\"\n# ratio 10: 1", files["models/user.py"])
	assert.Equal(t, "@app.get(\"/users\")\ndef list_users(): pass", files["app/routes.py"])
}

func TestParseFilesSkipsSectionWithoutClosingTag(t *testing.T) {
	files, err := ParseFiles(`<files><file path="a.go">package a</files>`)
	assert.Nil(t, files)
	assert.ErrorIs(t, err, ErrNoFilesParsed)
}

func TestParseFilesMissingSection(t *testing.T) {
	for _, in := range []string{"", "<file path=\"a\">x</file>", "<files> no end"} {
		_, err := ParseFiles(in)
		assert.ErrorIs(t, err, ErrMissingFilesSection, in)
	}
}

func TestParseFilesNoFiles(t *testing.T) {
	_, err := ParseFiles("<files>\n</files>")
	assert.ErrorIs(t, err, ErrNoFilesParsed)
}

func TestCleanContentKeepsNonNumericPrefixes(t *testing.T) {
	assert.Equal(t, "key: value\nv2: thing", cleanContent("key: value\n  v2: thing  \n\n"))
	assert.Equal(t, "x", cleanContent(" 12: x"))
}
