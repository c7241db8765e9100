package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_WithFrontmatter(t *testing.T) {
	src := "---\nsubject: Hello there\n---\nVisit https://example.com/reset-password/abc\n\nBye\n"

	doc, err := NewParser().Render([]byte(src))
	require.NoError(t, err)

	assert.Equal(t, "Hello there", doc.MetaString("subject"))
	assert.Contains(t, doc.HTML, `<a href="https://example.com/reset-password/abc">`)
	assert.NotContains(t, doc.HTML, "subject:")
	assert.Equal(t, "Visit https://example.com/reset-password/abc\n\nBye", doc.Text)
}

func TestRender_WithoutFrontmatter(t *testing.T) {
	doc, err := NewParser().Render([]byte("just *text*\n"))
	require.NoError(t, err)

	assert.Empty(t, doc.MetaString("subject"))
	assert.Contains(t, doc.HTML, "<em>text</em>")
	assert.Equal(t, "just *text*", doc.Text)
}
