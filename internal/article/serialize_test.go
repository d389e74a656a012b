package article

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSerialize 测试文档序列化
func TestSerialize(t *testing.T) {
	t.Run("levels from depth", func(t *testing.T) {
		doc := Parse("# A\nintro\n\n## B\nbody")
		assert.Equal(t, "# A\n\nintro\n\n## B\n\nbody", Serialize(doc))
	})

	t.Run("depth skip normalized", func(t *testing.T) {
		doc := Parse("# A\n### B\ntext")
		assert.Equal(t, "# A\n\n## B\n\ntext", Serialize(doc))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "", Serialize(nil))
		assert.Equal(t, "", Serialize(NewDocument()))
	})

	t.Run("single section", func(t *testing.T) {
		doc := Parse("# A\n## B\nbody\n\n### C\nleaf")
		b, _ := doc.Find("A", "B")
		assert.Equal(t, "## B\n\nbody\n\n### C\n\nleaf", SerializeSection(b, 2))
	})
}

// TestOutline 测试大纲输出
func TestOutline(t *testing.T) {
	doc := Parse("# A\nintro\n\n## B\nbody\n\n# C")
	assert.Equal(t, "# A\n## B\n# C", Outline(doc))
}

// TestRenderHTML 测试HTML渲染
func TestRenderHTML(t *testing.T) {
	doc := Parse("# Overview\nSome text.[1]\n\n| a | b |\n| --- | --- |\n| 1 | 2 |")

	out := string(RenderHTML(doc))
	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "Overview</h1>")
	assert.Contains(t, out, "<table>")
}

// TestDocumentJSON 测试文档JSON持久化保留顺序
func TestDocumentJSON(t *testing.T) {
	doc := Parse("# Z\nz\n\n## Y\ny\n\n# A\na")

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	restored := NewDocument()
	require.NoError(t, json.Unmarshal(data, restored))

	assert.True(t, doc.Equal(restored))
	assert.Equal(t, []string{"Z", "A"}, restored.Children.Keys())
}
