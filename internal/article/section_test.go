package article

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSectionsZeroValue 测试零值集合可以直接写入
func TestSectionsZeroValue(t *testing.T) {
	t.Run("set", func(t *testing.T) {
		var m Sections
		m.Set("A", NewSection("", "a"))

		s, ok := m.Get("A")
		require.True(t, ok)
		assert.Equal(t, "A", s.Title)
		assert.Equal(t, []string{"A"}, m.Keys())
	})

	t.Run("insert front", func(t *testing.T) {
		m := Sections{}
		m.InsertFront("A", NewSection("A", "a"))
		m.InsertFront("B", NewSection("B", "b"))

		assert.Equal(t, []string{"B", "A"}, m.Keys())
	})

	t.Run("nil section", func(t *testing.T) {
		m := NewSections()
		m.Set("A", nil)
		m.InsertFront("B", nil)

		a, ok := m.Get("A")
		require.True(t, ok)
		assert.Equal(t, "A", a.Title)
		assert.Empty(t, a.Content)
		assert.Equal(t, []string{"B", "A"}, m.Keys())
	})
}
