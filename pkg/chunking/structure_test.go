package chunking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectStructure_CountsHeadersOutsideFences(t *testing.T) {
	content := "# Title\n\n```\n# not a header\n```\n\n## Section A\n\n### Subsection\n"
	s := DetectStructure(content)

	assert.Equal(t, 3, s.TotalHeaders)
	assert.Equal(t, []int{1, 2, 3}, s.DistinctLevels)
	assert.True(t, s.HasHierarchy)
}

func TestDetectStructure_FlatDocumentHasNoHierarchy(t *testing.T) {
	content := "# Title\n\n# Another Title\n\n# Yet Another\n"
	s := DetectStructure(content)

	assert.Equal(t, 3, s.TotalHeaders)
	assert.Equal(t, []int{1}, s.DistinctLevels)
	assert.False(t, s.HasHierarchy)
}

func TestDetectStructure_SampleHeadersCappedAtFive(t *testing.T) {
	content := "# 1\n## 2\n## 3\n## 4\n## 5\n## 6\n## 7\n"
	s := DetectStructure(content)

	assert.Equal(t, 7, s.TotalHeaders)
	assert.Len(t, s.SampleHeaders, 5)
}

func TestSelectAgenticSubStrategy_HierarchicalWhenStructured(t *testing.T) {
	s := Structure{TotalHeaders: 5, DistinctLevels: []int{1, 2}, HasHierarchy: true}
	d := SelectAgenticSubStrategy(s)
	assert.Equal(t, SubStrategyHierarchical, d.SubStrategy)
}

func TestSelectAgenticSubStrategy_SemanticWhenBelowMinHeaders(t *testing.T) {
	s := Structure{TotalHeaders: 2, DistinctLevels: []int{1, 2}, HasHierarchy: true}
	d := SelectAgenticSubStrategy(s)
	assert.Equal(t, SubStrategySemantic, d.SubStrategy)
}

func TestSelectAgenticSubStrategy_SemanticWhenFlat(t *testing.T) {
	s := Structure{TotalHeaders: 5, DistinctLevels: []int{1}, HasHierarchy: false}
	d := SelectAgenticSubStrategy(s)
	assert.Equal(t, SubStrategySemantic, d.SubStrategy)
}

func TestSelectStrategy_TierOverrides(t *testing.T) {
	assert.Equal(t, StrategyFixedSize, SelectStrategy("free"))
	assert.Equal(t, StrategySentence, SelectStrategy("starter"))
	assert.Equal(t, StrategyAgentic, SelectStrategy("professional"))
	assert.Equal(t, StrategyAgentic, SelectStrategy("business"))
	assert.Equal(t, StrategyAgentic, SelectStrategy("enterprise"))
	assert.Equal(t, StrategyParagraph, SelectStrategy("unknown-tier"))
}
