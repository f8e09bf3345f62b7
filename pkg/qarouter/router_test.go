package qarouter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoute_ExplicitFlagTakesPrecedenceOverSize(t *testing.T) {
	d := Route(true, 500_000, DefaultCharThreshold)
	assert.True(t, d.UseAgentQA)
	assert.Equal(t, ReasonQuestionFlag, d.Reason)
	assert.False(t, d.IsAutoRouted)
}

func TestRoute_SmallDocUsesLocalQA(t *testing.T) {
	d := Route(false, 100_000, DefaultCharThreshold)
	assert.False(t, d.UseAgentQA)
	assert.Equal(t, ReasonDefault, d.Reason)
}

func TestRoute_LargeDocAutoRoutesToAgentQA(t *testing.T) {
	d := Route(false, 500_000, DefaultCharThreshold)
	assert.True(t, d.UseAgentQA)
	assert.Equal(t, ReasonDocumentSize, d.Reason)
	assert.True(t, d.IsAutoRouted)
}

func TestRoute_ExactlyAtThresholdUsesLocalQA(t *testing.T) {
	d := Route(false, 400_000, 400_000)
	assert.False(t, d.UseAgentQA)
	assert.Equal(t, ReasonDefault, d.Reason)
}

func TestRoute_JustOverThresholdAutoRoutes(t *testing.T) {
	d := Route(false, 400_001, 400_000)
	assert.True(t, d.UseAgentQA)
	assert.Equal(t, ReasonDocumentSize, d.Reason)
}

func TestRoute_ZeroCharCountUsesLocalQA(t *testing.T) {
	d := Route(false, 0, DefaultCharThreshold)
	assert.False(t, d.UseAgentQA)
	assert.Equal(t, ReasonDefault, d.Reason)
}

func TestRoute_CustomThreshold(t *testing.T) {
	d := Route(false, 150_000, 100_000)
	assert.True(t, d.UseAgentQA)
	assert.Equal(t, ReasonDocumentSize, d.Reason)
}

func TestRoute_NonPositiveThresholdFallsBackToDefault(t *testing.T) {
	d := Route(false, DefaultCharThreshold+1, 0)
	assert.True(t, d.UseAgentQA)
	assert.Equal(t, ReasonDocumentSize, d.Reason)
}

func TestAnswerCountConstraint(t *testing.T) {
	one := 1
	three := 3
	cases := []struct {
		name     string
		min      int
		max      *int
		expected string
	}{
		{"exactly one", 1, &one, "Provide exactly 1 answer."},
		{"exactly n", 3, &three, "Provide exactly 3 answers."},
		{"unbounded from one", 1, nil, "Provide at least 1 answer (or more if found)."},
		{"unbounded from n", 2, nil, "Provide at least 2 answers (or more if found)."},
		{"range", 1, &three, "Provide between 1 and 3 answers."},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, answerCountConstraint(c.min, c.max))
		})
	}
}

func TestAgentPrompt_ComposesFourSectionsWithSeparators(t *testing.T) {
	max := 1
	prompt := AgentPrompt(PromptRequest{
		MatrixType:   MatrixTypeStandard,
		QuestionType: QuestionTypeText,
		QuestionText: "What is the termination notice period?",
		DocumentIDs:  []int{7, 9},
		MinAnswers:   1,
		MaxAnswers:   &max,
	})

	assert.Contains(t, prompt, "# AGENT INSTRUCTIONS")
	assert.Contains(t, prompt, "# ANALYSIS STYLE")
	assert.Contains(t, prompt, "# OUTPUT FORMAT")
	assert.Contains(t, prompt, "# YOUR TASK")
	assert.Contains(t, prompt, "[[document:7]]")
	assert.Contains(t, prompt, "[[document:9]]")
	assert.Contains(t, prompt, "Provide exactly 1 answer.")
	assert.Contains(t, prompt, "[[cite:N]]")
	assert.Equal(t, 3, countSeparators(prompt))
}

func TestAgentPrompt_SelectRendersOptions(t *testing.T) {
	prompt := AgentPrompt(PromptRequest{
		MatrixType:   MatrixTypeCrossCorrelation,
		QuestionType: QuestionTypeSelect,
		QuestionText: "Which jurisdiction governs?",
		DocumentIDs:  []int{1},
		Options:      []string{"California", "Delaware"},
		MinAnswers:   1,
	})

	assert.Contains(t, prompt, "Available Options (SELECT question)")
	assert.Contains(t, prompt, "- California")
	assert.Contains(t, prompt, "- Delaware")
	assert.Contains(t, prompt, "cross-document analysis")
}

func TestLocalPrompt_OmitsOrchestrationSection(t *testing.T) {
	prompt := LocalPrompt(PromptRequest{
		MatrixType:   MatrixTypeStandard,
		QuestionType: QuestionTypeText,
		QuestionText: "What is the termination notice period?",
		DocumentIDs:  []int{7},
		MinAnswers:   1,
	})

	assert.NotContains(t, prompt, "# AGENT INSTRUCTIONS")
	assert.NotContains(t, prompt, "MCP tools")
	assert.Contains(t, prompt, "# ANALYSIS STYLE")
	assert.Contains(t, prompt, "# OUTPUT FORMAT")
	assert.Contains(t, prompt, "# YOUR TASK")
	assert.Equal(t, 2, countSeparators(prompt))
}

func countSeparators(s string) int {
	n := 0
	for i := 0; i+3 <= len(s); i++ {
		if s[i:i+3] == "---" {
			n++
		}
	}
	return n
}
