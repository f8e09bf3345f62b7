// Package chunking implements C7's strategy-selecting chunker and chunk-set
// persistence: detect a document's markdown structure, pick a chunking
// strategy, and — given chunk bodies already produced by that strategy —
// persist them to object storage and the database as one atomically-visible
// chunk set.
//
// Grounded on SPEC_FULL.md §4.7 and original_source/backend/packages/documents'
// chunking-strategy selection logic; no equivalent exists in the teacher
// itself, so the package is written fresh in the teacher's file/doc-comment
// style.
package chunking

import (
	"regexp"
	"sort"
	"strings"
)

// Strategy is one of the concrete chunking strategies a ChunkSet can record.
type Strategy string

// Supported strategies, matching ent/schema/chunkset.go's chunking_strategy enum.
const (
	StrategyFixedSize Strategy = "fixed_size"
	StrategySentence  Strategy = "sentence"
	StrategyParagraph Strategy = "paragraph"
	StrategyAgentic   Strategy = "agentic"
)

// AgenticSubStrategy further refines StrategyAgentic: whether the agent
// should chunk by heading hierarchy or fall back to semantic chunking.
type AgenticSubStrategy string

const (
	SubStrategyHierarchical AgenticSubStrategy = "pageindex_enhanced"
	SubStrategySemantic     AgenticSubStrategy = "semantic"
)

// MinHeaders is the default minimum header count for the hierarchical branch.
const MinHeaders = 3

var headerPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
var fencePattern = regexp.MustCompile("^\\s*(```|~~~)")

// Header is one heading detected in a document.
type Header struct {
	Level int
	Text  string
}

// Structure summarizes a document's markdown heading layout.
type Structure struct {
	TotalHeaders  int
	DistinctLevels []int
	HasHierarchy  bool
	SampleHeaders []Header
}

// DetectStructure scans content line by line, skipping fenced code blocks,
// and records every ATX heading (`^#{1,6}\s+.+`) outside a fence.
func DetectStructure(content string) Structure {
	var headers []Header
	inFence := false
	levels := map[int]bool{}

	for _, line := range strings.Split(content, "\n") {
		if fencePattern.MatchString(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		m := headerPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		level := len(m[1])
		text := strings.TrimSpace(m[2])
		headers = append(headers, Header{Level: level, Text: text})
		levels[level] = true
	}

	distinct := make([]int, 0, len(levels))
	for l := range levels {
		distinct = append(distinct, l)
	}
	sort.Ints(distinct)

	sample := headers
	if len(sample) > 5 {
		sample = sample[:5]
	}

	return Structure{
		TotalHeaders:   len(headers),
		DistinctLevels: distinct,
		HasHierarchy:   len(distinct) >= 2,
		SampleHeaders:  sample,
	}
}

// Decision is the outcome of agentic sub-strategy selection: which shape of
// agentic chunking to run, and why, for observability.
type Decision struct {
	SubStrategy AgenticSubStrategy
	Reason      string
}

// SelectAgenticSubStrategy decides hierarchical vs. semantic chunking for the
// agentic tier, given a document's detected Structure.
func SelectAgenticSubStrategy(s Structure) Decision {
	if s.TotalHeaders >= MinHeaders && s.HasHierarchy {
		return Decision{
			SubStrategy: SubStrategyHierarchical,
			Reason:      "document has a clear heading hierarchy",
		}
	}
	return Decision{
		SubStrategy: SubStrategySemantic,
		Reason:      "document lacks a strong heading hierarchy; falling back to semantic chunking",
	}
}

// tierStrategy is the fixed tier→strategy override table from SPEC_FULL.md
// §4.7: free→fixed_size, starter→sentence, professional/business/enterprise→agentic.
var tierStrategy = map[string]Strategy{
	"free":         StrategyFixedSize,
	"starter":      StrategySentence,
	"professional": StrategyAgentic,
	"business":     StrategyAgentic,
	"enterprise":   StrategyAgentic,
}

// SelectStrategy resolves the chunking strategy for a subscription tier.
// Unknown tiers fall back to StrategyParagraph, a conservative default that
// needs no agent and no fixed-size configuration.
func SelectStrategy(tier string) Strategy {
	if s, ok := tierStrategy[tier]; ok {
		return s
	}
	return StrategyParagraph
}
