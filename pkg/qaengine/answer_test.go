package qaengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusforge/platform/ent"
)

func TestComposeContextJoinsPassagesInOrder(t *testing.T) {
	passages := []passage{
		{chunk: &ent.Chunk{ChunkOrder: 0}, text: "first chunk."},
		{chunk: &ent.Chunk{ChunkOrder: 1}, text: "second chunk."},
	}

	got := composeContext(passages, HybridWeights{Keyword: 0.5, Vector: 0.5})

	assert.Contains(t, got, "first chunk.")
	assert.Contains(t, got, "second chunk.")
	assert.True(t, indexOf(got, "first chunk.") < indexOf(got, "second chunk."))
}

func TestExtractJSON_Sentinel(t *testing.T) {
	_, notFound, err := extractJSON("I could not find this in the documents. <<ANSWER_NOT_FOUND>>")
	require.NoError(t, err)
	assert.True(t, notFound)
}

func TestExtractJSON_FencedBlock(t *testing.T) {
	raw := "Here you go:\n```json\n{\"items\": [{\"value\": \"five years\"}]}\n```\nThanks."
	jsonText, notFound, err := extractJSON(raw)
	require.NoError(t, err)
	assert.False(t, notFound)
	assert.Contains(t, jsonText, "five years")
}

func TestExtractJSON_BareObject(t *testing.T) {
	raw := "Sure, {\"items\": [{\"value\": \"net 30\"}]} is the answer."
	jsonText, notFound, err := extractJSON(raw)
	require.NoError(t, err)
	assert.False(t, notFound)
	assert.Contains(t, jsonText, "net 30")
}

func TestNormalizeItems_CurrentShape(t *testing.T) {
	items, err := normalizeItems(`{"items": [{"value": "five years", "confidence": 0.9, "citations": [{"document_id": 11, "quote_text": "five years"}]}]}`)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "five years", items[0].Value)
	assert.Len(t, items[0].Citations, 1)
}

func TestNormalizeItems_LegacyNestedShape(t *testing.T) {
	items, err := normalizeItems(`{"answers": [{"value": "net 30", "citations": [{"document_id": 12, "quote": "Payment is due net 30"}]}]}`)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "net 30", items[0].Value)
	require.Len(t, items[0].Citations, 1)
	assert.Equal(t, "Payment is due net 30", items[0].Citations[0].QuoteText)
}

func TestNormalizeItems_LegacyFlatShape(t *testing.T) {
	items, err := normalizeItems(`{"value": "net 30", "citations": [{"document_id": 12, "quote_text": "Payment is due net 30"}]}`)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "net 30", items[0].Value)
}

func TestGroundCitation_ExactMatchScoresOne(t *testing.T) {
	passages := []passage{
		{chunk: &ent.Chunk{DocumentID: 11}, text: "The contract term is five years, renewable annually."},
	}
	gc := groundCitation(passages, extractedCitation{DocumentID: 11, QuoteText: "five years"})
	assert.True(t, gc.grounded)
	assert.Equal(t, 1.0, gc.score)
}

func TestGroundCitation_NormalizedMatchScoresPoint95(t *testing.T) {
	passages := []passage{
		{chunk: &ent.Chunk{DocumentID: 11}, text: "The   Contract   Term is five years."},
	}
	gc := groundCitation(passages, extractedCitation{DocumentID: 11, QuoteText: "the contract term is five years"})
	assert.True(t, gc.grounded)
	assert.Equal(t, 0.95, gc.score)
}

func TestGroundCitation_UnrelatedQuoteIsUngrounded(t *testing.T) {
	passages := []passage{
		{chunk: &ent.Chunk{DocumentID: 11}, text: "The contract term is five years, renewable annually."},
	}
	gc := groundCitation(passages, extractedCitation{DocumentID: 11, QuoteText: "quantum entanglement and dark matter cosmology"})
	assert.False(t, gc.grounded)
	assert.Contains(t, gc.errMessage, "similarity=")
}

func TestGroundCitation_MissingDocumentIsUngrounded(t *testing.T) {
	passages := []passage{
		{chunk: &ent.Chunk{DocumentID: 11}, text: "some content"},
	}
	gc := groundCitation(passages, extractedCitation{DocumentID: 99, QuoteText: "some content"})
	assert.False(t, gc.grounded)
	assert.Equal(t, "document not available", gc.errMessage)
}

func TestGroundItems_AveragesAcrossCitations(t *testing.T) {
	passages := []passage{
		{chunk: &ent.Chunk{DocumentID: 11}, text: "The contract term is five years."},
	}
	items := []extractedItem{
		{Value: "five years", Citations: []extractedCitation{{DocumentID: 11, QuoteText: "five years"}}},
	}
	_, overall := groundItems(passages, items)
	assert.Equal(t, 1.0, overall)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
