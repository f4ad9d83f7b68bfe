package contextpack

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engramlabs/engram-go/pkg/storage"
)

func mem(id int64, content, category string) *storage.Memory {
	return &storage.Memory{ID: id, Content: content, Category: category}
}

func TestAssembleTierOrder(t *testing.T) {
	assembler := NewAssembler(5)

	tiered := map[string][]*storage.Memory{
		"identity":   {mem(1, "Name is Alex", "identity")},
		"family":     {mem(2, "Sister Maria lives in Lisbon", "family")},
		"preference": {mem(3, "Prefers oat milk", "preference")},
		"project":    {mem(4, "Building a garden shed", "project")},
	}
	relevant := []*storage.Memory{mem(5, "Asked about shed roofing last week", "context")}

	blob := assembler.Assemble(tiered, relevant)

	// Tiers appear in fixed priority order.
	idxIdentity := strings.Index(blob, "Name is Alex")
	idxFamily := strings.Index(blob, "Sister Maria")
	idxPreference := strings.Index(blob, "oat milk")
	idxProject := strings.Index(blob, "garden shed")
	idxRelevant := strings.Index(blob, "shed roofing")

	require.GreaterOrEqual(t, idxIdentity, 0)
	assert.Less(t, idxIdentity, idxFamily)
	assert.Less(t, idxFamily, idxPreference)
	assert.Less(t, idxPreference, idxProject)
	assert.Less(t, idxProject, idxRelevant)
}

func TestAssembleHeadings(t *testing.T) {
	assembler := NewAssembler(5)

	blob := assembler.Assemble(map[string][]*storage.Memory{
		"identity": {mem(1, "Name is Alex", "identity")},
	}, nil)

	assert.Contains(t, blob, "## About the user")
	assert.NotContains(t, blob, "## Family", "Empty tiers are omitted")
}

func TestAssembleDeduplicatesAcrossTiers(t *testing.T) {
	assembler := NewAssembler(5)

	shared := mem(1, "Name is Alex", "identity")
	blob := assembler.Assemble(map[string][]*storage.Memory{
		"identity": {shared},
	}, []*storage.Memory{shared})

	assert.Equal(t, 1, strings.Count(blob, "Name is Alex"))
}

func TestAssembleRelevantSkipsCategoryTiers(t *testing.T) {
	assembler := NewAssembler(5)

	// A preference memory surfacing only in search results still belongs
	// to its own tier, not the relevant spillover.
	blob := assembler.Assemble(nil, []*storage.Memory{
		mem(1, "Prefers window seats", "preference"),
		mem(2, "Asked about flight times", "context"),
	})

	assert.NotContains(t, blob, "window seats")
	assert.Contains(t, blob, "## Relevant memories")
	assert.Contains(t, blob, "flight times")
}

func TestAssemblePerTierLimit(t *testing.T) {
	assembler := NewAssembler(2)

	tiered := map[string][]*storage.Memory{
		"identity": {
			mem(1, "fact-one", "identity"),
			mem(2, "fact-two", "identity"),
			mem(3, "fact-three", "identity"),
		},
	}

	blob := assembler.Assemble(tiered, nil)
	assert.Contains(t, blob, "fact-one")
	assert.Contains(t, blob, "fact-two")
	assert.NotContains(t, blob, "fact-three")
}

func TestAssembleEmpty(t *testing.T) {
	assembler := NewAssembler(5)
	assert.Equal(t, "", assembler.Assemble(nil, nil))
}
