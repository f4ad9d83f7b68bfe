// Package contextpack assembles a prioritized context blob from stored
// memories, for prepending to an agent's working context.
//
// Memories are grouped into fixed tiers ordered by how foundational they
// are: who the user is comes before what they are working on, and both come
// before whatever merely matched the current query.
package contextpack

import (
	"strings"

	"github.com/engramlabs/engram-go/pkg/storage"
)

// TierOrder is the fixed priority order of context tiers. The first four
// are category tiers; "relevant" holds query-matched memories of any other
// category.
var TierOrder = []string{"identity", "family", "preference", "project", "relevant"}

// tierHeadings maps tiers to the headings used in the assembled blob.
var tierHeadings = map[string]string{
	"identity":   "About the user",
	"family":     "Family",
	"preference": "Preferences",
	"project":    "Current projects",
	"relevant":   "Relevant memories",
}

// DefaultPerTierLimit caps how many memories each tier contributes.
const DefaultPerTierLimit = 5

// Assembler builds tiered context blobs.
type Assembler struct {
	// perTierLimit caps memories per tier.
	perTierLimit int
}

// NewAssembler creates an assembler. A limit of 0 selects
// DefaultPerTierLimit.
func NewAssembler(perTierLimit int) *Assembler {
	if perTierLimit <= 0 {
		perTierLimit = DefaultPerTierLimit
	}
	return &Assembler{perTierLimit: perTierLimit}
}

// Assemble produces the context blob.
//
// tiered holds memories already fetched per category tier (keyed by
// category); relevant holds the fused search results for the current query.
// Relevant memories whose category already has its own tier are skipped so
// a memory never appears twice. Empty tiers are omitted. Returns "" when
// there is nothing to say.
func (a *Assembler) Assemble(tiered map[string][]*storage.Memory, relevant []*storage.Memory) string {
	var b strings.Builder

	seen := make(map[int64]bool)
	for _, tier := range TierOrder {
		var memories []*storage.Memory
		if tier == "relevant" {
			memories = relevant
		} else {
			memories = tiered[tier]
		}

		count := 0
		var lines []string
		for _, memory := range memories {
			if count >= a.perTierLimit {
				break
			}
			if seen[memory.ID] {
				continue
			}
			// Memories whose category owns a tier belong there, not in
			// the relevant spillover.
			if tier == "relevant" && isCategoryTier(memory.Category) {
				continue
			}
			seen[memory.ID] = true
			lines = append(lines, "- "+memory.Content)
			count++
		}

		if len(lines) == 0 {
			continue
		}

		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## " + tierHeadings[tier] + "\n")
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n")
	}

	return b.String()
}

// isCategoryTier reports whether a category has a dedicated tier.
func isCategoryTier(category string) bool {
	switch category {
	case "identity", "family", "preference", "project":
		return true
	}
	return false
}
