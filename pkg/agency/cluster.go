// Package agency groups near-duplicate free-text agency names for the filter
// dropdown. The sheets accumulate spelling, case and spacing variants of the
// same agency; clustering is by edit-distance similarity over normalized
// forms.
package agency

import (
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/guestpulse/matrice-engine/pkg/matrice"
)

// SimilarityThreshold is the minimum ratio for two normalized names to be
// considered the same agency (empirically 1 - 0.25).
const SimilarityThreshold = 0.75

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Cluster is one deduplicated agency for the dropdown: Display is the most
// frequent raw variant, QueryValue the normalized key used to filter rows.
type Cluster struct {
	Display    string `json:"display"`
	QueryValue string `json:"queryValue"`
}

type variant struct {
	raw   string
	count int
}

type group struct {
	key      string // representative normalized form
	variants []variant
}

// ClusterNames groups raw agency names that likely denote the same entity.
// Greedy assignment: each distinct raw name joins the first existing cluster
// whose representative is similar enough, else starts its own. O(U²) in the
// number of distinct names, which stays in the low hundreds per hotel.
func ClusterNames(raw []string) []Cluster {
	// Tally distinct raw variants first so frequency can elect the display
	// form, preserving first-seen order for deterministic clustering.
	var order []string
	counts := make(map[string]int)
	for _, name := range raw {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, seen := counts[trimmed]; !seen {
			order = append(order, trimmed)
		}
		counts[trimmed]++
	}

	var groups []*group
	for _, name := range order {
		key := Normalize(name)
		if key == "" {
			continue
		}
		g := findGroup(groups, key)
		if g == nil {
			g = &group{key: key}
			groups = append(groups, g)
		}
		g.variants = append(g.variants, variant{raw: name, count: counts[name]})
	}

	clusters := make([]Cluster, 0, len(groups))
	for _, g := range groups {
		clusters = append(clusters, Cluster{
			Display:    g.representative(),
			QueryValue: g.key,
		})
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].Display < clusters[j].Display })
	return clusters
}

func findGroup(groups []*group, key string) *group {
	for _, g := range groups {
		if Similarity(g.key, key) >= SimilarityThreshold {
			return g
		}
	}
	return nil
}

// representative returns the cluster's most frequent raw variant, ties
// broken by first appearance in the input.
func (g *group) representative() string {
	best := ""
	bestCount := -1
	for _, v := range g.variants {
		if v.count > bestCount {
			best = v.raw
			bestCount = v.count
		}
	}
	return best
}

// Normalize strips accents, lowercases, and collapses non-alphanumeric runs
// to single spaces.
func Normalize(name string) string {
	s := matrice.NormalizeText(name)
	return strings.TrimSpace(nonAlnum.ReplaceAllString(s, " "))
}

// Similarity is 1 - levenshtein(a,b)/max(len(a),len(b)) over normalized
// forms: 1 for identical strings, 0 for nothing in common.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len(a), len(b))
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}
