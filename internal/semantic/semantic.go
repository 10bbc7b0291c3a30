// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

// Package semantic classifies free text into a closed set of category
// clusters via trigger and synonym term matching. It is stateless and pure:
// no learning, no persistence.
package semantic

import (
	"strings"
	"unicode"
)

// Cluster is one of the fixed category clusters. Unknown input always
// resolves to ClusterSoftware, the designated fallback.
type Cluster string

const (
	ClusterSoftware     Cluster = "software"
	ClusterAI           Cluster = "ai"
	ClusterBusiness     Cluster = "business"
	ClusterMarketing    Cluster = "marketing"
	ClusterDesign       Cluster = "design"
	ClusterCourses      Cluster = "courses"
	ClusterFinance      Cluster = "finance"
	ClusterProductivity Cluster = "productivity"
)

// Fallback is the cluster returned when nothing scores above zero.
const Fallback = ClusterSoftware

const (
	triggerWeight = 3.0
	synonymWeight = 1.5
)

// clusterDef declares one cluster's matching terms and its adjacent
// clusters (same product family; used for ranking affinity).
type clusterDef struct {
	id       Cluster
	triggers []string
	synonyms []string
	adjacent []Cluster
}

// clusterDefs is the fixed ordered cluster list. Declaration order breaks
// score ties: the first-listed cluster wins.
var clusterDefs = []clusterDef{
	{
		id:       ClusterAI,
		triggers: []string{"ai", "gpt", "llm", "machine learning", "neural", "chatbot", "copilot"},
		synonyms: []string{"assistant", "automation", "prompt", "model", "generative"},
		adjacent: []Cluster{ClusterSoftware, ClusterProductivity},
	},
	{
		id:       ClusterBusiness,
		triggers: []string{"crm", "sales", "invoice", "erp", "payroll", "hr "},
		synonyms: []string{"pipeline", "leads", "customer", "quote", "contract"},
		adjacent: []Cluster{ClusterFinance, ClusterMarketing},
	},
	{
		id:       ClusterMarketing,
		triggers: []string{"seo", "email marketing", "campaign", "social media", "ads", "funnel"},
		synonyms: []string{"audience", "outreach", "newsletter", "traffic", "conversion"},
		adjacent: []Cluster{ClusterBusiness, ClusterDesign},
	},
	{
		id:       ClusterDesign,
		triggers: []string{"design", "logo", "mockup", "figma", "illustration", "ui kit"},
		synonyms: []string{"template", "font", "icon", "brand", "graphic"},
		adjacent: []Cluster{ClusterMarketing},
	},
	{
		id:       ClusterCourses,
		triggers: []string{"course", "bootcamp", "masterclass", "tutorial", "certification"},
		synonyms: []string{"learn", "training", "lesson", "academy", "workshop"},
		adjacent: []Cluster{ClusterProductivity},
	},
	{
		id:       ClusterFinance,
		triggers: []string{"accounting", "bookkeeping", "tax", "budget", "expense"},
		synonyms: []string{"money", "cashflow", "billing", "payment", "banking"},
		adjacent: []Cluster{ClusterBusiness},
	},
	{
		id:       ClusterProductivity,
		triggers: []string{"todo", "task manager", "notes", "calendar", "time tracking"},
		synonyms: []string{"workflow", "focus", "organize", "schedule", "collaboration"},
		adjacent: []Cluster{ClusterSoftware, ClusterAI},
	},
	{
		id:       ClusterSoftware,
		triggers: []string{"app", "saas", "software", "tool", "plugin", "api"},
		synonyms: []string{"license", "hosting", "cloud", "platform", "bundle"},
		adjacent: []Cluster{ClusterAI, ClusterProductivity},
	},
}

// Known reports whether s names a declared cluster.
func Known(s string) bool {
	for _, def := range clusterDefs {
		if string(def.id) == s {
			return true
		}
	}
	return false
}

// FromString resolves a free-form category key to a cluster: a declared
// cluster name maps directly, anything else is classified by its text.
func FromString(s string) Cluster {
	s = strings.ToLower(strings.TrimSpace(s))
	if Known(s) {
		return Cluster(s)
	}
	return DetectCluster(s)
}

// DetectCluster scores every cluster by summed trigger/synonym hits in the
// normalized text and returns the argmax. Ties break by declaration order;
// a zero score returns the fallback cluster.
func DetectCluster(text string) Cluster {
	norm := normalize(text)
	if norm == "" {
		return Fallback
	}

	best := Fallback
	bestScore := 0.0
	for _, def := range clusterDefs {
		score := 0.0
		for _, term := range def.triggers {
			if matches(norm, term) {
				score += triggerWeight
			}
		}
		for _, term := range def.synonyms {
			if matches(norm, term) {
				score += synonymWeight
			}
		}
		if score > bestScore {
			best = def.id
			bestScore = score
		}
	}
	return best
}

// Affinity scores how related two clusters are: 1.0 for an exact match,
// 0.6 for adjacent families, 0.25 otherwise. This is the semantic
// sub-score's floor structure.
func Affinity(a, b Cluster) float64 {
	if a == b {
		return 1.0
	}
	for _, def := range clusterDefs {
		if def.id != a {
			continue
		}
		for _, adj := range def.adjacent {
			if adj == b {
				return 0.6
			}
		}
	}
	return 0.25
}

// normalize lowercases and replaces every non-alphanumeric rune with a
// space, collapsing runs.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
		} else if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return " " + strings.TrimSpace(b.String()) + " "
}

// matches checks a term against normalized text. Terms of one or two
// characters must match a whole word; longer terms match as substrings.
func matches(norm, term string) bool {
	term = strings.TrimSpace(term)
	if len(term) <= 2 {
		return strings.Contains(norm, " "+term+" ")
	}
	return strings.Contains(norm, term)
}
