package tierrouter

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// DefaultShortInputChars is the input length below which an unmatched
// request is classified cheap.
const DefaultShortInputChars = 280

// DefaultClassification returns the default keyword table.
func DefaultClassification() map[Tier][]string {
	return map[Tier][]string{
		TierCheap: {
			"summarize", "summary", "classify", "extract", "triage",
			"categorize", "match", "lint", "format", "simple",
		},
		TierCapable: {
			"generate", "review", "debug", "fix", "refactor", "explain",
			"document", "analyze", "write", "suggest",
		},
		TierPremium: {
			"architect", "plan", "design", "coordinate", "synthesize",
			"novel", "complex", "critical", "final",
		},
	}
}

// Classification is the result of classifying a request.
type Classification struct {
	Tier     Tier
	Keyword  string // matched keyword or custom task name, empty on fallback
	Fallback bool
}

// Classifier maps task types to tiers using a keyword table. It is
// deterministic and safe for concurrent use.
type Classifier struct {
	keywords   map[Tier][]string
	shortInput int

	mu     sync.RWMutex
	custom map[string]Tier
}

// NewClassifier creates a Classifier from a tier → keywords table.
// A nil table uses DefaultClassification. shortInputChars <= 0 uses
// DefaultShortInputChars.
func NewClassifier(table map[Tier][]string, shortInputChars int) *Classifier {
	if table == nil {
		table = DefaultClassification()
	}
	if shortInputChars <= 0 {
		shortInputChars = DefaultShortInputChars
	}

	kw := make(map[Tier][]string, len(table))
	for tier, words := range table {
		for _, w := range words {
			if w = normalizeTask(w); w != "" {
				kw[tier] = append(kw[tier], w)
			}
		}
	}

	return &Classifier{
		keywords:   kw,
		shortInput: shortInputChars,
		custom:     make(map[string]Tier),
	}
}

// AddTaskRouting pins an exact task type to a tier.
func (c *Classifier) AddTaskRouting(taskType string, tier Tier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.custom[normalizeTask(taskType)] = tier
}

// Classify returns the tier for a request.
func (c *Classifier) Classify(taskType, input string) Tier {
	return c.Explain(taskType, input).Tier
}

// Explain classifies a request and reports how the tier was chosen.
//
// Lookup order: exact custom task type; keyword tables from premium down to
// cheap, where a keyword matches when a "_"-separated token of the task type
// starts with it; then input length (short → cheap, otherwise capable).
func (c *Classifier) Explain(taskType, input string) Classification {
	task := normalizeTask(taskType)

	if task != "" {
		c.mu.RLock()
		tier, ok := c.custom[task]
		c.mu.RUnlock()
		if ok {
			return Classification{Tier: tier, Keyword: task}
		}

		tokens := strings.Split(task, "_")
		for i := len(Tiers) - 1; i >= 0; i-- {
			tier := Tiers[i]
			for _, kw := range c.keywords[tier] {
				if task == kw || matchesToken(tokens, kw) {
					return Classification{Tier: tier, Keyword: kw}
				}
			}
		}
	}

	if utf8.RuneCountInString(strings.TrimSpace(input)) < c.shortInput {
		return Classification{Tier: TierCheap, Fallback: true}
	}
	return Classification{Tier: TierCapable, Fallback: true}
}

func matchesToken(tokens []string, kw string) bool {
	for _, t := range tokens {
		if t != "" && strings.HasPrefix(t, kw) {
			return true
		}
	}
	return false
}

func normalizeTask(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}
