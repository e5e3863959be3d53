package segment

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Rules is the tunable rule table behind the question classifiers.
// Phrases are matched case-insensitively as whole words.
type Rules struct {
	// QuestionStarters - interrogatives, polite requests and instructional verbs.
	QuestionStarters []string `yaml:"question_starters"`
	// TechnicalKeywords - interview/domain vocabulary that marks a likely question.
	TechnicalKeywords []string `yaml:"technical_keywords"`
	// CandidatePhrases - openings typical of the candidate answering. They veto
	// a question unless the text carries a question mark.
	CandidatePhrases []string `yaml:"candidate_phrases"`
	// TerminalPunctuation - a text ending in one of these runes is complete.
	TerminalPunctuation string `yaml:"terminal_punctuation"`
	// MinCompleteLength - rune floor for pattern-based completeness.
	MinCompleteLength int `yaml:"min_complete_length"`
	// CompletePatterns - subject + modal/verb regexes for unpunctuated questions.
	CompletePatterns []string `yaml:"complete_patterns"`
}

// DefaultRules returns the built-in rule table.
func DefaultRules() Rules {
	return Rules{
		QuestionStarters: []string{
			// interrogatives
			"what", "why", "how", "when", "where", "which", "who",
			"can you", "could you", "would you", "will you", "should you",
			"do you", "did you", "have you", "are you", "is there", "is it",
			// polite requests
			"tell me", "walk me through", "talk me through", "give me",
			"talk about", "share", "please", "i'd like you to", "i want you to",
			// instructional verbs
			"explain", "describe", "implement", "design", "write", "solve",
			"compare", "optimize", "define",
		},
		TechnicalKeywords: []string{
			"time complexity", "space complexity", "big o", "algorithm",
			"data structure", "hashmap", "hash map", "hash table", "binary search",
			"linked list", "binary tree", "graph", "recursion", "dynamic programming",
			"database", "index", "api", "system design", "scalability", "concurrency",
			"deadlock", "cache", "trade-off", "tradeoff", "microservice",
		},
		CandidatePhrases: []string{
			"i would use", "i'd use", "i would probably", "i think", "let me think",
			"so basically", "basically", "my approach", "in my experience",
			"i'm going to", "i am going to", "i worked", "i have worked", "i used",
		},
		TerminalPunctuation: ".?!",
		MinCompleteLength:   40,
		CompletePatterns: []string{
			`(?i)\b(?:can|could|would|will|should|do|did|have|are|were)\s+(?:you|we|they)\b`,
			`(?i)\b(?:you|we)\s+(?:would|will|can|could|should|might|need to|have to)\b`,
		},
	}
}

// LoadRules reads a YAML rule table. Keys missing from the file keep their
// default values.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("read rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return DefaultRules(), fmt.Errorf("parse rules file %s: %w", path, err)
	}
	return rules, nil
}

// Classifier evaluates the compiled rule table. Both classifiers are total
// functions: uncertainty is a false result, never an error.
type Classifier struct {
	starters    *regexp.Regexp
	keywords    *regexp.Regexp
	candidate   *regexp.Regexp
	terminal    string
	minComplete int
	complete    []*regexp.Regexp
}

// NewClassifier compiles a rule table.
func NewClassifier(r Rules) (*Classifier, error) {
	c := &Classifier{
		starters:    phraseRegexp(r.QuestionStarters, false),
		keywords:    phraseRegexp(r.TechnicalKeywords, false),
		candidate:   phraseRegexp(r.CandidatePhrases, true),
		terminal:    r.TerminalPunctuation,
		minComplete: r.MinCompleteLength,
	}
	for _, p := range r.CompletePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile complete pattern %q: %w", p, err)
		}
		c.complete = append(c.complete, re)
	}
	return c, nil
}

// DefaultClassifier compiles DefaultRules.
func DefaultClassifier() *Classifier {
	c, err := NewClassifier(DefaultRules())
	if err != nil {
		panic(err)
	}
	return c
}

// phraseRegexp builds a case-insensitive whole-word alternation.
// anchored restricts the match to the start of the text.
func phraseRegexp(phrases []string, anchored bool) *regexp.Regexp {
	quoted := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(p))
	}
	if len(quoted) == 0 {
		return nil
	}
	prefix := `(?i)\b`
	if anchored {
		prefix = `(?i)^\s*`
	}
	return regexp.MustCompile(prefix + `(?:` + strings.Join(quoted, "|") + `)\b`)
}

// IsLikelyQuestion reports whether text reads like an interviewer question.
func (c *Classifier) IsLikelyQuestion(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	if strings.Contains(t, "?") {
		return true
	}
	if c.candidate != nil && c.candidate.MatchString(t) {
		return false
	}
	if c.starters != nil && c.starters.MatchString(t) {
		return true
	}
	return c.keywords != nil && c.keywords.MatchString(t)
}

// IsComplete reports whether text reads like a finished question.
func (c *Classifier) IsComplete(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(t)
	if strings.ContainsRune(c.terminal, last) {
		return true
	}
	if utf8.RuneCountInString(t) < c.minComplete || !c.IsLikelyQuestion(t) {
		return false
	}
	for _, re := range c.complete {
		if re.MatchString(t) {
			return true
		}
	}
	return false
}
