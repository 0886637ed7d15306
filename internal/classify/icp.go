// Package classify buckets building records into ICP tiers and applies the
// eligibility floor. The tier rules live in an embedded YAML table so each
// rule can be tested and adjusted without touching control flow.
package classify

import (
	_ "embed"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/suncrest-solar/leadscout/internal/model"
)

//go:embed rules.yaml
var rulesYAML []byte

// Rule is one ordered tier rule. Tokens match as substrings of the record's
// lowercase classification blob.
type Rule struct {
	Bucket string   `yaml:"bucket"`
	Tier   int      `yaml:"tier"`
	Tokens []string `yaml:"tokens"`
}

// Tier labels used by the scorer.
const (
	TierOne       = 1
	TierTwo       = 2
	TierExclusion = -1
)

// Classifier evaluates the ordered rule table, first match wins.
type Classifier struct {
	rules      []Rule
	defaultTo  string
	tierByName map[string]int
}

type ruleFile struct {
	Rules   []Rule `yaml:"rules"`
	Default string `yaml:"default"`
}

// New loads the embedded rule table.
func New() (*Classifier, error) {
	return parse(rulesYAML)
}

func parse(data []byte) (*Classifier, error) {
	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, eris.Wrap(err, "classify: parse rule table")
	}
	if len(rf.Rules) == 0 {
		return nil, eris.New("classify: rule table has no rules")
	}
	if rf.Default == "" {
		rf.Default = model.BucketGeneralCommercial
	}

	tiers := make(map[string]int, len(rf.Rules))
	for _, r := range rf.Rules {
		tiers[r.Bucket] = r.Tier
	}
	tiers[rf.Default] = 0

	return &Classifier{rules: rf.Rules, defaultTo: rf.Default, tierByName: tiers}, nil
}

// Classify returns the ICP bucket for a record.
func (c *Classifier) Classify(rec *model.BuildingRecord) string {
	blob := Blob(rec)
	for _, rule := range c.rules {
		for _, token := range rule.Tokens {
			if strings.Contains(blob, token) {
				return rule.Bucket
			}
		}
	}
	return c.defaultTo
}

// Tier returns the tier of a bucket: 1, 2, -1 for the exclusion tier, and 0
// for the default/unknown buckets.
func (c *Classifier) Tier(bucket string) int {
	return c.tierByName[bucket]
}

// Blob builds the lowercase classification text from the building type and
// business category tags. Diacritics are folded so an accented tag still
// hits its ASCII token.
func Blob(rec *model.BuildingRecord) string {
	parts := []string{rec.BuildingType}
	if rec.Business != nil {
		parts = append(parts, rec.Business.CategoryTags...)
	}
	blob := strings.ToLower(strings.Join(parts, " "))
	blob = strings.ReplaceAll(blob, "_", " ")
	return foldDiacritics(blob)
}

var diacriticStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

func foldDiacritics(s string) string {
	out, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		return s
	}
	return out
}
