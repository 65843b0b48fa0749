// Package normalize maps raw region labels found in input files to the
// canonical region names used for grouping.
package normalize

import (
	_ "embed"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"aadhaar/internal/core"
)

//go:embed aliases.yaml
var aliasesYAML []byte

// Alias is one exact-match replacement applied to a cleaned label.
type Alias struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type table struct {
	Canonical []string `yaml:"canonical"`
	Aliases   []Alias  `yaml:"aliases"`
}

var (
	aliases    []Alias
	aliasIndex map[string]string
	canonical  []string
	isCanon    map[string]struct{}
)

func init() {
	t, err := parseTable(aliasesYAML)
	if err != nil {
		panic(fmt.Sprintf("normalize: embedded alias table: %v", err))
	}
	aliases = t.Aliases
	canonical = t.Canonical
	aliasIndex = indexAliases(t.Aliases)
	isCanon = make(map[string]struct{}, len(t.Canonical))
	for _, c := range t.Canonical {
		isCanon[c] = struct{}{}
	}
}

func parseTable(data []byte) (table, error) {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return table{}, fmt.Errorf("parse alias table: %w", err)
	}
	if len(t.Canonical) == 0 {
		return table{}, fmt.Errorf("alias table has no canonical labels")
	}
	return t, nil
}

// indexAliases keeps the first replacement listed for each key.
func indexAliases(list []Alias) map[string]string {
	idx := make(map[string]string, len(list))
	for _, a := range list {
		if _, seen := idx[a.From]; seen {
			continue
		}
		idx[a.From] = a.To
	}
	return idx
}

// CanonicalizeState maps a raw state label to its canonical form.
//
// A missing label (present == false) is returned unchanged. Otherwise the
// label is cleaned, then looked up once in the alias table. Labels the table
// does not cover pass through in cleaned form; deciding what to do with them
// is up to the caller.
func CanonicalizeState(raw string, present bool) (string, bool) {
	if !present {
		return raw, false
	}
	s := Clean(raw)
	if to, ok := aliasIndex[s]; ok {
		return to, true
	}
	return s, true
}

// Clean trims the label, upper-cases it, collapses internal whitespace runs
// to a single space and spells out "&" as "AND".
func Clean(raw string) string {
	s := strings.Join(strings.Fields(raw), " ")
	s = cases.Upper(language.Und).String(s)
	return strings.ReplaceAll(s, "&", "AND")
}

// IsCanonical reports whether label is one of the recognized regions.
// The UNKNOWN sentinel is not a region.
func IsCanonical(label string) bool {
	_, ok := isCanon[label]
	return ok
}

// IsUnknown reports whether label is the UNKNOWN sentinel.
func IsUnknown(label string) bool {
	return label == core.UnknownState
}

// Canonical returns the recognized region labels.
func Canonical() []string {
	return append([]string(nil), canonical...)
}

// Aliases returns the alias table in priority order.
func Aliases() []Alias {
	return append([]Alias(nil), aliases...)
}
