package records

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortMode selects the ordering applied by a Query.
type SortMode string

const (
	// SortDateDesc orders by creation time, most recent first. Default.
	SortDateDesc SortMode = "date-desc"
	// SortDateAsc orders by creation time, oldest first.
	SortDateAsc SortMode = "date-asc"
	// SortNameAsc orders by name using locale-aware comparison.
	SortNameAsc SortMode = "name-asc"
)

// GroupFilterAll disables group filtering.
const GroupFilterAll = "all"

// ParseSortMode maps raw input onto a SortMode, falling back to the default
// ordering for unknown values.
func ParseSortMode(rawInput string) SortMode {
	switch SortMode(strings.ToLower(strings.TrimSpace(rawInput))) {
	case SortDateAsc:
		return SortDateAsc
	case SortNameAsc:
		return SortNameAsc
	default:
		return SortDateDesc
	}
}

// Query describes a filter and ordering over an in-memory combination
// collection. The zero value matches everything and sorts date-desc.
type Query struct {
	Search      string
	GroupFilter string
	Sort        SortMode
}

// Apply filters and orders the supplied combinations. The group collection is
// consulted to resolve dangling group references: a combination whose group no
// longer exists is treated as ungrouped, so it never matches a specific group
// filter and always passes under "all".
//
// Matching is tokenized AND: the trimmed, lowercased search term is split on
// whitespace and every token must match the combination on at least one field
// (name, notes, or any of the three numbers in plain or zero-padded decimal
// form). Sorting is stable for every mode.
//
// Apply is pure; the input slices are never mutated.
func (q Query) Apply(combinations []Combination, groups []Group) []Combination {
	known := make(map[string]struct{}, len(groups))
	for _, group := range groups {
		known[canonicalID(group.GroupID)] = struct{}{}
	}

	groupFilter := canonicalID(q.GroupFilter)
	tokens := strings.Fields(strings.ToLower(strings.TrimSpace(q.Search)))

	matched := make([]Combination, 0, len(combinations))
	for _, combination := range combinations {
		effectiveGroup := canonicalID(combination.GroupID)
		if _, ok := known[effectiveGroup]; !ok {
			effectiveGroup = ""
		}
		if groupFilter != "" && groupFilter != GroupFilterAll {
			if effectiveGroup == "" || effectiveGroup != groupFilter {
				continue
			}
		}
		if !matchesAllTokens(combination, tokens) {
			continue
		}
		matched = append(matched, combination)
	}

	sortCombinations(matched, q.Sort)
	return matched
}

// canonicalID normalizes an identifier for equality checks. Identifiers
// arrive both as raw numeric strings and as trimmed opaque strings depending
// on the caller, so comparison always happens on the trimmed string form.
func canonicalID(rawInput string) string {
	return strings.TrimSpace(rawInput)
}

func matchesAllTokens(combination Combination, tokens []string) bool {
	for _, token := range tokens {
		if !matchesToken(combination, token) {
			return false
		}
	}
	return true
}

func matchesToken(combination Combination, token string) bool {
	if strings.Contains(strings.ToLower(combination.Name), token) {
		return true
	}
	if strings.Contains(strings.ToLower(combination.Notes), token) {
		return true
	}
	for _, number := range combination.Numbers() {
		if strings.Contains(strconv.Itoa(number), token) {
			return true
		}
		if strings.Contains(fmt.Sprintf("%02d", number), token) {
			return true
		}
	}
	return false
}

func sortCombinations(combinations []Combination, mode SortMode) {
	switch mode {
	case SortDateAsc:
		sort.SliceStable(combinations, func(i, j int) bool {
			return combinations[i].CreatedAtSeconds < combinations[j].CreatedAtSeconds
		})
	case SortNameAsc:
		// Loose collation folds case, width and diacritics, so "alpha"
		// sorts before "Beta". Equal names keep their input order.
		collator := collate.New(language.Und, collate.Loose)
		sort.SliceStable(combinations, func(i, j int) bool {
			return collator.CompareString(combinations[i].Name, combinations[j].Name) < 0
		})
	default:
		sort.SliceStable(combinations, func(i, j int) bool {
			return combinations[i].CreatedAtSeconds > combinations[j].CreatedAtSeconds
		})
	}
}
