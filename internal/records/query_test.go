package records

import (
	"reflect"
	"testing"
)

func makeCombination(id, name string, numbers NumberTriple, groupID, notes string, createdAt int64) Combination {
	return Combination{
		CombinationID:    id,
		OwnerID:          "user-1",
		Name:             name,
		FirstNumber:      numbers[0],
		SecondNumber:     numbers[1],
		ThirdNumber:      numbers[2],
		GroupID:          groupID,
		Notes:            notes,
		CreatedAtSeconds: createdAt,
	}
}

func makeGroup(id, name string) Group {
	return Group{GroupID: id, OwnerID: "user-1", Name: name, Color: "bg-teal-500", CreatedAtSeconds: 1}
}

func combinationIDs(combinations []Combination) []string {
	ids := make([]string, 0, len(combinations))
	for _, combination := range combinations {
		ids = append(ids, combination.CombinationID)
	}
	return ids
}

func TestQueryTokenizedSearchRequiresAllTokens(t *testing.T) {
	safe := makeCombination("c1", "Caja Fuerte", NumberTriple{5, 72, 18}, "", "", 100)

	tests := []struct {
		name   string
		search string
		want   bool
	}{
		{name: "every-token-matches-some-field", search: "caja 05", want: true},
		{name: "token-without-field-match-rejects", search: "caja 99", want: false},
		{name: "plain-decimal-number-token", search: "72", want: true},
		{name: "zero-padded-single-digit", search: "05", want: true},
		{name: "unpadded-single-digit", search: "5", want: true},
		{name: "empty-search-matches-all", search: "   ", want: true},
		{name: "case-insensitive-name-substring", search: "FUERTE", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query := Query{Search: tt.search}
			result := query.Apply([]Combination{safe}, nil)
			if got := len(result) == 1; got != tt.want {
				t.Fatalf("search %q: match = %v, want %v", tt.search, got, tt.want)
			}
		})
	}
}

func TestQueryMatchesNotesField(t *testing.T) {
	noted := makeCombination("c1", "Locker", NumberTriple{1, 2, 3}, "", "office backup code", 100)

	result := Query{Search: "backup"}.Apply([]Combination{noted}, nil)
	if len(result) != 1 {
		t.Fatalf("expected notes substring to match, got %d results", len(result))
	}
}

func TestQueryGroupFilterPrecedesSearch(t *testing.T) {
	groups := []Group{makeGroup("3", "Vault")}
	grouped := makeCombination("c1", "Alpha", NumberTriple{1, 2, 3}, "3", "", 100)
	ungrouped := makeCombination("c2", "Alpha", NumberTriple{1, 2, 3}, "", "", 200)
	otherGroup := makeCombination("c3", "Alpha", NumberTriple{1, 2, 3}, "9", "", 300)

	result := Query{GroupFilter: "3"}.Apply([]Combination{grouped, ungrouped, otherGroup}, groups)
	if got := combinationIDs(result); !reflect.DeepEqual(got, []string{"c1"}) {
		t.Fatalf("group filter should keep only the matching group, got %v", got)
	}
}

func TestQueryDanglingGroupReferenceIsUngrouped(t *testing.T) {
	// "ghost" was deleted; the reference stays on the combination.
	dangling := makeCombination("c1", "Orphan", NumberTriple{1, 2, 3}, "ghost", "", 100)

	underAll := Query{GroupFilter: GroupFilterAll}.Apply([]Combination{dangling}, nil)
	if len(underAll) != 1 {
		t.Fatalf("dangling reference must pass under %q", GroupFilterAll)
	}

	underGhost := Query{GroupFilter: "ghost"}.Apply([]Combination{dangling}, nil)
	if len(underGhost) != 0 {
		t.Fatalf("dangling reference must never match a specific group filter")
	}
}

func TestQueryGroupFilterComparesCanonicalStrings(t *testing.T) {
	groups := []Group{makeGroup("42", "Numeric")}
	combination := makeCombination("c1", "Alpha", NumberTriple{1, 2, 3}, "42", "", 100)

	result := Query{GroupFilter: " 42 "}.Apply([]Combination{combination}, groups)
	if len(result) != 1 {
		t.Fatalf("identifier comparison must tolerate surrounding whitespace")
	}
}

func TestQueryDateDescSortIsDefaultAndIdempotent(t *testing.T) {
	input := []Combination{
		makeCombination("c1", "First", NumberTriple{1, 1, 1}, "", "", 300),
		makeCombination("c2", "Second", NumberTriple{2, 2, 2}, "", "", 200),
		makeCombination("c3", "Tied", NumberTriple{3, 3, 3}, "", "", 200),
		makeCombination("c4", "Last", NumberTriple{4, 4, 4}, "", "", 100),
	}

	once := Query{}.Apply(input, nil)
	twice := Query{Sort: SortDateDesc}.Apply(once, nil)

	want := []string{"c1", "c2", "c3", "c4"}
	if got := combinationIDs(once); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected date-desc order: %v", got)
	}
	if !reflect.DeepEqual(combinationIDs(once), combinationIDs(twice)) {
		t.Fatalf("sorting an already sorted sequence must preserve it, got %v", combinationIDs(twice))
	}
}

func TestQueryDateAscSort(t *testing.T) {
	input := []Combination{
		makeCombination("c1", "Newest", NumberTriple{1, 1, 1}, "", "", 300),
		makeCombination("c2", "Oldest", NumberTriple{2, 2, 2}, "", "", 100),
	}

	result := Query{Sort: SortDateAsc}.Apply(input, nil)
	if got := combinationIDs(result); !reflect.DeepEqual(got, []string{"c2", "c1"}) {
		t.Fatalf("unexpected date-asc order: %v", got)
	}
}

func TestQueryNameAscUsesLocaleAwareComparison(t *testing.T) {
	input := []Combination{
		makeCombination("c1", "Zeta", NumberTriple{1, 1, 1}, "", "", 100),
		makeCombination("c2", "alpha", NumberTriple{2, 2, 2}, "", "", 200),
		makeCombination("c3", "Beta", NumberTriple{3, 3, 3}, "", "", 300),
	}

	result := Query{Sort: SortNameAsc}.Apply(input, nil)
	got := make([]string, 0, len(result))
	for _, combination := range result {
		got = append(got, combination.Name)
	}
	if !reflect.DeepEqual(got, []string{"alpha", "Beta", "Zeta"}) {
		t.Fatalf("locale-aware name sort must fold case, got %v", got)
	}
}

func TestQueryNameAscKeepsInputOrderOnTies(t *testing.T) {
	input := []Combination{
		makeCombination("c1", "Same", NumberTriple{1, 1, 1}, "", "", 100),
		makeCombination("c2", "Same", NumberTriple{2, 2, 2}, "", "", 200),
	}

	result := Query{Sort: SortNameAsc}.Apply(input, nil)
	if got := combinationIDs(result); !reflect.DeepEqual(got, []string{"c1", "c2"}) {
		t.Fatalf("equal names must keep input order, got %v", got)
	}
}

func TestQueryDoesNotMutateInput(t *testing.T) {
	input := []Combination{
		makeCombination("c1", "B", NumberTriple{1, 1, 1}, "", "", 100),
		makeCombination("c2", "A", NumberTriple{2, 2, 2}, "", "", 200),
	}

	_ = Query{Sort: SortNameAsc}.Apply(input, nil)
	if got := combinationIDs(input); !reflect.DeepEqual(got, []string{"c1", "c2"}) {
		t.Fatalf("input slice was reordered: %v", got)
	}
}

func TestParseSortMode(t *testing.T) {
	tests := []struct {
		raw  string
		want SortMode
	}{
		{raw: "date-desc", want: SortDateDesc},
		{raw: "date-asc", want: SortDateAsc},
		{raw: "name-asc", want: SortNameAsc},
		{raw: " NAME-ASC ", want: SortNameAsc},
		{raw: "", want: SortDateDesc},
		{raw: "relevance", want: SortDateDesc},
	}

	for _, tt := range tests {
		if got := ParseSortMode(tt.raw); got != tt.want {
			t.Fatalf("ParseSortMode(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
