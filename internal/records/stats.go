package records

import (
	"sort"
	"time"
)

// mostActiveLimit caps the "most active users" ranking in the admin overview.
const mostActiveLimit = 5

// Summary aggregates a single owner's full combination collection.
type Summary struct {
	TotalCombinations int
	TotalGroups       int
	PerGroupCounts    map[string]int
	LastCreatedAt     *int64
	WeekdayHistogram  [7]int
}

// UserRef identifies a registered user for cross-owner aggregation. The
// identity store supplies these; a user may have no combinations at all.
type UserRef struct {
	UserID string
	Email  string
}

// UserActivity reports one user's combination activity.
type UserActivity struct {
	UserID           string
	Email            string
	CombinationCount int
	FirstActiveAt    *int64
	LastActiveAt     *int64
}

// AdminOverview aggregates the whole system for the administrative dashboard.
type AdminOverview struct {
	TotalUsers        int
	TotalCombinations int
	WeekdayHistogram  [7]int
	Users             []UserActivity
	MostActive        []UserActivity
}

// Summarize computes the single-owner dashboard statistics. Combinations with
// no group, or whose group is no longer present, are excluded from the
// per-group counts. The histogram buckets creation counts by UTC weekday,
// index 0 = Sunday.
func Summarize(combinations []Combination, groups []Group) Summary {
	summary := Summary{
		TotalCombinations: len(combinations),
		TotalGroups:       len(groups),
		PerGroupCounts:    make(map[string]int, len(groups)),
	}

	known := make(map[string]struct{}, len(groups))
	for _, group := range groups {
		known[canonicalID(group.GroupID)] = struct{}{}
	}

	for _, combination := range combinations {
		groupID := canonicalID(combination.GroupID)
		if _, ok := known[groupID]; ok && groupID != "" {
			summary.PerGroupCounts[groupID]++
		}
		summary.WeekdayHistogram[weekdayBucket(combination.CreatedAtSeconds)]++
		if summary.LastCreatedAt == nil || combination.CreatedAtSeconds > *summary.LastCreatedAt {
			createdAt := combination.CreatedAtSeconds
			summary.LastCreatedAt = &createdAt
		}
	}

	return summary
}

// Overview computes the cross-owner administrative statistics. Users known to
// the identity store but absent from the combination collection appear with a
// zero count and nil activity timestamps. The most-active ranking orders by
// combination count descending, keeps input order on ties, drops users with
// no combinations and is capped at five entries.
func Overview(combinations []Combination, users []UserRef) AdminOverview {
	overview := AdminOverview{
		TotalUsers:        len(users),
		TotalCombinations: len(combinations),
		Users:             make([]UserActivity, 0, len(users)),
	}

	byOwner := make(map[string][]Combination, len(users))
	for _, combination := range combinations {
		overview.WeekdayHistogram[weekdayBucket(combination.CreatedAtSeconds)]++
		byOwner[combination.OwnerID] = append(byOwner[combination.OwnerID], combination)
	}

	for _, user := range users {
		overview.Users = append(overview.Users, activityFor(user, byOwner[user.UserID]))
	}

	ranked := make([]UserActivity, 0, len(overview.Users))
	for _, activity := range overview.Users {
		if activity.CombinationCount > 0 {
			ranked = append(ranked, activity)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CombinationCount > ranked[j].CombinationCount
	})
	if len(ranked) > mostActiveLimit {
		ranked = ranked[:mostActiveLimit]
	}
	overview.MostActive = ranked

	return overview
}

func activityFor(user UserRef, owned []Combination) UserActivity {
	activity := UserActivity{
		UserID:           user.UserID,
		Email:            user.Email,
		CombinationCount: len(owned),
	}
	for _, combination := range owned {
		createdAt := combination.CreatedAtSeconds
		if activity.FirstActiveAt == nil || createdAt < *activity.FirstActiveAt {
			first := createdAt
			activity.FirstActiveAt = &first
		}
		if activity.LastActiveAt == nil || createdAt > *activity.LastActiveAt {
			last := createdAt
			activity.LastActiveAt = &last
		}
	}
	return activity
}

func weekdayBucket(unixSeconds int64) int {
	return int(time.Unix(unixSeconds, 0).UTC().Weekday())
}
