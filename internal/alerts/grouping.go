package alerts

import "sort"

// Group is one logical incident: the newest member as representative plus
// group metadata. Groups are derived on every poll and never persisted.
type Group struct {
	Alert
	GroupKey        string   `json:"group_key"`
	GroupSize       int      `json:"group_size"`
	GroupedAlertIDs []string `json:"grouped_alert_ids"`
}

// GroupAlerts collapses duplicate and repeated alerts into one group per
// logical incident. It is a pure function of its input: no I/O, no state.
//
// Grouping key, in priority order:
//  1. hash(source, sourceId, fingerprint) when the upstream provided one
//  2. hash(source, sourceId, inferred-service, environment) otherwise
func GroupAlerts(list []Alert) []Group {
	buckets := make(map[string][]Alert)
	order := make([]string, 0, len(list))

	for _, a := range list {
		key := groupKey(a)
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], a)
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		members := buckets[key]
		sortByTimestampDesc(members)

		ids := make([]string, len(members))
		for i, m := range members {
			ids[i] = m.ID
		}

		groups = append(groups, Group{
			Alert:           members[0],
			GroupKey:        key,
			GroupSize:       len(members),
			GroupedAlertIDs: ids,
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if !groups[i].Timestamp.Equal(groups[j].Timestamp) {
			return groups[i].Timestamp.After(groups[j].Timestamp)
		}
		return groups[i].GroupKey < groups[j].GroupKey
	})

	return groups
}

// groupKey derives the grouping key for one alert
func groupKey(a Alert) string {
	if a.Fingerprint != "" {
		return hashFields("fp", string(a.Source), a.SourceID, a.Fingerprint)
	}
	return hashFields("inferred", string(a.Source), a.SourceID, inferredService(a), a.Environment)
}

// inferredService picks the first non-empty of service, instance and name
func inferredService(a Alert) string {
	for _, v := range []string{a.Service, a.Instance, a.Name} {
		if v != "" {
			return v
		}
	}
	return "unknown"
}

// SortByTimestampDesc orders alerts newest first, with the ID as a
// deterministic tie-breaker.
func SortByTimestampDesc(list []Alert) {
	sortByTimestampDesc(list)
}

func sortByTimestampDesc(list []Alert) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].Timestamp.Equal(list[j].Timestamp) {
			return list[i].Timestamp.After(list[j].Timestamp)
		}
		return list[i].ID < list[j].ID
	})
}
