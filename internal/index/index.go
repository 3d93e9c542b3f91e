// Package index implements the exact-name lookup used to match an
// incoming query against a loaded record set.
package index

import "github.com/coredomain/dnsrelayd/internal/zone"

// FindNextMatch scans records for the next entry whose Name equals
// name, starting just after the index given by previous (pass -1 to
// begin at the start of the set). It reports the matching index and
// whether a match was found. Matching is a plain linear scan in
// record order — the record set is small enough in practice that an
// index structure would add complexity without a measurable benefit.
func FindNextMatch(records zone.Set, name string, previous int) (int, bool) {
	start := previous + 1
	if start < 0 {
		start = 0
	}
	for i := start; i < len(records); i++ {
		if records[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

// AllMatches collects every record in records whose Name equals name,
// in their original order.
func AllMatches(records zone.Set, name string) []zone.Record {
	var matches []zone.Record
	idx := -1
	for {
		next, ok := FindNextMatch(records, name, idx)
		if !ok {
			return matches
		}
		matches = append(matches, records[next])
		idx = next
	}
}
