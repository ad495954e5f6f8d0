// Package intervals pairs Start and Stop entries into timed intervals.
//
// Each pairing key owns a stack of open Start entries. A Stop pops the most
// recently opened Start of its key, so nested use of one key closes
// innermost first:
//
//	index:   0        1        2      3
//	tag:     A_BEGIN  A_BEGIN  A_END  A_END
//	result:  (1,2) then (0,3)
//
// Overlapping but non-nested use of the same key is paired the same way,
// which is not what the firmware meant; keys must be unique per concurrent
// activity. A Stop without an open Start is recorded as unmatched and never
// aborts matching.
package intervals
