// Package deck selects and orders the bounded, duplicate-free run of questions played in a session.
package deck

import "math/rand"

// MinEligible is the smallest eligible pool worth building a deck from. Below it (or below the
// bank size, for tiny banks) the used-question history is discarded and the whole bank is eligible.
const MinEligible = 5

// Result is the outcome of Build.
type Result struct {
	IDs []string
	// ResetUsed reports that the eligible pool was exhausted and the caller must clear its
	// used-question history.
	ResetUsed bool
}

// Build picks up to sampleSize question ids from all, skipping those in used.
// sampleSize is clamped to at least 1. rnd is only consulted when randomized is true.
func Build(all, used []string, sampleSize int, randomized bool, rnd *rand.Rand) Result {
	all = Dedupe(all)
	usedSet := make(map[string]struct{}, len(used))
	for _, id := range used {
		usedSet[id] = struct{}{}
	}

	eligible := make([]string, 0, len(all))
	for _, id := range all {
		if _, ok := usedSet[id]; !ok {
			eligible = append(eligible, id)
		}
	}

	res := Result{}
	if len(eligible) < min(MinEligible, len(all)) {
		eligible = append([]string(nil), all...)
		res.ResetUsed = true
	}
	if len(eligible) == 0 {
		res.IDs = []string{}
		return res
	}

	n := max(1, min(sampleSize, len(eligible)))
	if randomized {
		eligible = Shuffle(eligible, rnd)
	}
	res.IDs = truncate(Dedupe(eligible), n)
	return res
}

// Shuffle returns a uniformly shuffled copy of ids (Fisher-Yates).
func Shuffle(ids []string, rnd *rand.Rand) []string {
	out := append([]string(nil), ids...)
	for i := len(out) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Normalize re-deduplicates the deck, truncates it to sampleSize and keeps the cursor on the
// question it pointed to when that question survives. Otherwise the cursor is clamped so the
// next advance serves whatever now occupies the following slot.
func Normalize(ids []string, index, sampleSize int) ([]string, int) {
	current := ""
	if index >= 0 && index < len(ids) {
		current = ids[index]
	}

	out := truncate(Dedupe(ids), max(1, sampleSize))
	if index < 0 {
		return out, -1
	}
	if current != "" {
		for i, id := range out {
			if id == current {
				return out, i
			}
		}
	}
	return out, min(index, len(out)) - 1
}

// Insert places id right after the cursor, removing any later occurrence of it.
func Insert(ids []string, index int, id string) []string {
	pos := min(max(index+1, 0), len(ids))
	out := make([]string, 0, len(ids)+1)
	for i, existing := range ids {
		if i == pos {
			out = append(out, id)
		}
		if existing == id && i >= pos {
			continue
		}
		out = append(out, existing)
	}
	if pos >= len(ids) {
		out = append(out, id)
	}
	return out
}

// Place makes id the question right after the cursor and returns the deck with the cursor
// moved onto it. Any other copy of id is removed first. When the cursor already sits on the
// last slot the deck can hold, id takes over that slot.
func Place(ids []string, index int, id string, sampleSize int) ([]string, int) {
	sampleSize = max(1, sampleSize)
	rest := make([]string, 0, len(ids))
	cursor := -1
	for i, existing := range Dedupe(ids) {
		if existing == id {
			continue
		}
		rest = append(rest, existing)
		if i <= index {
			cursor = len(rest) - 1
		}
	}
	if cursor+1 >= sampleSize {
		out := truncate(rest, sampleSize)
		cursor = min(cursor, len(out)-1)
		out[cursor] = id
		return out, cursor
	}
	return Normalize(Insert(rest, cursor, id), cursor+1, sampleSize)
}

// Dedupe drops repeated ids, keeping first occurrences in order.
func Dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func truncate(ids []string, n int) []string {
	if len(ids) > n {
		return ids[:n]
	}
	return ids
}
