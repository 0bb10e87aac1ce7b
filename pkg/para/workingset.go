package para

import (
	"fmt"
	"strings"
)

// WorkingSet holds one session's not-yet-committed suggestions plus the log
// of elements already confirmed and written remotely. Confirmed elements never
// re-enter the suggestion lists.
//
// A WorkingSet is not safe for concurrent use; the owning session serializes
// access.
type WorkingSet struct {
	suggestions Batch
	committed   []Element

	// Stale-response guard for overlapping extraction passes: Apply drops any
	// batch whose sequence number is older than the newest one issued.
	issuedSeq  uint64
	appliedSeq uint64
}

// NewWorkingSet returns an empty working set.
func NewWorkingSet() *WorkingSet {
	return &WorkingSet{}
}

// NextSeq reserves a sequence number for an extraction pass about to be
// issued. The matching Apply call must pass the same number back.
func (w *WorkingSet) NextSeq() uint64 {
	w.issuedSeq++
	return w.issuedSeq
}

// Apply merges a fresh extraction batch into the working set. The unconfirmed
// tail is replaced wholesale; every incoming element is stamped unconfirmed.
// Elements whose titles match an already committed element are dropped so a
// later pass over the same transcript does not re-suggest pushed records.
// Returns false when the batch lost the race to a newer extraction pass.
func (w *WorkingSet) Apply(seq uint64, fresh Batch) bool {
	if seq < w.appliedSeq || seq > w.issuedSeq {
		return false
	}
	w.appliedSeq = seq

	committed := make(map[string]struct{}, len(w.committed))
	for _, el := range w.committed {
		committed[strings.ToLower(strings.TrimSpace(el.Title))] = struct{}{}
	}

	next := Batch{}
	seen := map[string]struct{}{}
	for _, cat := range Categories {
		incoming := fresh.ListFor(cat)
		kept := make([]Element, 0, len(incoming))
		for _, el := range incoming {
			el.Type = cat
			el.Confirmed = false
			if strings.TrimSpace(el.Title) == "" {
				continue
			}
			if _, done := committed[strings.ToLower(strings.TrimSpace(el.Title))]; done {
				continue
			}
			if _, dup := seen[el.ID]; dup || el.ID == "" {
				continue
			}
			seen[el.ID] = struct{}{}
			kept = append(kept, el)
		}
		next.SetListFor(cat, kept)
	}
	w.suggestions = next
	return true
}

// Confirm marks the element as written remotely and moves it out of the
// suggestion lists. The transition is one way.
func (w *WorkingSet) Confirm(id string) (Element, error) {
	for _, cat := range Categories {
		list := w.suggestions.ListFor(cat)
		for i, el := range list {
			if el.ID != id {
				continue
			}
			el.Confirmed = true
			w.committed = append(w.committed, el)
			w.suggestions.SetListFor(cat, append(list[:i:i], list[i+1:]...))
			return el, nil
		}
	}
	return Element{}, fmt.Errorf("element %q not found in working set", id)
}

// Reject removes an unconfirmed element from whichever category list holds it.
func (w *WorkingSet) Reject(id string) error {
	for _, cat := range Categories {
		list := w.suggestions.ListFor(cat)
		for i, el := range list {
			if el.ID == id {
				w.suggestions.SetListFor(cat, append(list[:i:i], list[i+1:]...))
				return nil
			}
		}
	}
	return fmt.Errorf("element %q not found in working set", id)
}

// Find returns an unconfirmed element by id.
func (w *WorkingSet) Find(id string) (Element, bool) {
	for _, cat := range Categories {
		for _, el := range w.suggestions.ListFor(cat) {
			if el.ID == id {
				return el, true
			}
		}
	}
	return Element{}, false
}

// Suggestions returns the current unconfirmed batch.
func (w *WorkingSet) Suggestions() Batch {
	return w.suggestions
}

// Committed returns elements confirmed and written during this session.
func (w *WorkingSet) Committed() []Element {
	out := make([]Element, len(w.committed))
	copy(out, w.committed)
	return out
}
