package extract

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/paraflow/paraflow/pkg/para"
)

// dateParser turns natural-language due phrases ("by Friday", "next month")
// into concrete dates when the model ignored the ISO instruction.
var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// cleanResponse strips markdown code fences and leading chatter. Models asked
// for bare JSON still fence it or preface it with prose often enough that the
// caller cannot parse replies directly.
func cleanResponse(content string) string {
	cleaned := strings.ReplaceAll(content, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}

// normalizePara repairs a raw classifier reply into a Batch. Any reply that
// cannot be recovered collapses to the empty batch.
func normalizePara(raw string) para.Batch {
	cleaned := cleanResponse(raw)
	if !strings.HasPrefix(cleaned, "{") {
		return para.Batch{}
	}

	var batch para.Batch
	if err := json.Unmarshal([]byte(cleaned), &batch); err != nil {
		return para.Batch{}
	}

	for _, cat := range para.Categories {
		batch.SetListFor(cat, repairElements(batch.ListFor(cat), cat))
	}
	return batch
}

// repairElements fills missing IDs, pins each element's category to the list
// it arrived in, and normalizes weak fields. Elements without a title carry
// nothing worth surfacing and are dropped.
func repairElements(els []para.Element, cat para.Category) []para.Element {
	out := els[:0]
	for _, el := range els {
		el.Title = strings.TrimSpace(el.Title)
		if el.Title == "" {
			continue
		}
		if strings.TrimSpace(el.ID) == "" {
			el.ID = "el-" + uuid.NewString()
		}
		el.Type = cat
		el.Priority = normalizePriority(el.Priority)
		el.DueDate = normalizeDueDate(el.DueDate)
		el.Confirmed = false
		out = append(out, el)
	}
	return out
}

func normalizePriority(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case para.PriorityLow:
		return para.PriorityLow
	case para.PriorityMedium:
		return para.PriorityMedium
	case para.PriorityHigh:
		return para.PriorityHigh
	default:
		return ""
	}
}

// normalizeDueDate passes ISO dates through unchanged and tries to resolve
// natural-language phrases into one. Unresolvable values are dropped rather
// than stored as junk.
func normalizeDueDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if _, err := time.Parse("2006-01-02", raw); err == nil {
		return raw
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.Format("2006-01-02")
	}
	if r, err := dateParser.Parse(raw, time.Now()); err == nil && r != nil {
		return r.Time.Format("2006-01-02")
	}
	return ""
}

// normalizeTasks repairs a raw task-extraction reply. Tasks have no stable
// identity, so repeated titles within one pass collapse to the first.
func normalizeTasks(raw string) []para.Task {
	cleaned := cleanResponse(raw)
	if !strings.HasPrefix(cleaned, "{") {
		return nil
	}

	var payload struct {
		Tasks []para.Task `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil
	}

	seen := make(map[string]bool, len(payload.Tasks))
	out := payload.Tasks[:0]
	for _, task := range payload.Tasks {
		task.Title = strings.TrimSpace(task.Title)
		if task.Title == "" {
			continue
		}
		key := strings.ToLower(task.Title)
		if seen[key] {
			continue
		}
		seen[key] = true
		task.Priority = normalizePriority(task.Priority)
		task.DueDate = normalizeDueDate(task.DueDate)
		out = append(out, task)
	}
	return out
}
