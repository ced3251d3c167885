package milestone

import "time"

type Field string

const (
	FieldDeadline             Field = "deadline"
	FieldCompletionPercentage Field = "completionPercentage"
	FieldStatus               Field = "status"
)

const dateLayout = "2006-01-02"

type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// Changes describes the tracked fields that differ between the stored
// milestone and the imported one.
type Changes struct {
	Fields   []Field
	Previous Milestone
	Next     Milestone
}

// Diff compares the tracked fields of prev and next. Identity fields are
// never compared: they are the lookup key.
func Diff(prev, next Milestone) Changes {
	c := Changes{Previous: prev, Next: next}
	if !sameDate(prev.Deadline, next.Deadline) {
		c.Fields = append(c.Fields, FieldDeadline)
	}
	if prev.CompletionPercentage != next.CompletionPercentage {
		c.Fields = append(c.Fields, FieldCompletionPercentage)
	}
	if prev.Status != next.Status {
		c.Fields = append(c.Fields, FieldStatus)
	}
	return c
}

func (c Changes) Empty() bool {
	return len(c.Fields) == 0
}

func (c Changes) Has(f Field) bool {
	for _, v := range c.Fields {
		if v == f {
			return true
		}
	}
	return false
}

// Details returns the prior and new value of every changed field only.
func (c Changes) Details() map[Field]FieldChange {
	out := make(map[Field]FieldChange, len(c.Fields))
	for _, f := range c.Fields {
		switch f {
		case FieldDeadline:
			out[f] = FieldChange{From: FormatDate(c.Previous.Deadline), To: FormatDate(c.Next.Deadline)}
		case FieldCompletionPercentage:
			out[f] = FieldChange{From: c.Previous.CompletionPercentage, To: c.Next.CompletionPercentage}
		case FieldStatus:
			out[f] = FieldChange{From: string(c.Previous.Status), To: string(c.Next.Status)}
		}
	}
	return out
}

// FormatDate renders a deadline as YYYY-MM-DD, or nil for an open deadline.
func FormatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(dateLayout)
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
