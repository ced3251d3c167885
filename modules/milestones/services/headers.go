package services

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Field is a canonical column of the milestone export.
type Field string

const (
	FieldProject   Field = "project"
	FieldMilestone Field = "milestone"
	FieldDeadline  Field = "deadline"
	FieldProgress  Field = "progress"
	FieldStatus    Field = "status"
)

// Fields lists the canonical columns in export order.
var Fields = []Field{FieldProject, FieldMilestone, FieldDeadline, FieldProgress, FieldStatus}

// canonicalHeaders is keyed by the case-folded header text.
var canonicalHeaders = map[string]Field{
	"project":   FieldProject,
	"milestone": FieldMilestone,
	"deadline":  FieldDeadline,
	"progress":  FieldProgress,
	"status":    FieldStatus,
}

const byteOrderMark = "\ufeff"

// CanonicalRow maps canonical fields to raw cells. A field is absent when
// its column is missing from the header or the record is too short.
type CanonicalRow map[Field]string

func (r CanonicalRow) Get(f Field) (string, bool) {
	v, ok := r[f]
	return v, ok
}

type Column struct {
	Index int    `json:"index"`
	Raw   string `json:"raw"`
	Name  string `json:"name"`
	Field Field  `json:"field,omitempty"`
}

func (c Column) Recognized() bool {
	return c.Field != ""
}

type HeaderMapping struct {
	Columns      []Column `json:"columns"`
	Unrecognized []string `json:"unrecognized,omitempty"`
	// Duplicates lists later columns that repeat an already mapped field.
	Duplicates []string `json:"duplicates,omitempty"`
}

// NormalizeHeaders maps the raw header line to canonical fields. The first
// occurrence of a canonical field wins.
func NormalizeHeaders(raw []string) HeaderMapping {
	folder := cases.Fold()
	lower := cases.Lower(language.Und)

	mapping := HeaderMapping{Columns: make([]Column, 0, len(raw))}
	seen := make(map[Field]struct{}, len(Fields))
	for i, h := range raw {
		if i == 0 {
			h = strings.TrimPrefix(h, byteOrderMark)
		}
		clean := cleanHeader(h)
		col := Column{Index: i, Raw: raw[i], Name: lower.String(clean)}

		if f, ok := canonicalHeaders[folder.String(clean)]; ok {
			if _, dup := seen[f]; dup {
				mapping.Duplicates = append(mapping.Duplicates, col.Name)
			} else {
				seen[f] = struct{}{}
				col.Field = f
			}
		} else if clean != "" {
			mapping.Unrecognized = append(mapping.Unrecognized, col.Name)
		}
		mapping.Columns = append(mapping.Columns, col)
	}
	return mapping
}

func cleanHeader(h string) string {
	h = strings.NewReplacer("\r", "", "\n", "").Replace(h)
	return norm.NFKC.String(strings.TrimSpace(h))
}

// Recognized returns how many distinct canonical fields the header carries.
func (m HeaderMapping) Recognized() int {
	n := 0
	for _, c := range m.Columns {
		if c.Recognized() {
			n++
		}
	}
	return n
}

func (m HeaderMapping) Has(f Field) bool {
	for _, c := range m.Columns {
		if c.Field == f {
			return true
		}
	}
	return false
}

// Canonical projects a record onto the canonical fields.
func (m HeaderMapping) Canonical(record []string) CanonicalRow {
	row := make(CanonicalRow, len(Fields))
	for _, c := range m.Columns {
		if !c.Recognized() || c.Index >= len(record) {
			continue
		}
		row[c.Field] = record[c.Index]
	}
	return row
}
