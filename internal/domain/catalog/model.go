package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ExamType tags a catalog exam with the clinical module that records it.
type ExamType string

const (
	TypeTriage          ExamType = "triage"
	TypeAudiometry      ExamType = "audiometry"
	TypeOphthalmology   ExamType = "ophthalmology"
	TypeSpirometry      ExamType = "spirometry"
	TypeLaboratory      ExamType = "laboratory"
	TypeMusculoskeletal ExamType = "musculoskeletal"
	TypePsychology      ExamType = "psychology"
	TypeGeneral         ExamType = "general"
)

// ExamTypes lists every known exam type.
var ExamTypes = []ExamType{
	TypeTriage, TypeAudiometry, TypeOphthalmology, TypeSpirometry,
	TypeLaboratory, TypeMusculoskeletal, TypePsychology, TypeGeneral,
}

// ParseExamType resolves s to a known type. Unknown or empty values fall
// back to TypeGeneral, which records free text.
func ParseExamType(s string) ExamType {
	t := ExamType(strings.ToLower(strings.TrimSpace(s)))
	if t.Known() {
		return t
	}
	return TypeGeneral
}

// Known reports whether t is one of ExamTypes.
func (t ExamType) Known() bool {
	for _, k := range ExamTypes {
		if t == k {
			return true
		}
	}
	return false
}

type Exam struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Category  string    `db:"category" json:"category"`
	ExamType  ExamType  `db:"exam_type" json:"exam_type"`
	BasePrice float64   `db:"base_price" json:"base_price"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ExamFilter narrows List. Empty fields are ignored.
type ExamFilter struct {
	Name     string
	Category string
	Active   *bool
}
