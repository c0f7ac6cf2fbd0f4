package models

import (
	"github.com/shopspring/decimal"
)

// TypeTag is the payment type code HSBC prints between the date and the
// details column.
type TypeTag string

const (
	TypeATM TypeTag = "ATM"
	TypeBP  TypeTag = "BP"
	TypeCR  TypeTag = "CR"
	TypeDD  TypeTag = "DD"
	TypeDR  TypeTag = "DR"
	TypeSO  TypeTag = "SO"
	TypeVIS TypeTag = "VIS"
	// TypeContactless is printed as ")))" on the statement.
	TypeContactless TypeTag = ")))"
)

// DefaultTypeTags returns the type codes recognised out of the box.
func DefaultTypeTags() []TypeTag {
	return []TypeTag{TypeATM, TypeBP, TypeCR, TypeDD, TypeDR, TypeSO, TypeVIS, TypeContactless}
}

// FieldSet is one segmented line of a transaction section. Amounts fill
// left to right: Amount2 is only set when Amount1 is, and so on.
type FieldSet struct {
	Date   string
	Type   TypeTag
	Detail string

	SpaceBeforeAmount1 string
	Amount1            decimal.NullDecimal
	SpaceBeforeAmount2 string
	Amount2            decimal.NullDecimal
	SpaceBeforeAmount3 string
	Amount3            decimal.NullDecimal

	// Line is the 1-based line number within the page.
	Line int
	// Matched is false when the line fit no part of the grammar and Detail
	// holds the raw text.
	Matched bool
}

// HasType reports whether the line carried a payment type code.
func (f FieldSet) HasType() bool {
	return f.Type != ""
}

// HasAmount reports whether the line carried at least one amount.
func (f FieldSet) HasAmount() bool {
	return f.Amount1.Valid || f.Amount2.Valid || f.Amount3.Valid
}

// Spacing keeps the literal whitespace runs that preceded each amount.
// Only the debug CSV variant emits it.
type Spacing struct {
	BeforeAmount1 string `json:"beforeAmount1,omitempty"`
	BeforeAmount2 string `json:"beforeAmount2,omitempty"`
	BeforeAmount3 string `json:"beforeAmount3,omitempty"`
}

// Record is one reconstructed ledger row. At most one of PaidOut and
// PaidIn is valid.
type Record struct {
	Date        string              `json:"date"`
	Type        TypeTag             `json:"type,omitempty"`
	Detail      string              `json:"detail"`
	PaidOut     decimal.NullDecimal `json:"paidOut"`
	PaidIn      decimal.NullDecimal `json:"paidIn"`
	Balance     decimal.NullDecimal `json:"balance"`
	Spacing     Spacing             `json:"spacing"`
	Page        int                 `json:"page"`
	Line        int                 `json:"line"`
	Annotations []string            `json:"annotations,omitempty"`
}

// SignedAmount folds the two amount columns into one: paid in is positive,
// paid out negative, zero when neither is set.
func (r Record) SignedAmount() decimal.Decimal {
	switch {
	case r.PaidIn.Valid:
		return r.PaidIn.Decimal
	case r.PaidOut.Valid:
		return r.PaidOut.Decimal.Neg()
	default:
		return decimal.Zero
	}
}

// DiagnosticKind classifies a non-fatal finding of the engine.
type DiagnosticKind string

const (
	// KindStructuralMismatch: the line fit no part of the grammar.
	KindStructuralMismatch DiagnosticKind = "structural_mismatch"
	// KindIncompleteTransaction: a typed line never met its amount line.
	KindIncompleteTransaction DiagnosticKind = "incomplete_transaction"
	// KindAmbiguousColumn: column placement is a low-confidence guess.
	KindAmbiguousColumn DiagnosticKind = "ambiguous_column"
	// KindMissingOpeningDate: the section opened without a date; the page was discarded.
	KindMissingOpeningDate DiagnosticKind = "missing_opening_date"
)

// Diagnostic is a finding reported alongside the record stream.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Page    int            `json:"page"`
	Line    int            `json:"line,omitempty"`
	Message string         `json:"message"`
}

// PageFailure describes a page whose records were discarded.
type PageFailure struct {
	Page   int    `json:"page"`
	Reason string `json:"reason"`
}

// StatementInfo holds everything recovered from one statement document.
type StatementInfo struct {
	AccountHolder   string
	AccountNumber   string
	SortCode        string
	StatementPeriod string
	Records         []Record
	Diagnostics     []Diagnostic
	FailedPages     []PageFailure
	// SectionLines holds the raw transaction-section lines per page.
	SectionLines [][]string
}

// CountDiagnostics returns how many diagnostics of the given kind were raised.
func (s *StatementInfo) CountDiagnostics(kind DiagnosticKind) int {
	n := 0
	for _, d := range s.Diagnostics {
		if d.Kind == kind {
			n++
		}
	}
	return n
}
