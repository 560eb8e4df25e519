package interpret

import (
	"time"
)

// IntentKind tags the variant carried by a ParsedIntent.
type IntentKind string

const (
	// IntentTransaction carries a TransactionCandidate to be validated
	// and appended to the ledger.
	IntentTransaction IntentKind = "transaction"
	// IntentDiagnosis requests the AI financial diagnosis.
	IntentDiagnosis IntentKind = "diagnosis"
	// IntentSummary requests the deterministic metrics summary.
	IntentSummary IntentKind = "summary"
	// IntentLast requests the most recent N transactions.
	IntentLast IntentKind = "last"
	// IntentCalc requests evaluation of an arithmetic expression.
	IntentCalc IntentKind = "calc"
	// IntentUndo requests a reversing transaction for the last entry.
	IntentUndo IntentKind = "undo"
	// IntentStart and IntentHelp yield static responses.
	IntentStart IntentKind = "start"
	IntentHelp  IntentKind = "help"
	// IntentUnrecognized means the input could not be interpreted;
	// Reason explains why, phrased for echoing back to the user.
	IntentUnrecognized IntentKind = "unrecognized"
)

// TransactionCandidate is the parser's view of a would-be transaction,
// before validation assigns identity and defaults.
type TransactionCandidate struct {
	// Amount is signed: negative for expense, positive for income.
	Amount float64

	// Category is empty when no keyword matched; the validator defaults
	// it.
	Category string

	Description string

	// Timestamp is zero when the user gave no date; the validator fills
	// in the message receipt time.
	Timestamp time.Time

	SourceText string
}

// ParsedIntent is the tagged variant returned by Parse. Exactly the
// fields relevant to Kind are populated.
type ParsedIntent struct {
	Kind IntentKind

	Candidate *TransactionCandidate

	// Month and Year scope summary/diagnosis requests. Zero Month means
	// the current month.
	Month time.Month
	Year  int

	// N is the requested entry count for IntentLast.
	N int

	// Expression is the arithmetic input for IntentCalc.
	Expression string

	// Reason explains an IntentUnrecognized result.
	Reason string
}

func unrecognized(reason string) ParsedIntent {
	return ParsedIntent{Kind: IntentUnrecognized, Reason: reason}
}
