package ledger

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// BalanceTolerance absorbs floating point rounding when comparing total
// debits against total credits.
const BalanceTolerance = 0.01

var pieceNumberPattern = regexp.MustCompile(`^JE-\d{4}-\d{5}$`)

// Transitions outside this table are rejected; the zero value means no move
// is allowed from that status.
var validTransitions = map[Status]Status{
	StatusDraft:  StatusPosted,
	StatusPosted: StatusVerified,
}

// Recompute returns a copy of e with TotalDebit, TotalCredit and IsBalanced
// rebuilt from the posting list. It must run before every persistence of an
// entry whose postings changed.
func Recompute(e Entry) Entry {
	var debit, credit float64
	for _, p := range e.Postings {
		debit += p.Debit
		credit += p.Credit
	}
	e.TotalDebit = debit
	e.TotalCredit = credit
	e.IsBalanced = math.Abs(debit-credit) < BalanceTolerance
	return e
}

// ValidatePosting rejects a posting that sets both sides, sets neither, or
// carries a malformed account number.
func ValidatePosting(p Posting) error {
	hasDebit := p.Debit > 0
	hasCredit := p.Credit > 0
	if hasDebit && hasCredit {
		return fmt.Errorf("%w: account %s has both debit (%.2f) and credit (%.2f)",
			ErrInvariantViolation, p.AccountNumber, p.Debit, p.Credit)
	}
	if !hasDebit && !hasCredit {
		return fmt.Errorf("%w: account %s has neither debit nor credit", ErrInvariantViolation, p.AccountNumber)
	}
	if p.Debit < 0 || p.Credit < 0 {
		return fmt.Errorf("%w: account %s has a negative amount", ErrInvariantViolation, p.AccountNumber)
	}
	if _, ok := AccountTypeFor(p.AccountNumber); !ok {
		return fmt.Errorf("%w: account number %q is not a 1-5 digit chart-of-accounts number",
			ErrInvariantViolation, p.AccountNumber)
	}
	return nil
}

// ValidatePostings checks every posting and reports the offending index.
func ValidatePostings(postings []Posting) error {
	for i, p := range postings {
		if err := ValidatePosting(p); err != nil {
			return fmt.Errorf("posting %d: %w", i, err)
		}
	}
	return nil
}

// Transition validates and applies a lifecycle move. Entering POSTED or
// VERIFIED additionally requires the entry to be balanced.
func Transition(e Entry, target Status) (Entry, error) {
	if next, ok := validTransitions[e.Status]; !ok || next != target {
		return e, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, target)
	}
	if (target == StatusPosted || target == StatusVerified) && !e.IsBalanced {
		return e, fmt.Errorf("%w: debit %.2f vs credit %.2f", ErrUnbalancedEntry, e.TotalDebit, e.TotalCredit)
	}
	e.Status = target
	return e, nil
}

// AssertMutable rejects edits on a VERIFIED entry.
func AssertMutable(e Entry) error {
	if e.Status == StatusVerified {
		return fmt.Errorf("%w: %s is verified", ErrImmutableEntry, e.PieceNumber)
	}
	return nil
}

// AssertDeletable rejects deletion of anything past DRAFT.
func AssertDeletable(e Entry) error {
	if e.Status != StatusDraft {
		return fmt.Errorf("%w: only draft entries may be deleted, %s is %s",
			ErrImmutableEntry, e.PieceNumber, e.Status)
	}
	return nil
}

// NextPieceNumber formats the next year-scoped identifier. highestSeq is the
// highest sequence already used for the year, 0 when the year has no entries.
func NextPieceNumber(year int, highestSeq int) string {
	return fmt.Sprintf("JE-%d-%05d", year, highestSeq+1)
}

// PieceSequence extracts the numeric sequence from a piece number.
func PieceSequence(pieceNumber string) (int, error) {
	if !pieceNumberPattern.MatchString(pieceNumber) {
		return 0, fmt.Errorf("malformed piece number %q", pieceNumber)
	}
	parts := strings.Split(pieceNumber, "-")
	return strconv.Atoi(parts[2])
}
