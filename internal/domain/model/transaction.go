package model

import "strings"

// BankTransaction is one entry of the bank feed.
type BankTransaction struct {
	ID     string
	Memo   string
	Amount int64
}

// NormalizeReference trims and upper-cases a user-entered reference code.
func NormalizeReference(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// MemoContains reports whether the memo contains the reference code,
// ignoring case.
func (t BankTransaction) MemoContains(reference string) bool {
	ref := NormalizeReference(reference)
	if ref == "" {
		return false
	}
	return strings.Contains(strings.ToUpper(t.Memo), ref)
}

// FindTransaction scans txs in feed order and returns the first whose memo
// contains reference. Several matches resolve to the earliest one.
func FindTransaction(txs []BankTransaction, reference string) (BankTransaction, bool) {
	for _, t := range txs {
		if t.MemoContains(reference) {
			return t, true
		}
	}
	return BankTransaction{}, false
}
