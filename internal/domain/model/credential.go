package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Who created a credential.
const (
	CreatedByAutoPayment = "auto_payment"
	CreatedByTelegramBot = "telegram_bot"
	CreatedByAdminAPI    = "admin_api"
)

// CredentialRecord is a redeemable license key. JSON field names follow the
// keys.json layout so existing data files load unchanged.
type CredentialRecord struct {
	ID              string     `json:"id"`
	Key             string     `json:"key"`
	CreatedAt       time.Time  `json:"createdAt"`
	ExpiresAt       *time.Time `json:"expiresAt"` // nil = never expires
	MaxUses         *int       `json:"maxUses"`   // nil = unlimited
	CurrentUses     int        `json:"currentUses"`
	Active          bool       `json:"active"`
	LastUsedAt      *time.Time `json:"lastUsedAt,omitempty"`
	CreatedBy       string     `json:"createdBy,omitempty"`
	TransactionCode string     `json:"transaction_code,omitempty"`
	TransactionID   string     `json:"transaction_id,omitempty"`
	Tier            string     `json:"package,omitempty"`
	Notes           string     `json:"notes,omitempty"`
}

// UnmarshalJSON accepts transaction_id as a string or a number. Older
// keys.json files stored the bank's raw id, which some feeds send as a number.
func (c *CredentialRecord) UnmarshalJSON(data []byte) error {
	type plain CredentialRecord
	aux := struct {
		*plain
		TransactionID json.RawMessage `json:"transaction_id,omitempty"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	id, err := flexString(aux.TransactionID)
	if err != nil {
		return fmt.Errorf("transaction_id: %w", err)
	}
	c.TransactionID = id
	return nil
}

// flexString decodes a JSON string, number or null into its text form.
func flexString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// NormalizeKey upper-cases and trims a user-supplied key.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// IsExpired reports whether the record has an expiry at or before now.
func (c *CredentialRecord) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// IsExhausted reports whether a usage limit exists and has been reached.
func (c *CredentialRecord) IsExhausted() bool {
	return c.MaxUses != nil && c.CurrentUses >= *c.MaxUses
}

// IsUnlimited reports whether the record has no usage limit.
func (c *CredentialRecord) IsUnlimited() bool { return c.MaxUses == nil }

// RemainingUses returns nil for unlimited credentials.
func (c *CredentialRecord) RemainingUses() *int {
	if c.MaxUses == nil {
		return nil
	}
	left := *c.MaxUses - c.CurrentUses
	if left < 0 {
		left = 0
	}
	return &left
}

// MatchesTransaction is the issuance dedup rule: same reference code or same
// bank transaction id.
func (c *CredentialRecord) MatchesTransaction(referenceCode, transactionID string) bool {
	if referenceCode != "" && c.TransactionCode == referenceCode {
		return true
	}
	return transactionID != "" && c.TransactionID == transactionID
}

// CredentialStats summarizes a credential list for the admin surfaces.
type CredentialStats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Inactive  int `json:"inactive"`
	Expired   int `json:"expired"`
	TotalUses int `json:"totalUses"`
}

// ComputeCredentialStats counts records at the given instant.
func ComputeCredentialStats(records []*CredentialRecord, now time.Time) CredentialStats {
	var s CredentialStats
	for _, r := range records {
		s.Total++
		if r.Active {
			s.Active++
		} else {
			s.Inactive++
		}
		if r.ExpiresAt != nil && r.ExpiresAt.Before(now) {
			s.Expired++
		}
		s.TotalUses += r.CurrentUses
	}
	return s
}

// LimitNotes renders the "<days> days, <uses> uses" note used on issued keys.
func LimitNotes(days, uses int) string {
	d := "∞ days"
	if days > 0 {
		d = strconv.Itoa(days) + " days"
	}
	u := "∞ uses"
	if uses > 0 {
		u = strconv.Itoa(uses) + " uses"
	}
	return d + ", " + u
}
