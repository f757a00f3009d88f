package model

import (
	"regexp"
	"strings"
	"time"
)

type VPNItemStatus string

const (
	VPNItemAvailable VPNItemStatus = "available"
	VPNItemSold      VPNItemStatus = "sold"
)

// VPNItem is one pre-provisioned VPN profile in the stock list.
type VPNItem struct {
	ID            string        `json:"id"`
	QRImage       string        `json:"qr_image"`
	Conf          string        `json:"conf"`
	Status        VPNItemStatus `json:"status"`
	OwnerContent  string        `json:"owner_content,omitempty"`
	TransactionID string        `json:"transaction_id,omitempty"` // bank transaction that paid for a sold item
	SoldAt        *time.Time    `json:"sold_at,omitempty"`
	ExpireAt      *time.Time    `json:"expire_at,omitempty"`
}

var nonAlnum = regexp.MustCompile(`[^A-Z0-9]`)

// CleanContent upper-cases s and strips everything outside [A-Z0-9].
func CleanContent(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToUpper(s), "")
}

// SoldFor returns the item already sold for bank transaction txID, or nil.
func SoldFor(items []*VPNItem, txID string) *VPNItem {
	if txID == "" {
		return nil
	}
	for _, it := range items {
		if it.Status == VPNItemSold && it.TransactionID == txID {
			return it
		}
	}
	return nil
}

// FirstAvailable returns the index of the first unsold item, or -1.
func FirstAvailable(items []*VPNItem) int {
	for i, it := range items {
		if it.Status == VPNItemAvailable {
			return i
		}
	}
	return -1
}
