package bank

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"vip-key-shop/internal/domain"
	"vip-key-shop/internal/domain/model"
)

// Field names differ between bank providers; the first non-empty one wins.
var (
	memoFields   = []string{"description", "noidung", "content"}
	amountFields = []string{"amount", "sotien", "money"}
)

// ParseFeed decodes a `{"transactions": [...]}` payload or a bare array of
// transactions. A missing or empty list is not an error; any other top-level
// value, or a list entry that is not an object, is.
func ParseFeed(body []byte) ([]model.BankTransaction, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: feed payload is not valid JSON", domain.ErrUpstream)
	}
	root := gjson.ParseBytes(body)

	var list gjson.Result
	switch {
	case root.IsArray():
		list = root
	case root.IsObject():
		list = root.Get("transactions")
		if !list.Exists() || list.Type == gjson.Null {
			return []model.BankTransaction{}, nil
		}
		if !list.IsArray() {
			return nil, fmt.Errorf("%w: transactions is not an array", domain.ErrUpstream)
		}
	default:
		return nil, fmt.Errorf("%w: feed payload is not an object or array", domain.ErrUpstream)
	}

	entries := list.Array()
	out := make([]model.BankTransaction, 0, len(entries))
	for i, t := range entries {
		if !t.IsObject() {
			return nil, fmt.Errorf("%w: transaction %d is not an object", domain.ErrUpstream, i)
		}
		out = append(out, model.BankTransaction{
			ID:     t.Get("id").String(),
			Memo:   firstString(t, memoFields),
			Amount: firstAmount(t, amountFields),
		})
	}
	return out, nil
}

func firstString(t gjson.Result, fields []string) string {
	for _, f := range fields {
		if v := t.Get(f).String(); v != "" {
			return v
		}
	}
	return ""
}

// firstAmount accepts numbers and numeric strings ("39000", "39,000").
// Fractions are truncated; unparsable values count as 0.
func firstAmount(t gjson.Result, fields []string) int64 {
	for _, f := range fields {
		v := t.Get(f)
		var n float64
		switch v.Type {
		case gjson.Number:
			n = v.Num
		case gjson.String:
			s := strings.ReplaceAll(strings.TrimSpace(v.Str), ",", "")
			parsed, err := strconv.ParseFloat(s, 64)
			if err != nil {
				continue
			}
			n = parsed
		default:
			continue
		}
		if n != 0 {
			return int64(math.Trunc(n))
		}
	}
	return 0
}
