package usecase

import (
	"crypto/rand"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	keyGroups   = 4
	keyGroupLen = 4
)

// KeyGenerator returns a fresh credential key.
type KeyGenerator func() (string, error)

// GenerateCredentialKey creates a random key in the XXXX-XXXX-XXXX-XXXX format
// over [A-Z0-9].
func GenerateCredentialKey() (string, error) {
	return generateKey(rand.Reader)
}

func generateKey(r io.Reader) (string, error) {
	const n = keyGroups * keyGroupLen
	// 252 is the largest multiple of 36 below 256; rejecting larger bytes
	// keeps every character equally likely.
	const limit = 252

	out := make([]byte, 0, n+keyGroups-1)
	buf := make([]byte, n*2)
	for count := 0; count < n; {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			if count > 0 && count%keyGroupLen == 0 {
				out = append(out, '-')
			}
			out = append(out, keyAlphabet[int(b)%len(keyAlphabet)])
			count++
			if count == n {
				break
			}
		}
	}
	return string(out), nil
}

// newRecordID returns a sortable "key_<ULID>" identifier.
func newRecordID(now time.Time) string {
	return "key_" + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}
