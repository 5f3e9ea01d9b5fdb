// Package email normalizes alert recipient addresses.
package email

import (
	"fmt"
	"net/mail"

	pgstrings "payguard/pkg/platform/strings"
)

// DefaultRecipient receives fraud alerts when none are configured.
const DefaultRecipient = "fraud-team@payguard.local"

// NormalizeRecipients parses each entry as an RFC 5322 address, keeps only
// the bare address, lowercases it and drops duplicates. An empty list yields
// DefaultRecipient.
func NormalizeRecipients(list []string) ([]string, error) {
	addrs := make([]string, 0, len(list))
	for _, raw := range list {
		if pgstrings.Fold(raw) == "" {
			continue
		}
		addr, err := mail.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", raw, err)
		}
		addrs = append(addrs, addr.Address)
	}
	addrs = pgstrings.FoldSet(addrs)
	if len(addrs) == 0 {
		return []string{DefaultRecipient}, nil
	}
	return addrs, nil
}
