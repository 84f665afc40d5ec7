// SPDX-License-Identifier: MIT

package controller

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrIneligible marks targets that can never be instrumented. The condition
// is non-retryable until the user navigates away.
var ErrIneligible = errors.New("target page is not eligible for capture")

// ineligibleSchemes are browser-internal and extension schemes. Pages under
// them are categorically excluded from injection.
var ineligibleSchemes = map[string]struct{}{
	"about":            {},
	"chrome":           {},
	"chrome-extension": {},
	"chrome-untrusted": {},
	"devtools":         {},
	"edge":             {},
	"moz-extension":    {},
	"view-source":      {},
}

// CheckEligibility verifies that a page URL may be instrumented. It is
// called before any injection attempt; a failure is reported as an inactive
// status with the returned message, never a thrown fault.
func CheckEligibility(rawURL string) error {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return fmt.Errorf("%w: page has no address", ErrIneligible)
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" {
		return fmt.Errorf("%w: page address %q is not a valid URL", ErrIneligible, trimmed)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "about" {
		return fmt.Errorf("%w: blank pages cannot be captured", ErrIneligible)
	}
	if _, blocked := ineligibleSchemes[scheme]; blocked {
		return fmt.Errorf("%w: browser-internal pages (%s:) cannot be captured", ErrIneligible, scheme)
	}
	return nil
}
