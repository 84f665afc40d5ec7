// SPDX-License-Identifier: MIT

package controller

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckEligibility(t *testing.T) {
	cases := []struct {
		name    string
		url     string
		allowed bool
	}{
		{"https page", "https://example.com/watch?v=abc", true},
		{"http page", "http://example.com", true},
		{"file page", "file:///home/user/song.html", true},
		{"empty url", "", false},
		{"whitespace url", "   ", false},
		{"blank page", "about:blank", false},
		{"browser settings", "chrome://settings", false},
		{"edge internal", "edge://flags", false},
		{"devtools", "devtools://devtools/bundled/inspector.html", false},
		{"own extension page", "chrome-extension://abcdef/panel.html", false},
		{"firefox extension", "moz-extension://abcdef/panel.html", false},
		{"view source", "view-source:https://example.com", false},
		{"scheme case insensitive", "CHROME://settings", false},
		{"no scheme", "example.com/page", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckEligibility(tc.url)
			if tc.allowed {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrIneligible)
			}
		})
	}
}
