// SPDX-License-Identifier: MIT

package capture

import (
	"time"
)

// Artifact is a finished encoded audio object. The agent relinquishes
// ownership once it hands the artifact across the message boundary; from
// then on its lifetime belongs to the controller.
type Artifact struct {
	ID        string          `json:"id"`
	MIME      string          `json:"mime"`
	Data      []byte          `json:"-"`
	CreatedAt time.Time       `json:"createdAt"`
	Duration  time.Duration   `json:"duration"`
	Quality   QualitySettings `json:"quality"`
}

// Size returns the encoded payload length in bytes.
func (a *Artifact) Size() int {
	return len(a.Data)
}

// Family returns the recognized container family for the artifact's MIME
// type (see FamilyForMIME).
func (a *Artifact) Family() string {
	return FamilyForMIME(a.MIME)
}
