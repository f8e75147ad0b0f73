package negotiation

import (
	"fmt"

	"github.com/pion/sdp/v3"
)

// ValidateSdp checks that raw parses as a well-formed session description
// (spec §4.3: the Negotiation SM accepts an SDP offer/answer but never
// interprets its media content). It rejects malformed input before it
// reaches Transition; codec and media-plane semantics are out of scope.
func ValidateSdp(raw string) error {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(raw)); err != nil {
		return fmt.Errorf("malformed sdp: %w", err)
	}
	return nil
}
