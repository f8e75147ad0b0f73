package negotiation

import "testing"

const validOfferSdp = "v=0\r\n" +
	"o=- 46117317646424 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=application 9 UDP/DTLS/SCTP webrtc-datachannel\r\n" +
	"c=IN IP4 0.0.0.0\r\n"

func TestValidateSdpAcceptsWellFormed(t *testing.T) {
	if err := ValidateSdp(validOfferSdp); err != nil {
		t.Fatalf("expected valid sdp to pass, got %v", err)
	}
}

func TestValidateSdpRejectsMalformed(t *testing.T) {
	if err := ValidateSdp("not an sdp body"); err == nil {
		t.Fatal("expected malformed sdp to be rejected")
	}
}
