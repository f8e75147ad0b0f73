package id

import "testing"

func TestParseFid(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{"room1/alice/publish", false},
		{"room1/alice", true},
		{"room1//publish", true},
		{"", true},
	}
	for _, c := range cases {
		fid, err := ParseFid(c.in)
		if (err != nil) != c.wantErr {
			t.Fatalf("ParseFid(%q) err=%v wantErr=%v", c.in, err, c.wantErr)
		}
		if err == nil && fid.String() != c.in {
			t.Fatalf("round-trip mismatch: got %q want %q", fid.String(), c.in)
		}
	}
}

func TestFidMemberFid(t *testing.T) {
	fid, err := ParseFid("room1/alice/publish")
	if err != nil {
		t.Fatal(err)
	}
	mf := fid.MemberFid()
	if mf.String() != "room1/alice" {
		t.Fatalf("got %q want room1/alice", mf.String())
	}
}
