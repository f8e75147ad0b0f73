package callback

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/medea-project/medea/internal/id"
	"github.com/medea-project/medea/internal/session"
	"github.com/medea-project/medea/pkg/urlvalidation"
)

type fakeResolver struct {
	urls map[string]string
}

func (f *fakeResolver) CallbackURL(_ context.Context, fid id.MemberFid, kind Kind) (string, error) {
	return f.urls[string(kind)+":"+fid.String()], nil
}

func TestSinkDeliversOnJoinToResolvedURL(t *testing.T) {
	var received atomic.Bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Store(true)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	fid := id.MemberFid{Room: "room1", Member: "alice"}
	resolver := &fakeResolver{urls: map[string]string{"join:" + fid.String(): ts.URL}}
	d := NewDeliverer(nil, nil, DelivererConfig{MaxRetries: 1, TimeoutSec: 5, CBFailThreshold: 5}, nil, urlvalidation.AllowPrivateIPs())
	sink := NewSink(resolver, d, nil)

	sink.OnJoin(t.Context(), fid)

	if !received.Load() {
		t.Error("expected the resolved on_join URL to receive a callback")
	}
}

func TestSinkSkipsUnconfiguredMember(t *testing.T) {
	fid := id.MemberFid{Room: "room1", Member: "bob"}
	resolver := &fakeResolver{urls: map[string]string{}}
	sink := NewSink(resolver, nil, nil)

	sink.OnLeave(t.Context(), fid, session.LeaveDisconnected)
}
