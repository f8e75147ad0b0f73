package callback

import (
	"context"
	"strings"
	"time"

	"github.com/medea-project/medea/internal/id"
	"github.com/medea-project/medea/internal/session"
)

// URLResolver looks up a Member's configured on_join/on_leave URL at
// delivery time, since room.CallbackSink's OnJoin/OnLeave carry only the
// Member's address, not its spec (spec §4.6). control.Registry implements
// this by reading the live Room's spec.
type URLResolver interface {
	CallbackURL(ctx context.Context, fid id.MemberFid, kind Kind) (string, error)
}

// Sink implements room.CallbackSink, routing each callback to the HTTP or
// gRPC deliverer based on the configured URL's scheme.
type Sink struct {
	resolver URLResolver
	http     *Deliverer
	grpc     *GRPCDeliverer
}

// NewSink builds a Sink. Either deliverer may be nil if that transport is
// not configured; a URL requiring a nil deliverer is dropped silently.
func NewSink(resolver URLResolver, http *Deliverer, grpc *GRPCDeliverer) *Sink {
	return &Sink{resolver: resolver, http: http, grpc: grpc}
}

// OnJoin implements room.CallbackSink.
func (s *Sink) OnJoin(ctx context.Context, fid id.MemberFid) {
	s.deliver(ctx, fid, KindJoin, "")
}

// OnLeave implements room.CallbackSink.
func (s *Sink) OnLeave(ctx context.Context, fid id.MemberFid, reason session.LeaveReason) {
	s.deliver(ctx, fid, KindLeave, string(reason))
}

func (s *Sink) deliver(ctx context.Context, fid id.MemberFid, kind Kind, reason string) {
	url, err := s.resolver.CallbackURL(ctx, fid, kind)
	if err != nil || url == "" {
		return
	}
	payload := Payload{
		Kind:      kind,
		RoomID:    string(fid.Room),
		MemberID:  string(fid.Member),
		Reason:    reason,
		Timestamp: time.Now(),
	}

	if strings.HasPrefix(url, "grpc://") {
		if s.grpc != nil {
			s.grpc.Deliver(ctx, strings.Replace(url, "grpc://", "http://", 1), payload)
		}
		return
	}
	if s.http != nil {
		s.http.Deliver(ctx, url, payload)
	}
}
