package callback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/medea-project/medea/internal/connectutil"
	"github.com/medea-project/medea/pkg/events"
)

// grpcProcedure is the Connect RPC procedure path OnEvent callbacks are
// posted to on the operator's callback receiver (spec §6.2: "outbound gRPC
// Callback.OnEvent{fid, event, at}"). No generated service stub is needed
// for a single outbound unary call, so the client is built directly
// against connect.NewClient with a structpb.Struct payload.
const grpcProcedure = "/medea.control.v1.Callback/OnEvent"

// GRPCDeliverer delivers callback payloads over cleartext HTTP/2 Connect
// RPC (spec §6.4: "a gRPC client speaking h2c, no TLS, to the operator's
// callback receiver"), for Members configured with a grpc:// callback URL.
type GRPCDeliverer struct {
	pub     *events.Publisher
	repo    *Repository
	client  *connect.Client[structpb.Struct, structpb.Struct]
	timeout time.Duration
}

// NewGRPCDeliverer builds a GRPCDeliverer targeting baseURL, which must
// name the operator's callback receiver host (e.g. "http://callbacks:9090").
func NewGRPCDeliverer(repo *Repository, pub *events.Publisher, baseURL string, timeout time.Duration) *GRPCDeliverer {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &GRPCDeliverer{
		pub:     pub,
		repo:    repo,
		timeout: timeout,
		client: connect.NewClient[structpb.Struct, structpb.Struct](
			connectutil.H2CClient(),
			baseURL+grpcProcedure,
			connect.WithGRPC(),
		),
	}
}

// Deliver sends payload as a structpb.Struct over Connect RPC to the base
// URL given to NewGRPCDeliverer. url is not used as the destination; it is
// only logged, recorded in the delivery audit row and put on the outcome
// event.
func (g *GRPCDeliverer) Deliver(ctx context.Context, url string, payload Payload) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	at := timestamppb.New(payload.Timestamp)
	body, err := structpb.NewStruct(map[string]any{
		"fid":    payload.RoomID + "/" + payload.MemberID,
		"event":  string(payload.Kind),
		"reason": payload.Reason,
		"at":     at.AsTime().Format(time.RFC3339Nano),
	})
	if err != nil {
		g.record(ctx, payload, url, fmt.Sprintf("encode: %v", err))
		return
	}

	_, err = g.client.CallUnary(ctx, connect.NewRequest(body))
	if err != nil {
		slog.ErrorContext(ctx, "grpc callback delivery failed",
			slog.String("member_id", payload.MemberID), slog.String("url", url), slog.String("error", err.Error()))
		g.record(ctx, payload, url, err.Error())
		g.emitOutcome(ctx, payload, url, 0, err.Error())
		return
	}
	g.record(ctx, payload, url, "")
	g.emitOutcome(ctx, payload, url, 0, "")
}

func (g *GRPCDeliverer) record(ctx context.Context, payload Payload, url, errMsg string) {
	if g.repo == nil {
		return
	}
	status := "success"
	if errMsg != "" {
		status = "failed"
	}
	if err := g.repo.RecordDelivery(ctx, &DeliveryAttempt{
		RoomID:        payload.RoomID,
		MemberID:      payload.MemberID,
		URL:           url,
		Kind:          string(payload.Kind),
		AttemptNumber: 1,
		Status:        status,
		Error:         errMsg,
	}); err != nil {
		slog.ErrorContext(ctx, "record grpc callback delivery failed", slog.String("error", err.Error()))
	}
}

func (g *GRPCDeliverer) emitOutcome(ctx context.Context, payload Payload, url string, status int, errMsg string) {
	if g.pub == nil {
		return
	}
	eventType := events.CallbackDelivered
	if errMsg != "" {
		eventType = events.CallbackFailed
	}
	if err := g.pub.Emit(ctx, eventType, payload.RoomID, events.CallbackOutcomeData{
		URL: url, StatusCode: status, Error: errMsg,
	}); err != nil {
		slog.WarnContext(ctx, "emit grpc callback outcome failed", slog.String("error", err.Error()))
	}
}
