// Command medea runs the WebRTC signalling core: the Control Gateway that
// accepts topology mutations and the Room Orchestrators they drive. The
// client WebSocket upgrade loop and the Control API's gRPC/REST listeners
// are operator-supplied front doors (spec §1 Non-goals); this binary wires
// the core components behind them.
package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/pitabwire/frame"
	"github.com/pitabwire/frame/config"
	"github.com/pitabwire/frame/datastore/pool"

	medeaconfig "github.com/medea-project/medea/config"
	"github.com/medea-project/medea/internal/connectutil"
	"github.com/medea-project/medea/internal/control"
	"github.com/medea-project/medea/internal/id"
	"github.com/medea-project/medea/internal/liveness"
	"github.com/medea-project/medea/internal/turn"
	"github.com/medea-project/medea/pkg/callback"
	"github.com/medea-project/medea/pkg/events"
)

// registryResolver defers callback.URLResolver to a *control.Registry that
// doesn't exist yet when the callback Sink is constructed, since the Sink
// is itself one of the Registry's constructor arguments.
type registryResolver struct {
	reg *control.Registry
}

func (r *registryResolver) CallbackURL(ctx context.Context, fid id.MemberFid, kind callback.Kind) (string, error) {
	return r.reg.CallbackURL(ctx, fid, kind)
}

func main() {
	ctx := context.Background()

	cfg, err := config.LoadWithOIDC[medeaconfig.MedeaConfig](ctx)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	eventRef := cfg.GetEventsQueueName()
	eventURL := cfg.GetEventsQueueURL()

	ctx, srv := frame.NewService(
		frame.WithConfig(&cfg),
		frame.WithName("medea"),
		frame.WithDatastore(),
		frame.WithRegisterPublisher(eventRef, eventURL),
	)
	defer srv.Stop(ctx)

	workerPool, err := srv.WorkManager().GetPool()
	if err != nil {
		log.Fatalf("getting worker pool: %v", err)
	}

	pub := events.NewPublisher(srv.QueueManager(), "medea", eventRef)
	dsPool := srv.DatastoreManager().GetPool(ctx, "__default__pool_name__")

	turnCoordinator := buildTurnCoordinator(ctx, dsPool, cfg)

	resolver := &registryResolver{}
	cbRepo := callback.NewRepository(dsPool)
	callbackSecret := cfg.CallbackSecret
	if callbackSecret == "" {
		generated, err := callback.GenerateSecret()
		if err != nil {
			log.Fatalf("generating callback secret: %v", err)
		}
		log.Printf("no callback_secret configured, generated an ephemeral one for this process")
		callbackSecret = generated
	}
	httpDeliverer := callback.NewDeliverer(cbRepo, pub, callback.DelivererConfig{
		Secret:            callbackSecret,
		MaxRetries:        cfg.CallbackMaxRetries,
		TimeoutSec:        cfg.CallbackTimeoutSec,
		BackoffInitialSec: cfg.CallbackBackoffSec,
		BackoffMaxSec:     cfg.CallbackBackoffMaxSec,
		CBFailThreshold:   cfg.CBFailThreshold,
		CBResetTimeoutSec: cfg.CBResetTimeoutSec,
	}, workerPool)
	var grpcDeliverer *callback.GRPCDeliverer
	if cfg.CallbackGRPCBaseURL != "" {
		grpcDeliverer = callback.NewGRPCDeliverer(cbRepo, pub, cfg.CallbackGRPCBaseURL, time.Duration(cfg.CallbackTimeoutSec)*time.Second)
	}
	sink := callback.NewSink(resolver, httpDeliverer, grpcDeliverer)

	livenessCfg := liveness.Config{
		InitTimeout:  time.Duration(cfg.LivenessInitTimeoutSec) * time.Second,
		MaxLag:       time.Duration(cfg.LivenessMaxLagSec) * time.Second,
		TickInterval: time.Duration(cfg.LivenessTickIntervalMs) * time.Millisecond,
		WindowSize:   cfg.LivenessWindowSamples,
	}

	registry := control.NewRegistry(workerPool, pub, turnCoordinator, sink, livenessCfg)
	resolver.reg = registry

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv.Init(ctx, frame.WithHTTPHandler(connectutil.H2CHandler(mux)))

	if err := srv.Run(ctx, ""); err != nil {
		log.Fatalf("service exited: %v", err)
	}
}

// buildTurnCoordinator assembles the Turn Coordinator for cfg.TurnMode
// (spec §4.8): Managed mints per-Member credentials against a gorm-backed
// store and a coturn admin session killer; Static serves an
// operator-supplied, hot-reloadable ICE server list verbatim.
func buildTurnCoordinator(ctx context.Context, dsPool pool.Pool, cfg medeaconfig.MedeaConfig) *turn.Coordinator {
	turnCfg := turn.Config{
		Mode:     turn.Mode(cfg.TurnMode),
		TurnURLs: cfg.StaticTurnURLs(),
		Realm:    cfg.TurnRealm,
		TTL:      time.Duration(cfg.TurnCredentialTTLSec) * time.Second,
	}

	if turnCfg.Mode == turn.Managed {
		store := turn.NewStore(dsPool)
		var killer turn.CoturnSessionKiller
		if cfg.TurnAdminURL != "" {
			killer = turn.NewHTTPSessionKiller(cfg.TurnAdminURL, time.Duration(cfg.CallbackTimeoutSec)*time.Second)
		}
		return turn.NewCoordinator(turnCfg, store, killer)
	}

	if cfg.TurnStaticServersFile != "" {
		watcher, err := medeaconfig.NewStaticIceServersWatcher(cfg.TurnStaticServersFile)
		if err != nil {
			log.Fatalf("loading static ICE servers file: %v", err)
		}
		go func() { _ = watcher.Watch(ctx.Done()) }()
		for _, s := range watcher.Current() {
			turnCfg.StaticServers = append(turnCfg.StaticServers, turn.StaticServer{
				URLs: s.URLs, Username: s.Username, Credential: s.Credential,
			})
		}
	}
	return turn.NewCoordinator(turnCfg, nil, nil)
}
