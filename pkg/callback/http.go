package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pitabwire/frame/workerpool"

	"github.com/medea-project/medea/pkg/events"
	"github.com/medea-project/medea/pkg/urlvalidation"
)

const maxBreakers = 10000

// DelivererConfig holds delivery-related settings for the HTTP transport.
type DelivererConfig struct {
	Secret            string
	MaxRetries        int
	TimeoutSec        int
	BackoffInitialSec int
	BackoffMaxSec     int
	CBFailThreshold   int
	CBResetTimeoutSec int
}

// Deliverer delivers callback payloads to Members' configured HTTP(S)
// endpoints, with per-URL circuit breaking and exponential backoff.
type Deliverer struct {
	repo         *Repository
	pub          *events.Publisher
	httpClient   *http.Client
	config       DelivererConfig
	pool         workerpool.WorkerPool
	validateOpts []urlvalidation.Option

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewDeliverer creates a new HTTP callback deliverer.
func NewDeliverer(repo *Repository, pub *events.Publisher, cfg DelivererConfig, pool workerpool.WorkerPool, validateOpts ...urlvalidation.Option) *Deliverer {
	return &Deliverer{
		repo: repo,
		pub:  pub,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		config:       cfg,
		pool:         pool,
		validateOpts: validateOpts,
		breakers:     make(map[string]*CircuitBreaker),
	}
}

func (d *Deliverer) getOrCreateBreaker(url string) *CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb, ok := d.breakers[url]
	if ok {
		return cb
	}

	if len(d.breakers) >= maxBreakers {
		for k := range d.breakers {
			delete(d.breakers, k)
			break
		}
	}

	cb = NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold:    d.config.CBFailThreshold,
		ResetTimeout:        time.Duration(d.config.CBResetTimeoutSec) * time.Second,
		HalfOpenMaxAttempts: 1,
	})
	d.breakers[url] = cb
	return cb
}

// Deliver attempts to POST a callback payload to url.
func (d *Deliverer) Deliver(ctx context.Context, url string, payload Payload) {
	d.deliverWithRetry(ctx, url, payload, 1)
}

func (d *Deliverer) deliverWithRetry(ctx context.Context, url string, payload Payload, attempt int) {
	if err := urlvalidation.ValidateCallbackURL(url, d.validateOpts...); err != nil {
		slog.ErrorContext(ctx, "callback URL failed SSRF validation",
			slog.String("member_id", payload.MemberID),
			slog.String("url", url),
			slog.String("error", err.Error()))
		return
	}

	cb := d.getOrCreateBreaker(url)
	if !cb.AllowRequest() {
		openErr := cb.OpenError(fmt.Sprintf("%s/%s", payload.RoomID, payload.MemberID))
		slog.WarnContext(ctx, "callback delivery skipped", slog.String("error", openErr.Error()))
		d.handleFailure(ctx, url, payload, attempt, openErr.Text)
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		d.handleFailure(ctx, url, payload, attempt, fmt.Sprintf("marshal: %v", err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		d.handleFailure(ctx, url, payload, attempt, fmt.Sprintf("create request: %v", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Medea-Callback", string(payload.Kind))
	if d.config.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(d.config.Secret, body))
	}

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	durationMs := time.Since(start).Milliseconds()

	da := &DeliveryAttempt{
		RoomID:        payload.RoomID,
		MemberID:      payload.MemberID,
		URL:           url,
		Kind:          string(payload.Kind),
		RequestBody:   string(body),
		AttemptNumber: attempt,
		DurationMs:    durationMs,
	}

	if err != nil {
		cb.RecordFailure()
		da.Status = "failed"
		da.Error = err.Error()
		d.record(ctx, da)
		d.emitOutcome(ctx, payload, url, 0, err.Error())
		d.handleFailure(ctx, url, payload, attempt, da.Error)
		return
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	io.Copy(io.Discard, resp.Body)

	da.ResponseCode = resp.StatusCode
	da.ResponseBody = string(respBody)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		cb.RecordSuccess()
		da.Status = "success"
		d.record(ctx, da)
		d.emitOutcome(ctx, payload, url, resp.StatusCode, "")
		return
	}

	cb.RecordFailure()
	da.Status = "failed"
	da.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
	d.record(ctx, da)
	d.emitOutcome(ctx, payload, url, resp.StatusCode, da.Error)
	d.handleFailure(ctx, url, payload, attempt, da.Error)
}

func (d *Deliverer) record(ctx context.Context, da *DeliveryAttempt) {
	if d.repo == nil {
		return
	}
	if err := d.repo.RecordDelivery(ctx, da); err != nil {
		slog.ErrorContext(ctx, "record callback delivery failed", slog.String("error", err.Error()))
	}
}

func (d *Deliverer) emitOutcome(ctx context.Context, payload Payload, url string, status int, errMsg string) {
	if d.pub == nil {
		return
	}
	eventType := events.CallbackDelivered
	if errMsg != "" {
		eventType = events.CallbackFailed
	}
	if err := d.pub.Emit(ctx, eventType, payload.RoomID, events.CallbackOutcomeData{
		URL:        url,
		StatusCode: status,
		Error:      errMsg,
	}); err != nil {
		slog.WarnContext(ctx, "emit callback outcome failed", slog.String("error", err.Error()))
	}
}

func (d *Deliverer) handleFailure(ctx context.Context, url string, payload Payload, attempt int, errMsg string) {
	if attempt >= d.config.MaxRetries {
		if d.repo != nil {
			payloadJSON, _ := json.Marshal(payload)
			if err := d.repo.CreateDeadLetter(ctx, &DeadLetter{
				RoomID:     payload.RoomID,
				MemberID:   payload.MemberID,
				URL:        url,
				Kind:       string(payload.Kind),
				Payload:    string(payloadJSON),
				LastError:  errMsg,
				Attempts:   attempt,
				Replayable: true,
			}); err != nil {
				slog.ErrorContext(ctx, "create callback dead letter failed", slog.String("error", err.Error()))
			}
		}
		return
	}

	backoff := d.config.BackoffInitialSec * (1 << (attempt - 1))
	if backoff > d.config.BackoffMaxSec {
		backoff = d.config.BackoffMaxSec
	}

	retryFunc := func() {
		timer := time.NewTimer(time.Duration(backoff) * time.Second)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			d.deliverWithRetry(ctx, url, payload, attempt+1)
		}
	}

	if d.pool != nil {
		if err := d.pool.Submit(ctx, retryFunc); err != nil {
			slog.WarnContext(ctx, "retry pool full, dropping callback retry",
				slog.String("member_id", payload.MemberID),
				slog.Int("attempt", attempt))
		}
	} else {
		time.AfterFunc(time.Duration(backoff)*time.Second, func() {
			d.deliverWithRetry(ctx, url, payload, attempt+1)
		})
	}
}
