package fetch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/gameshake/gameshake/pkg/gameshake/auth"
	"github.com/gameshake/gameshake/pkg/gameshake/client"
	"github.com/gameshake/gameshake/pkg/metrics"
	"github.com/gameshake/gameshake/pkg/system"
	"github.com/gameshake/gameshake/pkg/telemetry"
)

const defaultAuthAttempts = 3

// PageSource yields pages for a request; *client.Paginator implements it.
type PageSource interface {
	Pages(ctx context.Context, req client.PageRequest) iter.Seq2[*client.Page, error]
}

// Params describes one fetch.
type Params struct {
	// Resource labels metrics and log lines, e.g. "games".
	Resource string
	Path     string
	Query    url.Values
	PageSize int
	// Limit stops the fetch after this many records. Zero fetches all.
	Limit int
	Login auth.LoginRequest
}

type Orchestrator struct {
	store        auth.Store
	authn        auth.Authenticator
	pages        PageSource
	clock        clock.PassiveClock
	margin       time.Duration
	authAttempts int
	backoff      client.RetryConfig
	sleep        client.Sleeper
	random       func() float64
	log          *zap.SugaredLogger
}

type Option func(*Orchestrator)

func WithClock(c clock.PassiveClock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithSafetyMargin sets how long before expiry a credential is refreshed.
func WithSafetyMargin(d time.Duration) Option {
	return func(o *Orchestrator) { o.margin = d }
}

// WithAuthRetry sets how often network failures during authentication are
// retried and the backoff between attempts.
func WithAuthRetry(attempts int, backoff client.RetryConfig) Option {
	return func(o *Orchestrator) {
		if attempts > 0 {
			o.authAttempts = attempts
		}
		o.backoff = backoff.WithDefaults()
	}
}

func WithSleeper(sleep client.Sleeper) Option {
	return func(o *Orchestrator) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(o *Orchestrator) { o.log = log }
}

func New(store auth.Store, authn auth.Authenticator, pages PageSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:        store,
		authn:        authn,
		pages:        pages,
		clock:        clock.RealClock{},
		margin:       auth.DefaultSafetyMargin,
		authAttempts: defaultAuthAttempts,
		backoff:      client.DefaultRetryConfig(),
		sleep:        client.SleepContext,
		random:       rand.Float64,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = system.OrNop(o.log)
	return o
}

type session struct {
	cred            auth.Credential
	cursor          string
	fetched         int
	total           *int
	pages           int
	reauthenticated bool
	records         []client.Record
	transitions     []State
}

func (s *session) result() *Result {
	return &Result{
		Records:     s.records,
		Transitions: s.transitions,
		Total:       s.total,
		Pages:       s.pages,
	}
}

// Stream runs the fetch in a new goroutine. The channel is unbuffered and
// delivers events in order; exactly one EventCompleted or EventFailed is
// sent last, then the channel is closed. Every page appended to the result
// is also streamed as EventRecords, even after ctx is cancelled, so callers
// must drain the channel.
func (o *Orchestrator) Stream(ctx context.Context, p Params) <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)
		o.run(ctx, p, ch)
	}()
	return ch
}

// Fetch drains Stream. The result is non-nil even when err is set.
func (o *Orchestrator) Fetch(ctx context.Context, p Params) (*Result, error) {
	var final Event
	for ev := range o.Stream(ctx, p) {
		if ev.Terminal() {
			final = ev
		}
	}
	return final.Result, final.Err
}

func (o *Orchestrator) run(ctx context.Context, p Params, ch chan<- Event) {
	s := &session{transitions: []State{Idle}, records: []client.Record{}}
	log := o.log.With("resource", p.Resource)
	ctx, span := telemetry.Tracer("fetch").Start(ctx, "fetch "+p.Resource,
		trace.WithAttributes(attribute.String("gameshake.path", p.Path)))

	enter := func(state State) {
		s.transitions = append(s.transitions, state)
		log.Debugw("Fetch state changed", "state", state)
		span.AddEvent("state", trace.WithAttributes(attribute.String("gameshake.state", string(state))))
		send(ch, Event{Kind: EventState, State: state})
	}
	finish := func(err error) {
		span.SetAttributes(
			attribute.Int("gameshake.records", s.fetched),
			attribute.Int("gameshake.pages", s.pages),
			attribute.Bool("gameshake.reauthenticated", s.reauthenticated),
		)
		telemetry.End(span, err)
		if err == nil {
			s.transitions = append(s.transitions, Completed)
			log.Debugw("Fetch completed", "records", s.fetched, "pages", s.pages)
			ch <- Event{Kind: EventCompleted, State: Completed, Result: s.result()}
			return
		}
		s.transitions = append(s.transitions, Failed)
		log.Debugw("Fetch failed", "error", err)
		ch <- Event{Kind: EventFailed, State: Failed, Err: err, Result: s.result()}
	}

	if p.Path == "" {
		finish(&Error{Kind: FetchFailed, Err: errors.New("path is required")})
		return
	}

	enter(Authenticating)
	cred, err := o.credential(ctx, p, nil)
	if err != nil {
		finish(failure(ctx, AuthExhausted, err))
		return
	}
	s.cred = cred

	for {
		enter(Fetching)
		err := o.fetchPages(ctx, p, s, ch)
		if err == nil {
			finish(nil)
			return
		}
		if ctx.Err() == nil && client.IsUnauthorized(err) {
			if s.reauthenticated {
				finish(&Error{Kind: AuthExhausted, Err: err})
				return
			}
			s.reauthenticated = true
			log.Infow("Credential rejected by API, re-authenticating", "cursor", s.cursor)
			enter(Authenticating)
			cred, err := o.credential(ctx, p, &s.cred)
			if err != nil {
				finish(failure(ctx, AuthExhausted, err))
				return
			}
			s.cred = cred
			continue
		}
		finish(failure(ctx, FetchFailed, err))
		return
	}
}

// fetchPages walks pages from s.cursor until the end, the limit or an error.
func (o *Orchestrator) fetchPages(ctx context.Context, p Params, s *session, ch chan<- Event) error {
	req := client.PageRequest{
		Path:       p.Path,
		Query:      p.Query,
		Credential: s.cred,
		Cursor:     s.cursor,
		PageSize:   p.PageSize,
	}
	for page, err := range o.pages.Pages(ctx, req) {
		if err != nil {
			return err
		}
		items := page.Items
		if p.Limit > 0 && s.fetched+len(items) > p.Limit {
			items = items[:p.Limit-s.fetched]
		}
		s.records = append(s.records, items...)
		s.fetched += len(items)
		s.pages++
		s.cursor = page.NextCursor
		if page.Total != nil {
			total := *page.Total
			if p.Limit > 0 && total > p.Limit {
				total = p.Limit
			}
			s.total = &total
		}
		metrics.PagesFetched.WithLabelValues(p.Resource).Inc()
		metrics.RecordsFetched.WithLabelValues(p.Resource).Add(float64(len(items)))

		send(ch, Event{Kind: EventRecords, State: Fetching, Records: items})
		send(ch, Event{Kind: EventProgress, State: Fetching, Progress: Progress{Fetched: s.fetched, Total: s.total}})
		if p.Limit > 0 && s.fetched >= p.Limit {
			return nil
		}
	}
	return nil
}

// credential returns a usable credential. With current nil the stored
// credential is used when still valid; otherwise current is renewed
// regardless of its expiry. An expired credential with a refresh token is
// always refreshed first, even when its scopes no longer cover the login.
func (o *Orchestrator) credential(ctx context.Context, p Params, current *auth.Credential) (auth.Credential, error) {
	requested := p.Login.Scopes
	cred := current
	if cred == nil {
		stored, err := o.store.Load(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return auth.Credential{}, ctx.Err()
			}
			o.log.Warnw("Failed to load stored credential", "error", err)
		}
		if stored != nil {
			valid := stored.Valid(o.clock.Now(), o.margin)
			covered := stored.CoversScopes(requested)
			switch {
			case valid && covered:
				metrics.AuthOperations.WithLabelValues("cached", "success").Inc()
				return *stored, nil
			case !covered && (valid || !stored.CanRefresh()):
				o.log.Debugw("Stored credential lacks requested scopes", "requested", requested, "previous", stored.RequestedScopes)
				stored = nil
			}
		}
		cred = stored
	}

	if cred != nil && cred.CanRefresh() {
		prev := *cred
		refreshed, err := o.retryAuth(ctx, "refresh", func(ctx context.Context) (auth.Credential, error) {
			return o.authn.Refresh(ctx, prev)
		})
		if err == nil {
			if len(refreshed.RequestedScopes) == 0 {
				refreshed.RequestedScopes = prev.RequestedScopes
			}
			refreshed = withRequestedScopes(refreshed, requested)
			if refreshed.CoversScopes(requested) {
				o.save(ctx, refreshed)
				return refreshed, nil
			}
			o.log.Infow("Refreshed credential lacks requested scopes, authenticating again", "requested", requested)
		} else if !auth.IsKind(err, auth.AuthInvalidGrant) {
			return auth.Credential{}, err
		} else {
			o.log.Infow("Refresh token rejected, authenticating again", "error", err)
		}
	}

	fresh, err := o.retryAuth(ctx, "authenticate", func(ctx context.Context) (auth.Credential, error) {
		return o.authn.Authenticate(ctx, p.Login)
	})
	if err != nil {
		return auth.Credential{}, err
	}
	fresh = withRequestedScopes(fresh, requested)
	o.save(ctx, fresh)
	return fresh, nil
}

// withRequestedScopes records the login's scopes on a credential that does
// not carry them yet.
func withRequestedScopes(cred auth.Credential, requested []string) auth.Credential {
	if len(cred.RequestedScopes) == 0 && len(requested) > 0 {
		cred.RequestedScopes = append([]string(nil), requested...)
	}
	return cred
}

// retryAuth retries fn on network failures only.
func (o *Orchestrator) retryAuth(ctx context.Context, op string, fn func(context.Context) (auth.Credential, error)) (cred auth.Credential, err error) {
	ctx, span := telemetry.Tracer("fetch").Start(ctx, "auth."+op)
	defer func() { telemetry.End(span, err) }()

	for attempt := 1; ; attempt++ {
		span.SetAttributes(attribute.Int("gameshake.attempt", attempt))
		if err := ctx.Err(); err != nil {
			return auth.Credential{}, err
		}
		cred, err := fn(ctx)
		if err == nil {
			metrics.AuthOperations.WithLabelValues(op, "success").Inc()
			return cred, nil
		}
		if ctx.Err() != nil {
			return auth.Credential{}, ctx.Err()
		}
		if !auth.IsKind(err, auth.AuthNetwork) || attempt >= o.authAttempts {
			metrics.AuthOperations.WithLabelValues(op, "failure").Inc()
			return auth.Credential{}, err
		}
		delay := o.backoff.Delay(attempt, o.random())
		o.log.Debugw("Retrying authentication", "operation", op, "attempt", attempt, "delay", delay, "error", err)
		if err := o.sleep(ctx, delay); err != nil {
			return auth.Credential{}, err
		}
	}
}

func (o *Orchestrator) save(ctx context.Context, cred auth.Credential) {
	if err := o.store.Save(ctx, cred); err != nil {
		o.log.Warnw("Failed to persist credential", "error", err)
	}
}

func failure(ctx context.Context, kind ErrorKind, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		if ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return &Error{Kind: Cancelled, Err: err}
	}
	return &Error{Kind: kind, Err: err}
}

// send delivers a non-terminal event. It blocks even after cancellation so
// streamed records always match Result.Records.
func send(ch chan<- Event, ev Event) {
	ch <- ev
}
