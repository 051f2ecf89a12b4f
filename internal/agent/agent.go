// Package agent implements the push driver (spec.md §4.9): bootstrap over
// HTTP, then a long-lived WebSocket subscription that triggers re-bootstrap
// on every "DEPLOYMENT UPDATED" frame, reconnecting with exponential
// backoff.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/theinhumaneme/hikari/internal/catalog"
	"github.com/theinhumaneme/hikari/internal/config"
	"github.com/theinhumaneme/hikari/internal/notifier"
	"github.com/theinhumaneme/hikari/internal/reconcile"
)

// FatalError marks a bootstrap failure the Agent must not retry: a catalog
// version mismatch or an unreadable reference file after EnsurePlaceholder,
// per spec.md §4.9 step 3.
type FatalError struct{ Reason string }

func (e *FatalError) Error() string { return "agent: fatal: " + e.Reason }

// Agent drives one node's push-reconciliation lifecycle.
type Agent struct {
	Identity config.NodeIdentity
	Cfg      config.AgentConfig
	Runner   reconcile.ComposeRunner
	Log      *slog.Logger

	httpClient *http.Client
}

// New constructs an Agent over runner, ready to Run.
func New(identity config.NodeIdentity, cfg config.AgentConfig, runner reconcile.ComposeRunner, log *slog.Logger) *Agent {
	if log == nil {
		log = slog.Default()
	}
	return &Agent{
		Identity:   identity,
		Cfg:        cfg,
		Runner:     runner,
		Log:        log,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Run executes the bootstrap, then the subscribe/reconnect loop, until ctx
// is cancelled. It never returns on recoverable errors.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.Bootstrap(ctx); err != nil {
		var fatal *FatalError
		if asFatal(err, &fatal) {
			return fatal
		}
		a.Log.Error("bootstrap failed", "error", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = 64 * time.Second
	b.MaxElapsedTime = 0 // never give up
	b.Reset()            // apply InitialInterval to the first wait

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := a.subscribeOnce(ctx, b); err != nil {
			var fatal *FatalError
			if asFatal(err, &fatal) {
				return fatal
			}
			wait := b.NextBackOff()
			a.Log.Warn("subscription dropped, reconnecting", "error", err, "wait", wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
}

// Bootstrap fetches the per-node catalog projection, reconciles it against
// the on-disk reference, and persists it as the new reference, per spec.md
// §4.9 step 1.
func (a *Agent) Bootstrap(ctx context.Context) error {
	incoming, err := a.fetchCatalog(ctx)
	if err != nil {
		return fmt.Errorf("agent: bootstrap fetch: %w", err)
	}
	if incoming.Version != a.Identity.Version {
		return &FatalError{Reason: fmt.Sprintf("catalog version %q does not match node version %q", incoming.Version, a.Identity.Version)}
	}

	if err := catalog.EnsurePlaceholder(a.Cfg.ReferenceFilePath); err != nil {
		return &FatalError{Reason: fmt.Sprintf("ensuring reference placeholder: %v", err)}
	}
	reference, err := catalog.Load(a.Cfg.ReferenceFilePath)
	if err != nil {
		return &FatalError{Reason: fmt.Sprintf("loading reference catalog: %v", err)}
	}

	id := catalog.NodeIdentity{
		Version:     a.Identity.Version,
		Client:      a.Identity.Client,
		Environment: a.Identity.Environment,
		Solution:    a.Identity.Solution,
	}
	reconcile.New(a.Runner, a.Log).Reconcile(ctx, reference, incoming, id)

	if err := catalog.Replace(a.Cfg.ReferenceFilePath, incoming); err != nil {
		return fmt.Errorf("agent: writing reference catalog: %w", err)
	}
	return nil
}

// fetchCatalog GETs the per-node catalog projection from the server.
func (a *Agent) fetchCatalog(ctx context.Context) (*catalog.HikariCatalog, error) {
	u, err := a.metadataURL()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var cat catalog.HikariCatalog
	if err := json.NewDecoder(resp.Body).Decode(&cat); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (a *Agent) metadataURL() (string, error) {
	base, err := url.Parse(a.Cfg.ServerURL)
	if err != nil {
		return "", fmt.Errorf("parsing server_url: %w", err)
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + "/api/v1/hikari/metadata"
	q := base.Query()
	q.Set("client", a.Identity.Client)
	q.Set("environment", a.Identity.Environment)
	q.Set("solution", a.Identity.Solution)
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func (a *Agent) websocketURL() (string, error) {
	base, err := url.Parse(a.Cfg.ServerURL)
	if err != nil {
		return "", fmt.Errorf("parsing server_url: %w", err)
	}
	switch base.Scheme {
	case "https":
		base.Scheme = "wss"
	default:
		base.Scheme = "ws"
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + "/ws"
	q := base.Query()
	q.Set("client", a.Identity.Client)
	q.Set("environment", a.Identity.Environment)
	q.Set("solution", a.Identity.Solution)
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// subscribeOnce dials the notification socket and processes frames until
// the connection drops or ctx is cancelled. On a successful dial, b is
// reset so the next failure starts backing off from scratch again, per
// spec.md §4.9 step 2 / S6.
func (a *Agent) subscribeOnce(ctx context.Context, b backoff.BackOff) error {
	u, err := a.websocketURL()
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	b.Reset()
	a.Log.Info("subscribed", "url", u)

	events := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}
			select {
			case events <- string(data):
			default: // coalesce: a pending unread event already covers this one
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-done:
			return err
		case ev := <-events:
			a.drainAndCoalesce(events)
			if ev != notifier.Updated {
				continue // informational frame, per spec.md §4.6
			}
			if err := a.Bootstrap(ctx); err != nil {
				var fatal *FatalError
				if asFatal(err, &fatal) {
					return fatal
				}
				a.Log.Error("re-bootstrap failed", "error", err)
			}
		}
	}
}

// drainAndCoalesce discards any additional already-buffered events so a
// burst of notifications triggers at most one reconciliation pass, per
// spec.md §5.
func (a *Agent) drainAndCoalesce(events <-chan string) {
	for {
		select {
		case <-events:
		default:
			return
		}
	}
}

func asFatal(err error, target **FatalError) bool {
	f, ok := err.(*FatalError)
	if ok {
		*target = f
	}
	return ok
}
