// Package daemon implements the pull driver (spec.md §4.10): a poll loop
// that downloads an encrypted bundle, decrypts it, reconciles it against
// the on-disk reference, and swaps the decrypted file in as the new
// reference.
package daemon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/theinhumaneme/hikari/internal/bundle"
	"github.com/theinhumaneme/hikari/internal/catalog"
	"github.com/theinhumaneme/hikari/internal/config"
	"github.com/theinhumaneme/hikari/internal/reconcile"
)

// FatalError marks a condition the Daemon must not retry: a decrypted
// catalog version mismatch, per spec.md §4.10 step 3.
type FatalError struct{ Reason string }

func (e *FatalError) Error() string { return "daemon: fatal: " + e.Reason }

// Daemon drives one node's pull-reconciliation lifecycle.
type Daemon struct {
	Identity       config.NodeIdentity
	Opts           config.UpdateOptions
	PrivateKeyPath string
	Runner         reconcile.ComposeRunner
	Log            *slog.Logger

	httpClient *http.Client
}

// New constructs a Daemon over runner, ready to Run.
func New(identity config.NodeIdentity, opts config.UpdateOptions, privateKeyPath string, runner reconcile.ComposeRunner, log *slog.Logger) *Daemon {
	if log == nil {
		log = slog.Default()
	}
	return &Daemon{
		Identity:       identity,
		Opts:           opts,
		PrivateKeyPath: privateKeyPath,
		Runner:         runner,
		Log:            log,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Run loops RunOnce every Opts.PollInterval seconds until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	interval := time.Duration(d.Opts.PollInterval) * time.Second
	for {
		if err := d.RunOnce(ctx); err != nil {
			var fatal *FatalError
			if ok := asFatal(err, &fatal); ok {
				return fatal
			}
			d.Log.Error("update cycle failed, will retry", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// RunOnce executes a single download/decrypt/reconcile iteration per
// spec.md §4.10.
func (d *Daemon) RunOnce(ctx context.Context) error {
	if err := d.download(ctx); err != nil {
		return fmt.Errorf("daemon: download: %w", err)
	}

	if err := bundle.Decrypt(d.Opts.EncryptedFilePath, d.Opts.DecryptedFilePath, d.PrivateKeyPath); err != nil {
		return fmt.Errorf("daemon: decrypt: %w", err)
	}

	incoming, err := catalog.Load(d.Opts.DecryptedFilePath)
	if err != nil {
		return fmt.Errorf("daemon: loading decrypted catalog: %w", err)
	}
	if incoming.Version != d.Identity.Version {
		return &FatalError{Reason: fmt.Sprintf("catalog version %q does not match node version %q", incoming.Version, d.Identity.Version)}
	}

	if err := catalog.EnsurePlaceholder(d.Opts.ReferenceFilePath); err != nil {
		return fmt.Errorf("daemon: ensuring reference placeholder: %w", err)
	}
	reference, err := catalog.Load(d.Opts.ReferenceFilePath)
	if err != nil {
		return fmt.Errorf("daemon: loading reference catalog: %w", err)
	}

	id := catalog.NodeIdentity{
		Version:     d.Identity.Version,
		Client:      d.Identity.Client,
		Environment: d.Identity.Environment,
		Solution:    d.Identity.Solution,
	}
	reconcile.New(d.Runner, d.Log).Reconcile(ctx, reference, incoming, id)

	if err := catalog.Replace(d.Opts.ReferenceFilePath, incoming); err != nil {
		return fmt.Errorf("daemon: writing reference catalog: %w", err)
	}
	return nil
}

// download fetches Opts.RemoteURL into Opts.EncryptedFilePath.
func (d *Daemon) download(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.Opts.RemoteURL, nil)
	if err != nil {
		return err
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	out, err := os.Create(d.Opts.EncryptedFilePath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", d.Opts.EncryptedFilePath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("writing %s: %w", d.Opts.EncryptedFilePath, err)
	}
	return nil
}

func asFatal(err error, target **FatalError) bool {
	f, ok := err.(*FatalError)
	if ok {
		*target = f
	}
	return ok
}
