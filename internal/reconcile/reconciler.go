// Package reconcile implements the pure Node-side diff engine: given a
// stored reference catalog and a freshly obtained incoming catalog, compute
// and execute the stack-level operations required to converge the host.
package reconcile

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/theinhumaneme/hikari/internal/catalog"
)

// ComposeRunner is the subset of internal/compose.Runner the reconciler
// drives. Kept as an interface here so reconciliation logic can be tested
// without spawning real subprocesses.
type ComposeRunner interface {
	Materialize(homeDir, filename string, spec catalog.ComposeSpec) (string, error)
	Pull(ctx context.Context, path string) bool
	Up(ctx context.Context, path string) bool
	Down(ctx context.Context, path string) bool
}

// Reconciler drives a ComposeRunner from catalog diffs. It holds no
// reconciliation state between calls — Reconcile is pure with respect to
// its inputs aside from the runner's side effects.
type Reconciler struct {
	Runner ComposeRunner
	Log    *slog.Logger
}

// New creates a Reconciler.
func New(runner ComposeRunner, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{Runner: runner, Log: log}
}

// Reconcile runs the algorithm of spec.md §4.8 against this node's identity.
// Callers must perform the version check themselves before invoking this —
// per §4.8 step 1, a version mismatch never enters reconciliation proper.
func (r *Reconciler) Reconcile(ctx context.Context, reference, incoming *catalog.HikariCatalog, id catalog.NodeIdentity) {
	// Pass A: over reference.deploy_configs.
	for name, refDeploy := range reference.DeployConfigs {
		if !refDeploy.MatchesTarget(id.Client, id.Environment, id.Solution) {
			continue
		}
		incDeploy, present := incoming.DeployConfigs[name]
		switch {
		case !present:
			r.log("deployment removed", name)
			r.downAll(ctx, refDeploy.DeployStacks)
		case !incDeploy.MatchesTarget(refDeploy.Client, refDeploy.Environment, refDeploy.Solution):
			r.log("deployment moved off node", name)
			r.downAll(ctx, refDeploy.DeployStacks)
		default:
			r.compareStacks(ctx, name, refDeploy, incDeploy)
		}
	}

	// Pass B: over incoming.deploy_configs.
	for name, incDeploy := range incoming.DeployConfigs {
		if !incDeploy.MatchesTarget(id.Client, id.Environment, id.Solution) {
			continue
		}
		refDeploy, present := reference.DeployConfigs[name]
		switch {
		case !present:
			r.log("deployment added", name)
			r.startAll(ctx, incDeploy.DeployStacks)
		case !refDeploy.MatchesTarget(id.Client, id.Environment, id.Solution):
			r.log("deployment moved onto node", name)
			r.startAll(ctx, incDeploy.DeployStacks)
		default:
			// Pass A already handled this name.
		}
	}
}

// compareStacks implements §4.8 step 4: set difference on stack_name plus
// per-stack structural equality, stops before any start within this
// deployment.
func (r *Reconciler) compareStacks(ctx context.Context, deployName string, ref, inc catalog.Deployment) {
	refByName := make(map[string]catalog.Stack, len(ref.DeployStacks))
	for _, s := range ref.DeployStacks {
		refByName[s.StackName] = s
	}
	incByName := make(map[string]catalog.Stack, len(inc.DeployStacks))
	for _, s := range inc.DeployStacks {
		incByName[s.StackName] = s
	}

	for name, refStack := range refByName {
		if _, present := incByName[name]; !present {
			r.log("stack removed", deployName+"/"+name)
			r.down(ctx, refStack)
		}
	}

	for name, incStack := range incByName {
		refStack, present := refByName[name]
		switch {
		case !present:
			r.log("stack added", deployName+"/"+name)
			r.start(ctx, incStack)
		case reflect.DeepEqual(refStack, incStack):
			// no-op: content unchanged
		default:
			r.log("stack modified", deployName+"/"+name)
			if r.down(ctx, refStack) {
				r.start(ctx, incStack)
			} else {
				r.Log.Error("skipping start after failed stop", "deployment", deployName, "stack", name)
			}
		}
	}
}

func (r *Reconciler) downAll(ctx context.Context, stacks []catalog.Stack) {
	for _, s := range stacks {
		r.down(ctx, s)
	}
}

func (r *Reconciler) startAll(ctx context.Context, stacks []catalog.Stack) {
	for _, s := range stacks {
		r.start(ctx, s)
	}
}

// start materializes the compose spec, pulls images, then brings the stack
// up; a failed pull skips the up per §4.8 step 5.
func (r *Reconciler) start(ctx context.Context, s catalog.Stack) bool {
	path, err := r.Runner.Materialize(s.HomeDir, s.Filename, s.ComposeSpec)
	if err != nil {
		r.Log.Error("materialize failed", "stack", s.StackName, "error", err)
		return false
	}
	if !r.Runner.Pull(ctx, path) {
		r.Log.Error("pull failed, skipping up", "stack", s.StackName)
		return false
	}
	return r.Runner.Up(ctx, path)
}

// down invokes compose down against the stack's existing file without
// re-materializing it.
func (r *Reconciler) down(ctx context.Context, s catalog.Stack) bool {
	return r.Runner.Down(ctx, s.Path())
}

func (r *Reconciler) log(msg, detail string) {
	r.Log.Info(msg, "target", detail)
}
