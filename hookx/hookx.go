// Package hookx provides dependency-ordered execution of shutdown hooks.
//
// Overview:
//   - Responsibility: Store named shutdown actions with declared dependencies and run them in dependency order
//   - Key Types: Executor for registration and execution, Action for hook functions
//   - Concurrency Model: Registration is safe for concurrent use; RunAll calls must not overlap on one instance
//   - Error Semantics: Registration returns CYCLE_DETECTED on graph cycles with state rolled back; RunAll aggregates HOOK_FAILURE errors after all branches settle
//   - Performance Notes: Cycle detection is a depth-first traversal bounded by graph size; execution fans out one goroutine per name
//
// Usage:
//
//	exec := hookx.New(hookx.WithLogger(logger))
//	exec.Register(closeCache, hookx.WithName("cache"))
//	exec.Register(closeDatabase, hookx.WithName("database"), hookx.WithDependencies("cache"))
//	err := exec.RunAll(ctx)
package hookx

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"go.eggybyte.com/servex/core/errors"
	"go.eggybyte.com/servex/core/log"
)

// Action is a shutdown hook. Actions receive the shutdown context and should
// return promptly; they run exactly once per RunAll invocation.
type Action func(ctx context.Context) error

// Executor stores named shutdown actions with declared dependencies and runs
// them in dependency order. A zero-dependency executor runs everything
// concurrently.
type Executor struct {
	mu      sync.Mutex
	logger  log.Logger
	nodes   map[string]*node
	anonSeq int
}

// node is one entry in the dependency graph. Placeholder nodes (no actions)
// are created for dependencies named before they are registered; they
// complete trivially at run time.
type node struct {
	name    string
	actions []Action
	deps    map[string]struct{}
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger used for hook execution diagnostics.
func WithLogger(logger log.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// New creates an empty Executor.
func New(opts ...Option) *Executor {
	e := &Executor{
		logger: log.Nop(),
		nodes:  make(map[string]*node),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterOption configures a single registration.
type RegisterOption func(*registerConfig)

type registerConfig struct {
	name string
	deps []string
}

// WithName assigns a stable name to the hook so other hooks can depend on it.
// Hooks registered without a name get a generated unique name and never
// participate in dependency relations.
func WithName(name string) RegisterOption {
	return func(cfg *registerConfig) { cfg.name = name }
}

// WithDependencies declares names that must complete before this hook runs.
// Dependencies may name hooks that are not registered yet.
func WithDependencies(names ...string) RegisterOption {
	return func(cfg *registerConfig) { cfg.deps = append(cfg.deps, names...) }
}

// Register adds a shutdown action to the graph. Multiple actions may share one
// name; all of them run when that name executes. Dependencies are merged into
// the name's existing set and the reachable graph is re-checked for cycles.
// On a cycle the just-added dependencies are rolled back, the error carries
// CYCLE_DETECTED naming the offending node, and the executor is left exactly
// as it was before the call.
func (e *Executor) Register(action Action, opts ...RegisterOption) error {
	if action == nil {
		return errors.New(errors.CodeInvalidArgument, "hook action is required")
	}

	var cfg registerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.name == "" && len(cfg.deps) > 0 {
		return errors.New(errors.CodeInvalidArgument, "anonymous hooks cannot declare dependencies")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	name := cfg.name
	if name == "" {
		e.anonSeq++
		name = fmt.Sprintf("hook#%d", e.anonSeq)
	}

	n, existed := e.nodes[name]
	if !existed {
		n = &node{name: name, deps: make(map[string]struct{})}
		e.nodes[name] = n
	}

	var addedDeps []string
	var addedNodes []string
	for _, dep := range cfg.deps {
		if dep == "" {
			e.rollback(n, !existed, addedDeps, addedNodes)
			return errors.New(errors.CodeInvalidArgument, "dependency name cannot be empty")
		}
		if _, ok := n.deps[dep]; ok {
			continue
		}
		n.deps[dep] = struct{}{}
		addedDeps = append(addedDeps, dep)
		if _, ok := e.nodes[dep]; !ok {
			e.nodes[dep] = &node{name: dep, deps: make(map[string]struct{})}
			addedNodes = append(addedNodes, dep)
		}
	}

	if offender, found := e.findCycle(name, nil); found {
		e.rollback(n, !existed, addedDeps, addedNodes)
		return errors.Newf(errors.CodeCycleDetected, "hook dependency cycle through %q", offender)
	}

	n.actions = append(n.actions, action)
	e.logger.Debug("shutdown hook registered", log.Str("hook", name), log.Int("dependencies", len(n.deps)))
	return nil
}

// rollback restores the graph to its pre-registration shape.
func (e *Executor) rollback(n *node, nodeCreated bool, addedDeps, addedNodes []string) {
	for _, dep := range addedDeps {
		delete(n.deps, dep)
	}
	for _, name := range addedNodes {
		delete(e.nodes, name)
	}
	if nodeCreated {
		delete(e.nodes, n.name)
	}
}

// findCycle walks the graph reachable from name. Each recursive branch gets
// its own copy of the visited set so sibling branches sharing a dependency
// are not falsely flagged.
func (e *Executor) findCycle(name string, visited map[string]bool) (string, bool) {
	if visited[name] {
		return name, true
	}
	n, ok := e.nodes[name]
	if !ok {
		return "", false
	}
	for dep := range n.deps {
		branch := make(map[string]bool, len(visited)+1)
		for k := range visited {
			branch[k] = true
		}
		branch[name] = true
		if offender, found := e.findCycle(dep, branch); found {
			return offender, true
		}
	}
	return "", false
}

// RunAll executes every registered name exactly once, starting a name only
// after all of its transitive dependencies have completed. Unrelated names
// and actions sharing one name run concurrently. A failing action does not
// stop other branches; all branches settle and the aggregated error is
// returned. The per-run bookkeeping is local to each invocation, so the
// executor is reusable across repeated calls. Overlapping RunAll calls on one
// instance are not supported.
func (e *Executor) RunAll(ctx context.Context) error {
	e.mu.Lock()
	snapshot := make(map[string]*node, len(e.nodes))
	for name, n := range e.nodes {
		copied := &node{
			name:    n.name,
			actions: append([]Action(nil), n.actions...),
			deps:    make(map[string]struct{}, len(n.deps)),
		}
		for dep := range n.deps {
			copied.deps[dep] = struct{}{}
		}
		snapshot[name] = copied
	}
	e.mu.Unlock()

	if len(snapshot) == 0 {
		return nil
	}

	e.logger.Debug("running shutdown hooks", log.Int("hooks", len(snapshot)))

	done := make(map[string]chan struct{}, len(snapshot))
	for name := range snapshot {
		done[name] = make(chan struct{})
	}

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var errs []error

	for name, n := range snapshot {
		wg.Add(1)
		go func(name string, n *node) {
			defer wg.Done()
			defer close(done[name])

			// Wait for completion of every dependency. Completion, not
			// success, is the ordering token: a failed dependency does not
			// stop its dependents.
			for dep := range n.deps {
				ch, ok := done[dep]
				if !ok {
					continue
				}
				select {
				case <-ch:
				case <-ctx.Done():
					errMu.Lock()
					errs = append(errs, errors.Wrapf(errors.CodeHookFailure, "hookx.RunAll", ctx.Err(), "hook %q abandoned", name))
					errMu.Unlock()
					return
				}
			}

			if len(n.actions) == 0 {
				return // Placeholder node, completes trivially.
			}

			var group errgroup.Group
			for _, action := range n.actions {
				group.Go(func() error {
					return action(ctx)
				})
			}
			if err := group.Wait(); err != nil {
				e.logger.Error(err, "shutdown hook failed", log.Str("hook", name))
				errMu.Lock()
				errs = append(errs, errors.Wrapf(errors.CodeHookFailure, "hookx.RunAll", err, "hook %q failed", name))
				errMu.Unlock()
			}
		}(name, n)
	}

	wg.Wait()
	return errors.Join(errs...)
}

// Names returns the registered hook names in sorted order, including
// placeholder names that have not gained actions yet.
func (e *Executor) Names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]string, 0, len(e.nodes))
	for name := range e.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered names.
func (e *Executor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.nodes)
}
