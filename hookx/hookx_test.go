package hookx

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.eggybyte.com/servex/core/errors"
	"go.eggybyte.com/servex/testingx"
)

// recorder tracks hook completion order.
type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, name)
}

func (r *recorder) indexOf(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.order {
		if n == name {
			return i
		}
	}
	return -1
}

func (r *recorder) hook(name string) Action {
	return func(ctx context.Context) error {
		r.record(name)
		return nil
	}
}

func TestRunAllEmptyGraph(t *testing.T) {
	exec := New()
	if err := exec.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll() on empty graph = %v, want nil", err)
	}
}

func TestRunAllDependencyOrder(t *testing.T) {
	rec := &recorder{}
	exec := New()

	if err := exec.Register(rec.hook("cache"), WithName("cache")); err != nil {
		t.Fatalf("register cache: %v", err)
	}
	if err := exec.Register(rec.hook("database"), WithName("database"), WithDependencies("cache")); err != nil {
		t.Fatalf("register database: %v", err)
	}

	if err := exec.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll() = %v", err)
	}

	cachePos := rec.indexOf("cache")
	dbPos := rec.indexOf("database")
	if cachePos == -1 || dbPos == -1 {
		t.Fatalf("missing hooks in order: %v", rec.order)
	}
	if cachePos > dbPos {
		t.Errorf("cache ran after database: %v", rec.order)
	}
}

func TestRunAllUnrelatedHooks(t *testing.T) {
	rec := &recorder{}
	exec := New()

	if err := exec.Register(rec.hook("alpha"), WithName("alpha")); err != nil {
		t.Fatalf("register alpha: %v", err)
	}
	if err := exec.Register(rec.hook("beta"), WithName("beta")); err != nil {
		t.Fatalf("register beta: %v", err)
	}

	if err := exec.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll() = %v", err)
	}

	if rec.indexOf("alpha") == -1 || rec.indexOf("beta") == -1 {
		t.Errorf("both hooks must complete, got: %v", rec.order)
	}
}

func TestRunAllTransitiveOrder(t *testing.T) {
	rec := &recorder{}
	exec := New()

	exec.Register(rec.hook("a"), WithName("a"))
	exec.Register(rec.hook("b"), WithName("b"), WithDependencies("a"))
	exec.Register(rec.hook("c"), WithName("c"), WithDependencies("b"))
	exec.Register(rec.hook("d"), WithName("d"), WithDependencies("a"))

	if err := exec.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll() = %v", err)
	}

	if !(rec.indexOf("a") < rec.indexOf("b") && rec.indexOf("b") < rec.indexOf("c")) {
		t.Errorf("transitive order violated: %v", rec.order)
	}
	if rec.indexOf("a") > rec.indexOf("d") {
		t.Errorf("d must run after a: %v", rec.order)
	}
}

func TestRegisterCycleDetection(t *testing.T) {
	rec := &recorder{}
	exec := New()

	if err := exec.Register(rec.hook("a"), WithName("a"), WithDependencies("b")); err != nil {
		t.Fatalf("register a: %v", err)
	}

	err := exec.Register(rec.hook("b"), WithName("b"), WithDependencies("a"))
	testingx.AssertError(t, err, errors.CodeCycleDetected)

	// The rejected registration must leave no trace: b stays a placeholder
	// with no action and no dependency on a.
	if err := exec.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll() after rejected registration = %v", err)
	}
	if rec.indexOf("b") != -1 {
		t.Errorf("rejected hook b must not run: %v", rec.order)
	}
	if rec.indexOf("a") == -1 {
		t.Errorf("hook a must still run: %v", rec.order)
	}
}

func TestRegisterSelfCycle(t *testing.T) {
	exec := New()
	err := exec.Register(func(ctx context.Context) error { return nil },
		WithName("self"), WithDependencies("self"))
	testingx.AssertError(t, err, errors.CodeCycleDetected)
	if exec.Len() != 0 {
		t.Errorf("graph must be unchanged after rejected registration, got %d nodes", exec.Len())
	}
}

func TestRegisterDiamondIsNotCycle(t *testing.T) {
	// Two branches sharing a dependency must not be flagged as a cycle.
	exec := New()
	noop := func(ctx context.Context) error { return nil }

	exec.Register(noop, WithName("base"))
	exec.Register(noop, WithName("left"), WithDependencies("base"))
	exec.Register(noop, WithName("right"), WithDependencies("base"))
	if err := exec.Register(noop, WithName("top"), WithDependencies("left", "right")); err != nil {
		t.Fatalf("diamond graph rejected: %v", err)
	}

	if err := exec.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll() = %v", err)
	}
}

func TestRegisterAnonymousHooks(t *testing.T) {
	var ran atomic.Int32
	exec := New()

	for i := 0; i < 3; i++ {
		if err := exec.Register(func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("register anonymous hook: %v", err)
		}
	}

	if err := exec.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll() = %v", err)
	}
	if ran.Load() != 3 {
		t.Errorf("ran %d anonymous hooks, want 3", ran.Load())
	}
}

func TestRegisterAnonymousWithDependenciesRejected(t *testing.T) {
	exec := New()
	err := exec.Register(func(ctx context.Context) error { return nil }, WithDependencies("cache"))
	testingx.AssertError(t, err, errors.CodeInvalidArgument)
}

func TestRunAllSameNameActionsAllRun(t *testing.T) {
	var ran atomic.Int32
	exec := New()

	for i := 0; i < 4; i++ {
		exec.Register(func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}, WithName("shared"))
	}

	if err := exec.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll() = %v", err)
	}
	if ran.Load() != 4 {
		t.Errorf("ran %d actions under shared name, want 4", ran.Load())
	}
}

func TestRunAllReusable(t *testing.T) {
	var ran atomic.Int32
	exec := New()
	exec.Register(func(ctx context.Context) error {
		ran.Add(1)
		return nil
	}, WithName("counted"))

	for i := 0; i < 2; i++ {
		if err := exec.RunAll(context.Background()); err != nil {
			t.Fatalf("RunAll() call %d = %v", i+1, err)
		}
	}
	if ran.Load() != 2 {
		t.Errorf("ran %d times across two invocations, want 2", ran.Load())
	}
}

func TestRunAllFailureDoesNotStopBranches(t *testing.T) {
	rec := &recorder{}
	exec := New()

	exec.Register(func(ctx context.Context) error {
		return fmt.Errorf("flush failed")
	}, WithName("cache"))
	exec.Register(rec.hook("database"), WithName("database"), WithDependencies("cache"))
	exec.Register(rec.hook("unrelated"), WithName("unrelated"))

	err := exec.RunAll(context.Background())
	testingx.AssertError(t, err, errors.CodeHookFailure)

	// Completion, not success, is the ordering token.
	if rec.indexOf("database") == -1 {
		t.Errorf("dependent must still run after dependency failure: %v", rec.order)
	}
	if rec.indexOf("unrelated") == -1 {
		t.Errorf("unrelated branch must still run: %v", rec.order)
	}
}

func TestRunAllPlaceholderDependency(t *testing.T) {
	rec := &recorder{}
	exec := New()

	// Depend on a name that never gains an action.
	if err := exec.Register(rec.hook("late"), WithName("late"), WithDependencies("never-registered")); err != nil {
		t.Fatalf("register with forward dependency: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- exec.RunAll(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunAll() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunAll() blocked on placeholder dependency")
	}

	if rec.indexOf("late") == -1 {
		t.Errorf("hook with placeholder dependency must run: %v", rec.order)
	}
}
