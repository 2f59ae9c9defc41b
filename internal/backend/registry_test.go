package backend

import (
	"context"
	"testing"

	"github.com/relayforge/relay/internal/core"
	"github.com/relayforge/relay/internal/logging"
)

// fakeBackend records lifecycle calls for registry tests.
type fakeBackend struct {
	name       string
	configured core.BackendConfig
	available  bool
	callbacks  int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Configure(cfg core.BackendConfig) error {
	f.configured = cfg
	return nil
}

func (f *fakeBackend) Initialize(context.Context) error { return nil }

func (f *fakeBackend) IsAvailable(context.Context) bool { return f.available }

func (f *fakeBackend) Cleanup() error { return nil }
func (f *fakeBackend) OnProgress(core.ProgressCallback) func() {
	f.callbacks++
	return func() {}
}
func (f *fakeBackend) Execute(context.Context, core.ToolCallRequest) (*core.ToolCallResult, error) {
	return &core.ToolCallResult{Status: core.StatusCompleted}, nil
}

func TestRegistry_BuiltinScript(t *testing.T) {
	r := NewRegistry(logging.NewNop())
	if !r.Has("script") {
		t.Error("registry should have the script factory")
	}
	list := r.List()
	if len(list) != 1 || list[0] != "script" {
		t.Errorf("List() = %v, want [script]", list)
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Get("missing")
	if err == nil {
		t.Fatal("Get(missing) error = nil")
	}
	if !core.IsCategory(err, core.ErrCatNotFound) {
		t.Errorf("category = %s, want not_found", core.GetCategory(err))
	}
}

func TestRegistry_GetConfiguresAndCaches(t *testing.T) {
	r := NewRegistry(nil)
	fake := &fakeBackend{name: "fake"}
	r.RegisterFactory("fake", func(*logging.Logger) core.Backend { return fake })
	r.Configure("fake", core.BackendConfig{ScriptsDir: "/scripts"})

	b1, err := r.Get("fake")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if fake.configured.ScriptsDir != "/scripts" {
		t.Errorf("configured.ScriptsDir = %q", fake.configured.ScriptsDir)
	}

	b2, err := r.Get("fake")
	if err != nil {
		t.Fatal(err)
	}
	if b1 != b2 {
		t.Error("Get() should return the cached instance")
	}
}

func TestRegistry_ReconfigureDropsCache(t *testing.T) {
	r := NewRegistry(nil)
	created := 0
	r.RegisterFactory("fake", func(*logging.Logger) core.Backend {
		created++
		return &fakeBackend{name: "fake"}
	})
	r.Configure("fake", core.BackendConfig{ScriptsDir: "/a"})
	if _, err := r.Get("fake"); err != nil {
		t.Fatal(err)
	}
	r.Configure("fake", core.BackendConfig{ScriptsDir: "/b"})
	if _, err := r.Get("fake"); err != nil {
		t.Fatal(err)
	}
	if created != 2 {
		t.Errorf("factory called %d times, want 2 after reconfigure", created)
	}
}

func TestRegistry_ProgressCallbackOnNewBackends(t *testing.T) {
	r := NewRegistry(nil)
	fake := &fakeBackend{name: "fake"}
	r.RegisterFactory("fake", func(*logging.Logger) core.Backend { return fake })
	r.SetProgressCallback(func(core.ProgressEvent) {})

	if _, err := r.Get("fake"); err != nil {
		t.Fatal(err)
	}
	if fake.callbacks != 1 {
		t.Errorf("callbacks = %d, want subscription on creation", fake.callbacks)
	}
}

func TestRegistry_ProgressCallbackOnExistingBackends(t *testing.T) {
	r := NewRegistry(nil)
	fake := &fakeBackend{name: "fake"}
	r.RegisterFactory("fake", func(*logging.Logger) core.Backend { return fake })
	if _, err := r.Get("fake"); err != nil {
		t.Fatal(err)
	}
	r.SetProgressCallback(func(core.ProgressEvent) {})
	if fake.callbacks != 1 {
		t.Errorf("callbacks = %d, want subscription on existing instance", fake.callbacks)
	}
}

func TestRegistry_Available(t *testing.T) {
	r := NewRegistry(nil)
	up := &fakeBackend{name: "up", available: true}
	down := &fakeBackend{name: "down", available: false}
	r.RegisterFactory("up", func(*logging.Logger) core.Backend { return up })
	r.RegisterFactory("down", func(*logging.Logger) core.Backend { return down })
	r.Configure("up", core.BackendConfig{})
	r.Configure("down", core.BackendConfig{})

	avail := r.Available(context.Background())
	if len(avail) != 1 || avail[0] != "up" {
		t.Errorf("Available() = %v, want [up]", avail)
	}
}
