package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/composer/internal/command"
	"github.com/dshills/composer/internal/config"
	"github.com/dshills/composer/internal/layout"
	"github.com/dshills/composer/internal/menu"
	"github.com/dshills/composer/internal/plugin"
	"github.com/dshills/composer/internal/plugin/lua"
)

// recorder collects lifecycle calls across plugins in call order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakePlugin struct {
	id          string
	policy      plugin.ActivationPolicy
	contribs    plugin.Contributions
	initCtx     any
	initErr     error
	activateErr error
	rec         *recorder

	gotConfig     map[string]any
	activatedWith *plugin.AppContext
	activations   int
	ctxAtActivate any
}

func (p *fakePlugin) ID() string { return p.id }

func (p *fakePlugin) Init(cfg map[string]any) (any, error) {
	p.rec.add(p.id + ":init")
	p.gotConfig = cfg
	return p.initCtx, p.initErr
}

func (p *fakePlugin) Contributions() plugin.Contributions {
	p.rec.add(p.id + ":contributions")
	return p.contribs
}

func (p *fakePlugin) ActivationPolicy() plugin.ActivationPolicy { return p.policy }

func (p *fakePlugin) Activate(appCtx *plugin.AppContext) error {
	p.rec.add(p.id + ":activate")
	p.activations++
	p.activatedWith = appCtx
	p.ctxAtActivate, _ = appCtx.PluginContext(p.id)
	return p.activateErr
}

func newTestApp(t *testing.T, data map[string]any, opts ...Option) *Application {
	t.Helper()
	opts = append([]Option{WithLogger(NullLogger)}, opts...)
	app, err := New(config.New(data), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return app
}

func pluginIDs(app *Application) []string {
	var ids []string
	for _, p := range app.Plugins() {
		ids = append(ids, p.ID())
	}
	return ids
}

func TestNew_BuiltinsOnly(t *testing.T) {
	cases := map[string]map[string]any{
		"nil config":     nil,
		"absent plugins": {"app": map[string]any{"name": "composer"}},
		"not a sequence": {"app": map[string]any{"plugins": 42}},
		"dangling path":  {"app": map[string]any{"plugins": "extra.list"}},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			app := newTestApp(t, data)
			want := []string{CommandPluginID, LayoutPluginID, MenuPluginID}
			if diff := cmp.Diff(want, pluginIDs(app)); diff != "" {
				t.Errorf("plugins mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNew_NilConfig(t *testing.T) {
	app, err := New(nil, WithLogger(NullLogger))
	if err != nil {
		t.Fatalf("New(nil): %v", err)
	}
	if app.Config() == nil {
		t.Error("Config() should be an empty snapshot, not nil")
	}
}

func TestNew_BuiltinContexts(t *testing.T) {
	app := newTestApp(t, nil)

	cmds, ok := plugin.ContextAs[*command.Registry](app.Context(), CommandPluginID)
	if !ok || cmds != app.Commands() {
		t.Error("command context should be the command registry")
	}
	layouts, ok := plugin.ContextAs[*layout.Registry](app.Context(), LayoutPluginID)
	if !ok || layouts != app.Layouts() {
		t.Error("layout context should be the layout registry")
	}
	menus, ok := plugin.ContextAs[*menu.Registry](app.Context(), MenuPluginID)
	if !ok || menus != app.Menus() {
		t.Error("menu context should be the menu registry")
	}
	for _, id := range []string{CommandPluginID, LayoutPluginID, MenuPluginID} {
		if s := app.PluginState(id); s != plugin.StateActive {
			t.Errorf("PluginState(%s) = %v, want active", id, s)
		}
	}
}

func TestNew_PluginOrder(t *testing.T) {
	a := &fakePlugin{id: "a", policy: plugin.Startup()}
	b := &fakePlugin{id: "b", policy: plugin.Startup()}

	app := newTestApp(t, map[string]any{
		"app": map[string]any{"plugins": []any{a, b}},
	})

	want := []string{"command", "layout", "menu", "a", "b"}
	if diff := cmp.Diff(want, pluginIDs(app)); diff != "" {
		t.Errorf("plugins mismatch (-want +got):\n%s", diff)
	}
	if got := app.Plugins()[3]; got != a {
		t.Error("configured plugin value should be loaded as is")
	}
}

func TestNew_PluginListPath(t *testing.T) {
	a := &fakePlugin{id: "a", policy: plugin.Startup()}

	app := newTestApp(t, map[string]any{
		"app":   map[string]any{"plugins": "extra.list"},
		"extra": map[string]any{"list": []any{a}},
	})

	if diff := cmp.Diff([]string{"command", "layout", "menu", "a"}, pluginIDs(app)); diff != "" {
		t.Errorf("plugins mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_TypedPluginSlice(t *testing.T) {
	a := &fakePlugin{id: "a", policy: plugin.Startup()}

	app := newTestApp(t, map[string]any{
		"app": map[string]any{"plugins": []plugin.Plugin{a}},
	})
	if a.activations != 1 {
		t.Errorf("activations = %d, want 1", a.activations)
	}
	if len(app.Plugins()) != 4 {
		t.Errorf("len(Plugins()) = %d, want 4", len(app.Plugins()))
	}
}

func TestNew_InvalidEntryAborts(t *testing.T) {
	after := &fakePlugin{id: "after", policy: plugin.Startup()}

	_, err := New(config.New(map[string]any{
		"app": map[string]any{"plugins": []any{42, after}},
	}), WithLogger(NullLogger))

	if !errors.Is(err, plugin.ErrInvalidPlugin) {
		t.Fatalf("New error = %v, want ErrInvalidPlugin", err)
	}
	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.Target != config.PathAppPlugins {
		t.Errorf("error should name the plugin list, got %v", err)
	}
	if after.activations != 0 || after.gotConfig != nil {
		t.Error("entries after the invalid one must not be loaded")
	}
}

func TestNew_CatalogEntries(t *testing.T) {
	built := 0
	catalog := plugin.NewCatalog()
	err := catalog.Register("static", func(d plugin.Descriptor) (plugin.Plugin, error) {
		built++
		id := d.ID
		if id == "" {
			id = "static"
		}
		return &fakePlugin{id: id, policy: plugin.Startup(), initCtx: d.Options}, nil
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	app := newTestApp(t, map[string]any{
		"app": map[string]any{"plugins": []any{
			"static",
			map[string]any{"kind": "static", "id": "custom", "depth": 3},
		}},
	}, WithCatalog(catalog))

	if built != 2 {
		t.Errorf("factory calls = %d, want 2", built)
	}
	if diff := cmp.Diff([]string{"command", "layout", "menu", "static", "custom"}, pluginIDs(app)); diff != "" {
		t.Errorf("plugins mismatch (-want +got):\n%s", diff)
	}
	ctx, _ := app.Context().PluginContext("custom")
	if diff := cmp.Diff(map[string]any{"depth": 3}, ctx); diff != "" {
		t.Errorf("custom context mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(config.New(map[string]any{
		"app": map[string]any{"plugins": []any{"nope"}},
	}), WithLogger(NullLogger))

	if !errors.Is(err, plugin.ErrUnknownKind) {
		t.Errorf("New error = %v, want ErrUnknownKind", err)
	}
}

func TestConfigIsReadOnly(t *testing.T) {
	data := map[string]any{
		"app": map[string]any{"name": "composer"},
	}
	app := newTestApp(t, data)

	// Mutating the source after construction is not visible.
	data["app"].(map[string]any)["name"] = "changed"
	data["extra"] = true

	cfg := app.Config()
	if name, _ := cfg.GetString("app.name"); name != "composer" {
		t.Errorf("app.name = %q, want composer", name)
	}
	if cfg.Has("extra") {
		t.Error("new top-level key leaked into the snapshot")
	}
	if err := cfg.Set("app.name", "x"); !errors.Is(err, config.ErrReadOnly) {
		t.Errorf("Set error = %v, want ErrReadOnly", err)
	}
	if err := cfg.Delete("app"); !errors.Is(err, config.ErrReadOnly) {
		t.Errorf("Delete error = %v, want ErrReadOnly", err)
	}

	// Values handed out are copies.
	v, _ := cfg.Get("app")
	v.(map[string]any)["name"] = "mutated"
	if name, _ := cfg.GetString("app.name"); name != "composer" {
		t.Errorf("app.name = %q after mutating a Get result", name)
	}
}

func TestLoadPlugin_ContextIsLatestInit(t *testing.T) {
	app := newTestApp(t, nil)

	first := &fakePlugin{id: "dup", policy: plugin.Startup(), initCtx: "first"}
	second := &fakePlugin{id: "dup", policy: plugin.Startup(), initCtx: "second"}

	if err := app.LoadPlugin(first); err != nil {
		t.Fatalf("LoadPlugin(first): %v", err)
	}
	if got, _ := app.Context().PluginContext("dup"); got != "first" {
		t.Errorf("context = %v, want first", got)
	}
	if err := app.LoadPlugin(second); err != nil {
		t.Fatalf("LoadPlugin(second): %v", err)
	}
	if got, _ := app.Context().PluginContext("dup"); got != "second" {
		t.Errorf("context = %v, want second", got)
	}
	if n := len(app.Plugins()); n != 5 {
		t.Errorf("len(Plugins()) = %d, want 5 (duplicates kept)", n)
	}
}

func TestLoadPlugin_PluginConfig(t *testing.T) {
	withCfg := &fakePlugin{id: "outline", policy: plugin.Startup()}
	without := &fakePlugin{id: "bare", policy: plugin.Startup()}

	newTestApp(t, map[string]any{
		"app": map[string]any{"plugins": []any{withCfg, without}},
		"pluginConfigs": map[string]any{
			"outline": map[string]any{"depth": 2},
		},
	})

	if diff := cmp.Diff(map[string]any{"depth": 2}, withCfg.gotConfig); diff != "" {
		t.Errorf("outline config mismatch (-want +got):\n%s", diff)
	}
	if without.gotConfig == nil || len(without.gotConfig) != 0 {
		t.Errorf("bare config = %#v, want empty map", without.gotConfig)
	}
}

func TestLoadPlugin_StartupOrder(t *testing.T) {
	rec := &recorder{}
	app := newTestApp(t, nil)
	p := &fakePlugin{id: "p", policy: plugin.Startup(), initCtx: "ctx", rec: rec}

	if err := app.LoadPlugin(p); err != nil {
		t.Fatalf("LoadPlugin: %v", err)
	}

	want := []string{"p:init", "p:contributions", "p:activate"}
	if diff := cmp.Diff(want, rec.list()); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
	if p.activations != 1 {
		t.Errorf("activations = %d, want 1", p.activations)
	}
	if p.activatedWith != app.Context() {
		t.Error("Activate should receive the shared application context")
	}
	if p.ctxAtActivate != "ctx" {
		t.Errorf("context at activation = %v, want ctx", p.ctxAtActivate)
	}
	if s := app.PluginState("p"); s != plugin.StateActive {
		t.Errorf("PluginState = %v, want active", s)
	}
}

func TestLoadPlugin_DeferredNotActivated(t *testing.T) {
	app := newTestApp(t, nil)
	onCmd := &fakePlugin{id: "oc", policy: plugin.ActivationPolicy{Type: plugin.OnCommand, Commands: []string{"x"}}}
	onDemand := &fakePlugin{id: "od", policy: plugin.ActivationPolicy{Type: plugin.OnDemand}}

	for _, p := range []*fakePlugin{onCmd, onDemand} {
		if err := app.LoadPlugin(p); err != nil {
			t.Fatalf("LoadPlugin(%s): %v", p.id, err)
		}
		if p.activations != 0 {
			t.Errorf("%s activated during load", p.id)
		}
		if s := app.PluginState(p.id); s != plugin.StateLoaded {
			t.Errorf("PluginState(%s) = %v, want loaded", p.id, s)
		}
	}
	if err := app.Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if onCmd.activations != 0 || onDemand.activations != 0 {
		t.Error("Render must not activate deferred plugins")
	}
}

func TestLoadPlugin_InvalidHasNoSideEffects(t *testing.T) {
	app := newTestApp(t, nil)
	var typedNil *fakePlugin

	invalid := map[string]plugin.Plugin{
		"nil":       nil,
		"typed nil": typedNil,
		"blank id":  &fakePlugin{id: "  "},
	}
	for name, p := range invalid {
		t.Run(name, func(t *testing.T) {
			plugins := len(app.Plugins())
			contexts := app.Context().Len()
			commands := app.Commands().Count()

			err := app.LoadPlugin(p)
			if !errors.Is(err, plugin.ErrInvalidPlugin) {
				t.Fatalf("LoadPlugin error = %v, want ErrInvalidPlugin", err)
			}
			if len(app.Plugins()) != plugins || app.Context().Len() != contexts || app.Commands().Count() != commands {
				t.Error("invalid plugin changed application state")
			}
		})
	}
}

func TestLoadPlugin_Contributions(t *testing.T) {
	app := newTestApp(t, nil)

	var got []command.Call
	h := func(_ context.Context, call command.Call) error {
		got = append(got, call)
		return nil
	}
	p := &fakePlugin{
		id:     "outline",
		policy: plugin.Startup(),
		contribs: plugin.Contributions{
			Commands: []command.Command{{ID: "outline.show", Title: "Show Outline"}},
			Handlers: []plugin.HandlerDefinition{{CommandID: "outline.show", Handler: h, Context: "ctx"}},
			Menus:    []menu.Item{{Label: "Outline", Command: "outline.show", Parent: "view"}},
			Regions:  []layout.Region{{ID: "sidebar", Placement: layout.PlacementLeft}},
			Views:    []layout.View{{ID: "outline.tree", Region: "sidebar"}},
		},
	}
	if err := app.LoadPlugin(p); err != nil {
		t.Fatalf("LoadPlugin: %v", err)
	}

	if !app.Commands().Has("outline.show") {
		t.Fatal("command not registered")
	}
	if diff := cmp.Diff([]any{"ctx"}, app.Commands().HandlerContexts("outline.show")); diff != "" {
		t.Errorf("handler contexts mismatch (-want +got):\n%s", diff)
	}
	if err := app.Execute(context.Background(), "outline.show", nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(got) != 1 || got[0].Context != "ctx" {
		t.Errorf("handler calls = %+v", got)
	}
	if len(app.Menus().ForCommand("outline.show")) != 1 {
		t.Error("menu item not registered")
	}
	if _, ok := app.Layouts().Region("sidebar"); !ok {
		t.Error("region not registered")
	}
	if views := app.Layouts().Views("sidebar"); len(views) != 1 {
		t.Errorf("Views(sidebar) = %v", views)
	}
}

func TestLoadPlugin_DuplicateCommand(t *testing.T) {
	app := newTestApp(t, nil)
	contribs := plugin.Contributions{Commands: []command.Command{{ID: "file.save"}}}

	if err := app.LoadPlugin(&fakePlugin{id: "a", policy: plugin.Startup(), contribs: contribs}); err != nil {
		t.Fatalf("LoadPlugin(a): %v", err)
	}
	b := &fakePlugin{id: "b", policy: plugin.Startup(), contribs: contribs}
	err := app.LoadPlugin(b)
	if !errors.Is(err, command.ErrDuplicateCommand) {
		t.Fatalf("error = %v, want ErrDuplicateCommand", err)
	}
	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.Context != "b" {
		t.Errorf("error should name plugin b: %v", err)
	}
	if b.activations != 0 {
		t.Error("plugin with failed contributions must not be activated")
	}
	if app.PluginState("b") != plugin.StateError || app.PluginError("b") == nil {
		t.Errorf("PluginState(b) = %v", app.PluginState("b"))
	}
}

func TestLoadPlugin_PartialContributionsStay(t *testing.T) {
	app := newTestApp(t, nil)
	if err := app.LoadPlugin(&fakePlugin{
		id:       "a",
		policy:   plugin.Startup(),
		contribs: plugin.Contributions{Commands: []command.Command{{ID: "file.save"}}},
	}); err != nil {
		t.Fatalf("LoadPlugin(a): %v", err)
	}

	b := &fakePlugin{
		id:     "b",
		policy: plugin.Startup(),
		contribs: plugin.Contributions{
			Commands: []command.Command{{ID: "file.open"}, {ID: "file.save"}, {ID: "file.close"}},
			Menus:    []menu.Item{{Label: "Open", Command: "file.open"}},
		},
	}
	if err := app.LoadPlugin(b); !errors.Is(err, command.ErrDuplicateCommand) {
		t.Fatalf("error = %v, want ErrDuplicateCommand", err)
	}

	if !app.Commands().Has("file.open") {
		t.Error("command registered before the rejection was rolled back")
	}
	if app.Commands().Has("file.close") {
		t.Error("command after the rejection was registered")
	}
	if n := len(app.Menus().ForCommand("file.open")); n != 0 {
		t.Errorf("menus registered after a command rejection: %d", n)
	}
	if app.PluginState("b") != plugin.StateError {
		t.Errorf("PluginState(b) = %v, want error", app.PluginState("b"))
	}
}

func TestLoadPlugin_InitError(t *testing.T) {
	app := newTestApp(t, nil)
	cause := errors.New("boom")
	p := &fakePlugin{id: "bad", policy: plugin.Startup(), initErr: cause}

	err := app.LoadPlugin(p)
	var initErr *InitError
	if !errors.As(err, &initErr) || initErr.Plugin != "bad" || !errors.Is(err, cause) {
		t.Fatalf("error = %v, want InitError wrapping boom", err)
	}
	if _, ok := app.Context().PluginContext("bad"); ok {
		t.Error("failed init must not store a context")
	}
	if p.activations != 0 {
		t.Error("failed init must not activate")
	}
}

func TestLoadPlugin_ActivateError(t *testing.T) {
	app := newTestApp(t, nil)
	cause := errors.New("no display")
	p := &fakePlugin{id: "bad", policy: plugin.Startup(), activateErr: cause}

	err := app.LoadPlugin(p)
	if !errors.Is(err, cause) {
		t.Fatalf("error = %v, want wrapped cause", err)
	}
	if app.PluginState("bad") != plugin.StateError {
		t.Errorf("PluginState = %v, want error", app.PluginState("bad"))
	}
}

func TestExecute_ActivatesOnCommandOnce(t *testing.T) {
	rec := &recorder{}
	app := newTestApp(t, nil)

	h := func(context.Context, command.Call) error {
		rec.add("handler")
		return nil
	}
	p := &fakePlugin{
		id:     "outline",
		policy: plugin.ActivationPolicy{Type: plugin.OnCommand, Commands: []string{"outline.show"}},
		contribs: plugin.Contributions{
			Commands: []command.Command{{ID: "outline.show"}, {ID: "outline.other"}},
			Handlers: []plugin.HandlerDefinition{
				{CommandID: "outline.show", Handler: h},
				{CommandID: "outline.other", Handler: h},
			},
		},
		rec: rec,
	}
	if err := app.LoadPlugin(p); err != nil {
		t.Fatalf("LoadPlugin: %v", err)
	}

	ctx := context.Background()
	if err := app.Execute(ctx, "outline.other", nil); err != nil {
		t.Fatalf("Execute(other): %v", err)
	}
	if p.activations != 0 {
		t.Fatal("non-trigger command activated the plugin")
	}

	for range 2 {
		if err := app.Execute(ctx, "outline.show", nil); err != nil {
			t.Fatalf("Execute(show): %v", err)
		}
	}

	want := []string{
		"outline:init", "outline:contributions",
		"handler",
		"outline:activate", "handler",
		"handler",
	}
	if diff := cmp.Diff(want, rec.list()); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
	if app.PluginState("outline") != plugin.StateActive {
		t.Errorf("PluginState = %v, want active", app.PluginState("outline"))
	}
}

func TestExecute_ActivationErrorAbortsCommand(t *testing.T) {
	app := newTestApp(t, nil)
	called := false
	p := &fakePlugin{
		id:          "broken",
		policy:      plugin.ActivationPolicy{Type: plugin.OnCommand, Commands: []string{"broken.run"}},
		activateErr: errors.New("nope"),
		contribs: plugin.Contributions{
			Commands: []command.Command{{ID: "broken.run"}},
			Handlers: []plugin.HandlerDefinition{{CommandID: "broken.run", Handler: func(context.Context, command.Call) error {
				called = true
				return nil
			}}},
		},
	}
	if err := app.LoadPlugin(p); err != nil {
		t.Fatalf("LoadPlugin: %v", err)
	}

	if err := app.Execute(context.Background(), "broken.run", nil); err == nil {
		t.Fatal("expected activation error")
	}
	if called {
		t.Error("handler ran although activation failed")
	}
	// A failed plugin is not retried.
	_ = app.Execute(context.Background(), "broken.run", nil)
	if p.activations != 1 {
		t.Errorf("activations = %d, want 1", p.activations)
	}
}

func TestActivatePlugin(t *testing.T) {
	app := newTestApp(t, nil)
	p := &fakePlugin{id: "od", policy: plugin.ActivationPolicy{Type: plugin.OnDemand}}
	if err := app.LoadPlugin(p); err != nil {
		t.Fatalf("LoadPlugin: %v", err)
	}

	if err := app.ActivatePlugin("od"); err != nil {
		t.Fatalf("ActivatePlugin: %v", err)
	}
	if err := app.ActivatePlugin("od"); err != nil {
		t.Fatalf("second ActivatePlugin: %v", err)
	}
	if p.activations != 1 {
		t.Errorf("activations = %d, want 1", p.activations)
	}
	if err := app.ActivatePlugin("missing"); !errors.Is(err, ErrUnknownPlugin) {
		t.Errorf("ActivatePlugin(missing) = %v, want ErrUnknownPlugin", err)
	}
}

type fakePreloader struct {
	shown, hidden int
}

func (p *fakePreloader) Show() error { p.shown++; return nil }
func (p *fakePreloader) Hide() error { p.hidden++; return nil }

func TestRender_HidesPreloaderOnce(t *testing.T) {
	pre := &fakePreloader{}
	app := newTestApp(t, nil, WithPreloader(pre))

	if pre.shown != 1 || pre.hidden != 0 {
		t.Fatalf("after New: shown=%d hidden=%d", pre.shown, pre.hidden)
	}
	for range 2 {
		if err := app.Render(); err != nil {
			t.Fatalf("Render: %v", err)
		}
	}
	if pre.hidden != 1 {
		t.Errorf("hidden = %d, want 1", pre.hidden)
	}
}

func TestRender_PreloaderDisabled(t *testing.T) {
	pre := &fakePreloader{}
	app := newTestApp(t, map[string]any{
		"app": map[string]any{"preloader": false},
	}, WithPreloader(pre))

	_ = app.Render()
	if pre.shown != 0 || pre.hidden != 0 {
		t.Errorf("disabled preloader used: shown=%d hidden=%d", pre.shown, pre.hidden)
	}
}

type fakeMetrics struct {
	loaded    []string
	activated []string
	executed  []string
}

func (m *fakeMetrics) PluginLoaded(id string, _ plugin.ActivationType) {
	m.loaded = append(m.loaded, id)
}

func (m *fakeMetrics) PluginActivated(id string, _ time.Duration, _ error) {
	m.activated = append(m.activated, id)
}

func (m *fakeMetrics) CommandExecuted(id string, _ time.Duration, _ error) {
	m.executed = append(m.executed, id)
}

func TestMetricsAndHistory(t *testing.T) {
	m := &fakeMetrics{}
	lazy := &fakePlugin{
		id:     "lazy",
		policy: plugin.ActivationPolicy{Type: plugin.OnCommand, Commands: []string{"lazy.run"}},
		contribs: plugin.Contributions{
			Commands: []command.Command{{ID: "lazy.run"}},
			Handlers: []plugin.HandlerDefinition{{CommandID: "lazy.run", Handler: func(context.Context, command.Call) error { return nil }}},
		},
	}
	app := newTestApp(t, map[string]any{
		"app": map[string]any{"plugins": []any{lazy}},
	}, WithMetrics(m))

	if err := app.Execute(context.Background(), "lazy.run", nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if diff := cmp.Diff([]string{"command", "layout", "menu", "lazy"}, m.loaded); diff != "" {
		t.Errorf("loaded mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"command", "layout", "menu", "lazy"}, m.activated); diff != "" {
		t.Errorf("activated mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"lazy.run"}, m.executed); diff != "" {
		t.Errorf("executed mismatch (-want +got):\n%s", diff)
	}
	recent, err := app.Commands().History().Recent(0)
	if err != nil || len(recent) != 1 || recent[0] != "lazy.run" {
		t.Errorf("history = %v, %v", recent, err)
	}
}

type closingPlugin struct {
	plugin.Base
	rec *recorder
	err error
}

func (p *closingPlugin) Close() error {
	p.rec.add(p.Name + ":close")
	return p.err
}

func TestClose_ReverseOrder(t *testing.T) {
	rec := &recorder{}
	cause := errors.New("busy")
	a := &closingPlugin{Base: plugin.Base{Name: "a"}, rec: rec}
	b := &closingPlugin{Base: plugin.Base{Name: "b"}, rec: rec, err: cause}

	app := newTestApp(t, map[string]any{
		"app": map[string]any{"plugins": []any{a, b}},
	})

	err := app.Close()
	if !errors.Is(err, cause) {
		t.Errorf("Close error = %v, want wrapped busy", err)
	}
	if diff := cmp.Diff([]string{"b:close", "a:close"}, rec.list()); diff != "" {
		t.Errorf("close order mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_FailureReleasesResources(t *testing.T) {
	rec := &recorder{}
	pre := &fakePreloader{}
	a := &closingPlugin{Base: plugin.Base{Name: "a"}, rec: rec}

	app, err := New(config.New(map[string]any{
		"app": map[string]any{"plugins": []any{a, 42}},
	}), WithLogger(NullLogger), WithPreloader(pre))
	if app != nil || !errors.Is(err, plugin.ErrInvalidPlugin) {
		t.Fatalf("New = %v, %v; want nil, ErrInvalidPlugin", app, err)
	}
	if pre.shown != 1 || pre.hidden != 1 {
		t.Errorf("preloader shown=%d hidden=%d, want 1 and 1", pre.shown, pre.hidden)
	}
	if diff := cmp.Diff([]string{"a:close"}, rec.list()); diff != "" {
		t.Errorf("close calls mismatch (-want +got):\n%s", diff)
	}
}

type ctxKey struct{}

type contextPlugin struct {
	*fakePlugin
	got any
}

func (p *contextPlugin) ActivateContext(ctx context.Context, _ *plugin.AppContext) error {
	p.got = ctx.Value(ctxKey{})
	return nil
}

func TestExecute_ActivationReceivesCommandContext(t *testing.T) {
	app := newTestApp(t, nil)
	p := &contextPlugin{fakePlugin: &fakePlugin{
		id:     "ctx",
		policy: plugin.ActivationPolicy{Type: plugin.OnCommand, Commands: []string{"ctx.run"}},
		contribs: plugin.Contributions{
			Commands: []command.Command{{ID: "ctx.run"}},
			Handlers: []plugin.HandlerDefinition{{CommandID: "ctx.run", Handler: func(context.Context, command.Call) error { return nil }}},
		},
	}}
	if err := app.LoadPlugin(p); err != nil {
		t.Fatalf("LoadPlugin: %v", err)
	}

	ctx := context.WithValue(context.Background(), ctxKey{}, "caller")
	if err := app.Execute(ctx, "ctx.run", nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if p.got != "caller" {
		t.Errorf("activation context value = %v, want caller", p.got)
	}
	if p.activations != 0 {
		t.Error("Activate called although ActivateContext is implemented")
	}
}

func TestExecute_LazyLuaActivationReentry(t *testing.T) {
	app := newTestApp(t, nil)
	t.Cleanup(func() { app.Close() })

	caller, err := lua.LoadString("b", `
		capabilities = {"command.execute"}
		contributions = {
			commands = {{id = "b.run"}, {id = "b.ping"}},
			handlers = {
				["b.run"] = function()
					local ok, msg = require("composer").execute("a.go")
					if not ok then error(msg) end
				end,
				["b.ping"] = function() end,
			},
		}
	`)
	if err != nil {
		t.Fatalf("LoadString(b): %v", err)
	}
	lazy, err := lua.LoadString("a", `
		activation = "on-command"
		activation_commands = {"a.go"}
		capabilities = {"command.execute"}
		contributions = {
			commands = {{id = "a.go"}},
			handlers = {["a.go"] = function() end},
		}
		function activate(ctx)
			local ok, msg = require("composer").execute("b.ping")
			if ok then error("b.ping ran inside b.run") end
			if not string.find(msg, "re-entered", 1, true) then error(msg) end
		end
	`)
	if err != nil {
		t.Fatalf("LoadString(a): %v", err)
	}
	for _, p := range []plugin.Plugin{caller, lazy} {
		if err := app.LoadPlugin(p); err != nil {
			t.Fatalf("LoadPlugin(%s): %v", p.ID(), err)
		}
	}

	done := make(chan error, 1)
	go func() { done <- app.Execute(context.Background(), "b.run", nil) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Execute(b.run): %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Execute(b.run) deadlocked")
	}
	if got := app.PluginState("a"); got != plugin.StateActive {
		t.Errorf("PluginState(a) = %v, want active", got)
	}
}
