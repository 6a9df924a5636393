package client

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/clientmap/internal/clientmap"
	"github.com/nao1215/clientmap/internal/database"
	"github.com/nao1215/clientmap/internal/eventbus"
	"github.com/nao1215/clientmap/internal/lifecycle"
	"github.com/nao1215/clientmap/internal/model"
	"github.com/nao1215/clientmap/internal/reconcile"
)

// inlineSpawner runs tasks on the calling goroutine.
type inlineSpawner struct{}

func (inlineSpawner) Spawn(task func()) error {
	task()
	return nil
}

// memoryArchive records archive calls.
type memoryArchive struct {
	mu       sync.Mutex
	sessions []string
	objects  map[string][]model.ReportedObject
	trees    map[string][]string
	failNew  bool
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{
		objects: make(map[string][]model.ReportedObject),
		trees:   make(map[string][]string),
	}
}

func (a *memoryArchive) CreateSession(_ context.Context, id, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failNew {
		return errors.New("disk full")
	}
	a.sessions = append(a.sessions, id)
	return nil
}

func (a *memoryArchive) RecordObject(_ context.Context, sessionID string, obj model.ReportedObject) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[sessionID] = append(a.objects[sessionID], obj)
	return nil
}

func (a *memoryArchive) SaveTree(_ context.Context, sessionID string, tree *clientmap.Map) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.trees[sessionID] = tree.URLs()
	return nil
}

func mustAdd(t *testing.T, i *Integration, url string, visited bool) clientmap.Node {
	t.Helper()
	n, err := i.GetOrAddNode(url, visited, false)
	if err != nil {
		t.Fatalf("GetOrAddNode(%q) error = %v", url, err)
	}
	return n
}

func TestControlChannelExclusion(t *testing.T) {
	t.Parallel()

	i := New()

	for _, u := range []string{"http://zap/JSON/core/view/version", "https://zap/other"} {
		if _, err := i.GetOrAddNode(u, true, false); !errors.Is(err, ErrControlURL) {
			t.Errorf("GetOrAddNode(%q) error = %v, want ErrControlURL", u, err)
		}
		if _, err := i.AddComponent(u, clientmap.Component{TagName: "a"}); !errors.Is(err, ErrControlURL) {
			t.Errorf("AddComponent(%q) error = %v, want ErrControlURL", u, err)
		}
		if i.AddReportedObject(model.NewReportedNode(u, "DIV")) {
			t.Errorf("AddReportedObject(%q) stored a control channel object", u)
		}
	}

	if got := i.Tree().Len(); got != 1 {
		t.Errorf("tree Len() = %d, want only the root", got)
	}
	if got := i.History().Len(); got != 0 {
		t.Errorf("history Len() = %d, want 0", got)
	}

	if !i.AddReportedObject(model.NewReportedNode("https://app.test/", "DIV")) {
		t.Error("ordinary objects must be stored")
	}
}

func TestInvalidURLIsRecoverable(t *testing.T) {
	t.Parallel()

	i := New()
	if _, err := i.GetOrAddNode("http://[::1", true, false); !errors.Is(err, clientmap.ErrInvalidURL) {
		t.Errorf("error = %v, want ErrInvalidURL", err)
	}
	if got := i.Tree().Len(); got != 1 {
		t.Errorf("tree changed on invalid URL: Len() = %d", got)
	}
}

func TestSessionIsolation(t *testing.T) {
	t.Parallel()

	archive := newMemoryArchive()
	i := New(WithArchive(archive))
	first := i.Session()

	a := mustAdd(t, i, "https://app.test/a", true)
	i.NodeSelected(a)
	i.AddReportedObject(model.NewReportedEvent("https://app.test/a", "clicked", "btn", model.TypeClick))

	second := i.SessionChanged("second")

	if second.ID == first.ID || second.ID == "" {
		t.Fatalf("session id not renewed: %q -> %q", first.ID, second.ID)
	}
	if second.Name != "second" {
		t.Errorf("Name = %q", second.Name)
	}
	if got := i.Tree().Len(); got != 1 {
		t.Errorf("new tree Len() = %d, want 1", got)
	}
	if i.Tree().Contains("https://app.test/a") {
		t.Error("old URL leaked into the new session")
	}
	if got := i.History().Len(); got != 0 {
		t.Errorf("history Len() = %d, want 0", got)
	}
	if _, shown := i.Details().Current(); shown {
		t.Error("detail view must be cleared on session change")
	}

	archive.mu.Lock()
	defer archive.mu.Unlock()
	if diff := cmp.Diff([]string{first.ID, second.ID}, archive.sessions); diff != "" {
		t.Errorf("archived sessions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"https://app.test", "https://app.test/a"}, archive.trees[first.ID]); diff != "" {
		t.Errorf("archived tree mismatch (-want +got):\n%s", diff)
	}
	// The observation of /a and the click.
	if got := len(archive.objects[first.ID]); got != 2 {
		t.Errorf("archived %d objects for the first session, want 2", got)
	}
}

func TestSessionChangeDiscardsInFlightRuns(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	done := make(chan reconcile.Result, 1)
	worker := reconcile.NewWorker(
		reconcile.SnapshotFunc(func(context.Context, model.ScanInfo) ([]string, error) {
			<-release
			return []string{"https://app.test/late"}, nil
		}),
		reconcile.OnDone(func(r reconcile.Result) { done <- r }),
	)
	i := New(WithWorker(worker), WithSpawner(lifecycle.GoSpawner{}))

	i.Gate().ScanStarted(model.ScanInfo{ID: "1", Target: "https://app.test/"})
	if !i.Gate().ScanStopped() {
		t.Fatal("expected a run to be spawned")
	}
	i.SessionChanged("")
	close(release)

	res := <-done
	if len(res.Added) != 1 {
		t.Fatalf("run added %v", res.Added)
	}
	if i.Tree().Contains("https://app.test/late") {
		t.Error("run from the previous session wrote into the new tree")
	}
}

func TestDeleteNodesDetailView(t *testing.T) {
	t.Parallel()

	t.Run("deleting another node keeps the view", func(t *testing.T) {
		t.Parallel()

		i := New()
		a := mustAdd(t, i, "https://app.test/a", true)
		b := mustAdd(t, i, "https://app.test/b", true)
		i.NodeSelected(a)

		removed := i.DeleteNodes(b.ID)
		if len(removed) != 1 || removed[0].URL != b.URL {
			t.Fatalf("removed = %+v", removed)
		}
		if shown, ok := i.Details().Current(); !ok || shown.URL != a.URL {
			t.Errorf("detail view = %+v, %v; want %s", shown, ok, a.URL)
		}
	})

	t.Run("deleting the shown node clears the view", func(t *testing.T) {
		t.Parallel()

		i := New()
		a := mustAdd(t, i, "https://app.test/a", true)
		i.NodeSelected(a)

		i.DeleteNodes(a.ID)
		if _, ok := i.Details().Current(); ok {
			t.Error("detail view should be cleared")
		}
	})

	t.Run("deleting an ancestor clears the view", func(t *testing.T) {
		t.Parallel()

		i := New()
		leaf := mustAdd(t, i, "https://app.test/a/b/c", true)
		parent, ok := i.Tree().Find("https://app.test/a")
		if !ok {
			t.Fatal("parent not found")
		}
		i.NodeSelected(leaf)

		i.DeleteNodes(parent.ID)
		if _, ok := i.Details().Current(); ok {
			t.Error("detail view of a removed descendant should be cleared")
		}
	})

	t.Run("deleting nothing keeps the view", func(t *testing.T) {
		t.Parallel()

		i := New()
		a := mustAdd(t, i, "https://app.test/a", true)
		i.NodeSelected(a)

		if removed := i.DeleteNodes(i.Tree().Root().ID); len(removed) != 0 {
			t.Errorf("root must never be removed, got %+v", removed)
		}
		if _, ok := i.Details().Current(); !ok {
			t.Error("detail view should be kept")
		}
	})
}

func TestNodeChangedRefreshesDetailView(t *testing.T) {
	t.Parallel()

	var changed []string
	i := New(WithListener(clientmap.ListenerFuncs{
		OnChanged: func(n clientmap.Node) { changed = append(changed, n.URL) },
	}))
	a := mustAdd(t, i, "https://app.test/a", false)
	i.NodeSelected(a)

	updated := mustAdd(t, i, "https://app.test/a", true)
	i.NodeChanged(updated)

	shown, ok := i.Details().Current()
	if !ok || !shown.Visited {
		t.Errorf("detail view not refreshed: %+v", shown)
	}
	// One notification from the flag merge, one from the explicit call.
	if diff := cmp.Diff([]string{"https://app.test/a", "https://app.test/a"}, changed); diff != "" {
		t.Errorf("NodeChanged notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestListenersFollowSessions(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var added []string
	i := New(WithListener(clientmap.ListenerFuncs{
		OnAdded: func(n clientmap.Node) {
			mu.Lock()
			defer mu.Unlock()
			added = append(added, n.URL)
		},
	}))

	mustAdd(t, i, "https://one.test/", true)
	i.SessionChanged("")
	mustAdd(t, i, "https://two.test/", true)

	mu.Lock()
	defer mu.Unlock()
	want := []string{"https://one.test", "https://one.test/", "https://two.test", "https://two.test/"}
	if diff := cmp.Diff(want, added); diff != "" {
		t.Errorf("added mismatch (-want +got):\n%s", diff)
	}
}

func publish(bus *eventbus.Bus, typ string, params map[string]string) {
	bus.Publish(eventbus.Event{Publisher: lifecycle.DefaultTopic, Type: typ, Params: params})
}

func TestReconciliationOverBus(t *testing.T) {
	t.Parallel()

	var targets []string
	worker := reconcile.NewWorker(reconcile.SnapshotFunc(func(_ context.Context, scan model.ScanInfo) ([]string, error) {
		targets = append(targets, scan.Target)
		return []string{"https://app.test/a/b", "https://app.test/a/c"}, nil
	}))

	i := New(WithWorker(worker), WithSpawner(inlineSpawner{}))
	mustAdd(t, i, "https://app.test/a", true)
	mustAdd(t, i, "https://app.test/a/b", true)

	bus := eventbus.New()
	i.Hook(bus)

	publish(bus, lifecycle.EventScanStarted, map[string]string{lifecycle.ParamScanID: "1", lifecycle.ParamTarget: "https://app.test/first"})
	publish(bus, lifecycle.EventScanStarted, map[string]string{lifecycle.ParamScanID: "2", lifecycle.ParamTarget: "https://app.test/second"})
	publish(bus, lifecycle.EventScanStopped, nil)
	publish(bus, lifecycle.EventScanStopped, nil)

	if diff := cmp.Diff([]string{"https://app.test/second"}, targets); diff != "" {
		t.Errorf("runs mismatch (-want +got):\n%s", diff)
	}
	if !i.Tree().Contains("https://app.test/a/c") {
		t.Error("missing node was not reconciled")
	}
	if n, _ := i.Tree().Find("https://app.test/a/c"); n.Visited {
		t.Error("reconciled nodes must be unvisited")
	}
	if n, _ := i.Tree().Find("https://app.test/a/b"); !n.Visited {
		t.Error("existing node flags must be kept")
	}

	i.Unload()
	publish(bus, lifecycle.EventScanStarted, map[string]string{lifecycle.ParamTarget: "https://app.test/third"})
	publish(bus, lifecycle.EventScanStopped, nil)
	if len(targets) != 1 {
		t.Errorf("events after Unload must be ignored, runs = %v", targets)
	}
	if bus.Len() != 0 {
		t.Errorf("bus still has %d subscriptions", bus.Len())
	}
}

func TestHookReplacesSubscription(t *testing.T) {
	t.Parallel()

	i := New(WithSpawner(inlineSpawner{}))
	bus := eventbus.New()
	i.Hook(bus)
	i.Hook(bus)
	if bus.Len() != 1 {
		t.Errorf("bus Len() = %d, want 1", bus.Len())
	}
	i.Unload()
}

func TestUnloadClosesPool(t *testing.T) {
	t.Parallel()

	pool := lifecycle.NewPoolSpawner(lifecycle.WithWorkers(1), lifecycle.WithQueueSize(1))
	i := New(WithSpawner(pool))
	i.Unload()

	if err := pool.Spawn(func() {}); !errors.Is(err, lifecycle.ErrSpawnerClosed) {
		t.Errorf("Spawn() after Unload = %v, want ErrSpawnerClosed", err)
	}
}

func TestArchiveFailureKeepsSessionUsable(t *testing.T) {
	t.Parallel()

	archive := newMemoryArchive()
	archive.failNew = true
	i := New(WithArchive(archive))

	if !i.AddReportedObject(model.NewReportedNode("https://app.test/", "DIV")) {
		t.Fatal("object should still be logged")
	}
	archive.mu.Lock()
	defer archive.mu.Unlock()
	if len(archive.objects) != 0 {
		t.Errorf("objects archived into a session that was never created: %v", archive.objects)
	}
}

func TestHistoryDBArchive(t *testing.T) {
	t.Parallel()

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	i := New(WithArchive(db))
	id := i.Session().ID
	mustAdd(t, i, "https://app.test/cart", true)
	i.AddReportedObject(model.NewReportedNode("https://app.test/cart", "BUTTON"))

	if err := i.SaveTree(context.Background()); err != nil {
		t.Fatalf("SaveTree() error = %v", err)
	}

	records, err := db.Objects(context.Background(), id)
	if err != nil {
		t.Fatalf("Objects() error = %v", err)
	}
	if len(records) != 2 || records[0].Object.NodeName() != "cart" || records[1].Object.NodeName() != "BUTTON" {
		t.Errorf("archived objects = %+v", records)
	}

	rows, err := db.Tree(context.Background(), id)
	if err != nil {
		t.Fatalf("Tree() error = %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("archived %d tree rows, want 2", len(rows))
	}
}

func TestExport(t *testing.T) {
	t.Parallel()

	i := New()
	i.SessionChanged("named")
	mustAdd(t, i, "https://app.test/a", true)
	i.AddReportedObject(model.NewReportedNode("https://app.test/a", "DIV"))

	export := i.Export()
	if export.SessionID != i.Session().ID || export.SessionName != "named" {
		t.Errorf("session = %q %q", export.SessionID, export.SessionName)
	}
	if len(export.Nodes) != 2 || len(export.Objects) != 2 {
		t.Errorf("export has %d nodes and %d objects", len(export.Nodes), len(export.Objects))
	}
}

func TestTreeObservationsEnterHistory(t *testing.T) {
	t.Parallel()

	i := New()
	mustAdd(t, i, "https://app.test/a", true)
	if _, err := i.AddComponent("https://app.test/a/form", clientmap.Component{TagName: "FORM"}); err != nil {
		t.Fatalf("AddComponent() error = %v", err)
	}
	if _, err := i.GetOrAddNode("http://[::1", true, false); err == nil {
		t.Fatal("expected an invalid URL error")
	}
	if _, err := i.GetOrAddNode("http://zap/JSON/core/view/version/", true, false); !errors.Is(err, ErrControlURL) {
		t.Fatalf("error = %v, want ErrControlURL", err)
	}

	var got [][2]string
	for _, obj := range i.History().Entries() {
		got = append(got, [2]string{obj.URL(), obj.NodeName()})
	}
	want := [][2]string{
		{"https://app.test/a", "a"},
		{"https://app.test/a/form", "form"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestReconciliationSkipsControlURLs(t *testing.T) {
	t.Parallel()

	done := make(chan reconcile.Result, 1)
	worker := reconcile.NewWorker(
		reconcile.SnapshotFunc(func(context.Context, model.ScanInfo) ([]string, error) {
			return []string{"http://zap/JSON/core/view/version/", "https://app.test/hidden"}, nil
		}),
		reconcile.OnDone(func(r reconcile.Result) { done <- r }),
	)
	i := New(WithWorker(worker), WithSpawner(inlineSpawner{}))

	bus := eventbus.New()
	i.Hook(bus)
	defer i.Unload()

	publish(bus, lifecycle.EventScanStarted, map[string]string{lifecycle.ParamScanID: "1", lifecycle.ParamTarget: "https://app.test/"})
	publish(bus, lifecycle.EventScanStopped, nil)

	res := <-done
	if res.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", res.Skipped)
	}
	if i.Tree().Contains("http://zap/JSON/core/view/version/") {
		t.Error("control URL entered the tree through reconciliation")
	}
	if !i.Tree().Contains("https://app.test/hidden") {
		t.Error("ordinary snapshot URL was not reconciled")
	}
}

// blockingArchive holds CreateSession until release is closed.
type blockingArchive struct {
	*memoryArchive
	entered chan struct{}
	release chan struct{}
}

func (a *blockingArchive) CreateSession(ctx context.Context, id, name string) error {
	if name == "slow" {
		close(a.entered)
		<-a.release
	}
	return a.memoryArchive.CreateSession(ctx, id, name)
}

func TestSessionChangeArchivesOutsideLock(t *testing.T) {
	t.Parallel()

	archive := &blockingArchive{
		memoryArchive: newMemoryArchive(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	i := New(WithArchive(archive))
	first := i.Session()

	changed := make(chan Session, 1)
	go func() { changed <- i.SessionChanged("slow") }()
	<-archive.entered

	// The current session stays readable and writable while the archive is busy.
	if got := i.Session(); got.ID != first.ID {
		t.Errorf("session switched before the archive answered: %q", got.ID)
	}
	mustAdd(t, i, "https://app.test/during", true)

	close(archive.release)
	second := <-changed

	if second.Name != "slow" || i.Session().ID != second.ID {
		t.Errorf("session = %+v, want the new one installed", i.Session())
	}
	archive.mu.Lock()
	defer archive.mu.Unlock()
	if diff := cmp.Diff([]string{first.ID, second.ID}, archive.sessions); diff != "" {
		t.Errorf("archived sessions mismatch (-want +got):\n%s", diff)
	}
	if got := len(archive.objects[second.ID]); got != 0 {
		t.Errorf("new session has %d objects, want 0", got)
	}
}
