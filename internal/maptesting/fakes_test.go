package maptesting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type fakeStore struct {
	mu       sync.Mutex
	waiting  map[string]time.Time
	released map[string]bool
	rows     map[string][]Entry
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		waiting:  make(map[string]time.Time),
		released: make(map[string]bool),
		rows:     make(map[string][]Entry),
	}
}

func (s *fakeStore) SetWaitingSince(_ context.Context, id string, since time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiting[id] = since
	return nil
}

func (s *fakeStore) WaitingSince(_ context.Context, id string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.waiting[id]
	return ts, ok, nil
}

func (s *fakeStore) ClearWaitingSince(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.waiting, id)
	return nil
}

func (s *fakeStore) AddReleased(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released[SanitizeName(name)] = true
	return nil
}

func (s *fakeStore) IsReleased(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released[SanitizeName(name)], nil
}

func (s *fakeStore) AppendChangelog(_ context.Context, id string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[id] = append(s.rows[id], e)
	return nil
}

func (s *fakeStore) ChangelogFor(_ context.Context, id string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.rows[id]...), nil
}

func (s *fakeStore) DeleteChannel(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.waiting, id)
	delete(s.rows, id)
	return nil
}

type fakePlatform struct {
	mu        sync.Mutex
	nextID    int
	titles    map[string]string
	topics    map[string]string
	buckets   map[string]Bucket
	activity  map[string]time.Time
	deleted   []string
	relocates int
	deleteErr error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		titles:   make(map[string]string),
		topics:   make(map[string]string),
		buckets:  make(map[string]Bucket),
		activity: make(map[string]time.Time),
	}
}

func (p *fakePlatform) CreateChannel(_ context.Context, title, topic string, bucket Bucket) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := fmt.Sprintf("ch-%d", p.nextID)
	p.titles[id] = title
	p.topics[id] = topic
	p.buckets[id] = bucket
	return id, nil
}

func (p *fakePlatform) UpdateTitle(_ context.Context, id, title string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.titles[id] = title
	return nil
}

func (p *fakePlatform) UpdateTopic(_ context.Context, id, topic string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics[id] = topic
	return nil
}

func (p *fakePlatform) Relocate(_ context.Context, id string, bucket Bucket, _ int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buckets[id] = bucket
	p.relocates++
	return nil
}

func (p *fakePlatform) LastActivity(_ context.Context, id string) (time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ts, ok := p.activity[id]
	if !ok {
		return time.Time{}, errors.New("no such channel")
	}
	return ts, nil
}

func (p *fakePlatform) Delete(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deleteErr != nil {
		return p.deleteErr
	}
	p.deleted = append(p.deleted, id)
	return nil
}

type fakeArtifacts struct {
	mu      sync.Mutex
	uploads map[string][]byte
	err     error
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{uploads: make(map[string][]byte)}
}

func (a *fakeArtifacts) Upload(_ context.Context, kind, name string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.uploads[kind+"/"+name] = data
	return nil
}

func (a *fakeArtifacts) Delete(_ context.Context, name string) error { return nil }

type fakeChecker struct {
	diag     string
	checkErr error
}

func (c *fakeChecker) Check(_ context.Context, _ []byte) (string, error) {
	return c.diag, c.checkErr
}

func (c *fakeChecker) Optimize(_ context.Context, data []byte) ([]byte, error) {
	return data, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (n *fakeNotifier) Notify(note Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
}

func (n *fakeNotifier) byCategory(cat string) []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Notification
	for _, note := range n.notes {
		if note.Category == cat {
			out = append(out, note)
		}
	}
	return out
}

type fakeExporter struct {
	mu       sync.Mutex
	exported []string
	err      error
}

func (e *fakeExporter) Export(_ context.Context, ch *MapChannel) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.exported = append(e.exported, ch.Filename())
	return nil
}

type fakeFeed struct {
	names []string
	err   error
}

func (f *fakeFeed) RecentReleases(_ context.Context, _ time.Time) ([]string, error) {
	return f.names, f.err
}

func staticBytes(data []byte) func(ctx context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) { return data, nil }
}

type testEnv struct {
	ctrl      *Controller
	store     *fakeStore
	platform  *fakePlatform
	artifacts *fakeArtifacts
	checker   *fakeChecker
	notifier  *fakeNotifier
	clock     *time.Time
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:     newFakeStore(),
		platform:  newFakePlatform(),
		artifacts: newFakeArtifacts(),
		checker:   &fakeChecker{},
		notifier:  &fakeNotifier{},
	}
	env.ctrl = NewController(Config{
		CooldownWindow: 700 * time.Second,
		CooldownBudget: 2,
		SystemActor:    "testbot",
	}, env.store, env.platform, env.artifacts, env.checker, env.notifier)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	env.clock = &now
	env.ctrl.gate.now = func() time.Time { return now }
	return env
}

func (e *testEnv) submit(header, filename string) (*MapChannel, error) {
	sub := NewSubmission(filename, "1001", staticBytes([]byte("DATA")))
	return e.ctrl.SubmitInitial(context.Background(), header, sub)
}

// advanceClock moves past the cooldown window so the next mutation is
// never rate limited.
func (e *testEnv) advanceClock() {
	*e.clock = e.clock.Add(701 * time.Second)
}
