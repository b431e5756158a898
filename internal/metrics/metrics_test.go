package metrics

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

// fakeBackend is a simple in-memory Backend implementation for tests.
type fakeBackend struct {
	mu sync.Mutex

	callsCounters   []counterCall
	callsHistograms []histCall
	callsGauges     []gaugeCall
	flushCount      int
}

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type gaugeCall struct {
	name   string
	value  float64
	labels Labels
}

type histCall struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsCounters = append(f.callsCounters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsHistograms = append(f.callsHistograms, histCall{name, value, labels})
}

func (f *fakeBackend) SetGauge(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsGauges = append(f.callsGauges, gaugeCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

func TestRecordStep_SuccessAndFailure(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	backend = fb

	// Success case.
	RecordStep("jobA", "load", nil, 2*time.Second)

	// Failure case.
	err := errors.New("boom")
	RecordStep("jobB", "join", err, 1500*time.Millisecond)

	if len(fb.callsCounters) != 2 {
		t.Fatalf("expected 2 counter calls, got %d", len(fb.callsCounters))
	}
	if len(fb.callsHistograms) != 2 {
		t.Fatalf("expected 2 histogram calls, got %d", len(fb.callsHistograms))
	}

	// First call: success.
	cc0 := fb.callsCounters[0]
	if cc0.name != "etl_step_total" || cc0.delta != 1 {
		t.Fatalf("counter[0] = %#v; want name=etl_step_total, delta=1", cc0)
	}
	if got := cc0.labels["job"]; got != "jobA" {
		t.Fatalf("counter[0].labels[job]=%q; want %q", got, "jobA")
	}
	if got := cc0.labels["step"]; got != "load" {
		t.Fatalf("counter[0].labels[step]=%q; want %q", got, "load")
	}
	if got := cc0.labels["status"]; got != "success" {
		t.Fatalf("counter[0].labels[status]=%q; want %q", got, "success")
	}

	h0 := fb.callsHistograms[0]
	if h0.name != "etl_step_duration_seconds" {
		t.Fatalf("hist[0].name=%q; want etl_step_duration_seconds", h0.name)
	}
	if h0.value < 2.0-0.001 || h0.value > 2.0+0.001 {
		t.Fatalf("hist[0].value=%v; want ~2.0", h0.value)
	}

	// Second call: failure.
	cc1 := fb.callsCounters[1]
	if cc1.labels["job"] != "jobB" || cc1.labels["step"] != "join" {
		t.Fatalf("counter[1] labels job/step = %v; want jobB/join", cc1.labels)
	}
	if cc1.labels["status"] != "failure" {
		t.Fatalf("counter[1].labels[status]=%q; want %q", cc1.labels["status"], "failure")
	}

	h1 := fb.callsHistograms[1]
	if h1.value < 1.5-0.001 || h1.value > 1.5+0.001 {
		t.Fatalf("hist[1].value=%v; want ~1.5", h1.value)
	}
}

func TestRecordRowRunAndMatchRate(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	backend = fb

	RecordRow("jobX", "orders_raw", 3)
	RecordRow("jobX", "outliers", 0) // ignored
	RecordRow("jobY", "analytics", 5)
	RecordRun("jobZ", nil)
	RecordRun("jobZ", errors.New("boom"))
	RecordMatchRate("jobZ", "country", 0.75)

	want := []counterCall{
		{RecordsTotal, 3, Labels{"job": "jobX", "kind": "orders_raw"}},
		{RecordsTotal, 5, Labels{"job": "jobY", "kind": "analytics"}},
		{RunsTotal, 1, Labels{"job": "jobZ", "status": "success"}},
		{RunsTotal, 1, Labels{"job": "jobZ", "status": "failure"}},
	}
	if len(fb.callsCounters) != len(want) {
		t.Fatalf("counter calls = %d, want %d: %#v", len(fb.callsCounters), len(want), fb.callsCounters)
	}
	for i, w := range want {
		got := fb.callsCounters[i]
		if got.name != w.name || got.delta != w.delta || !reflect.DeepEqual(got.labels, w.labels) {
			t.Fatalf("counter[%d] = %#v, want %#v", i, got, w)
		}
	}

	if len(fb.callsGauges) != 1 {
		t.Fatalf("gauge calls = %d, want 1", len(fb.callsGauges))
	}
	g := fb.callsGauges[0]
	if g.name != JoinMatchRatio || g.value != 0.75 || g.labels["column"] != "country" {
		t.Fatalf("gauge = %#v", g)
	}
}

func TestSetBackendAndFlush(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	SetBackend(fb)

	if backend != fb {
		t.Fatal("SetBackend did not replace global backend")
	}

	if err := Flush(); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if fb.flushCount != 1 {
		t.Fatalf("expected flushCount=1, got %d", fb.flushCount)
	}

	// SetBackend(nil) should not nil out the backend.
	SetBackend(nil)
	if backend != fb {
		t.Fatal("SetBackend(nil) should not change backend")
	}
}
