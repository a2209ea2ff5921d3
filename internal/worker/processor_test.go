package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/mohammad-safakhou/glpisum/internal/glpi"
	"github.com/mohammad-safakhou/glpisum/internal/report"
)

type fakeSource struct {
	tickets map[int]glpi.Ticket
	killed  *counter
}

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func (f *fakeSource) GetTicket(_ context.Context, id int) *glpi.Ticket {
	t, ok := f.tickets[id]
	if !ok {
		return nil
	}
	return &t
}

func (f *fakeSource) KillSession(context.Context) bool {
	f.killed.inc()
	return true
}

type fakeSummarizer struct {
	mu      sync.Mutex
	queries []string
	err     error
}

func (f *fakeSummarizer) Summarize(_ context.Context, tickets []glpi.Ticket, query string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return "", f.err
	}
	return "summary of " + tickets[0].Name, nil
}

type fakeRenderer struct {
	mu      sync.Mutex
	reports []report.Report
	err     error
}

func (f *fakeRenderer) RenderFile(path string, r report.Report) error {
	f.mu.Lock()
	f.reports = append(f.reports, r)
	f.mu.Unlock()
	// the file exists before any failure, as with a partially written PDF
	if err := os.WriteFile(path, []byte("%PDF-"), 0o644); err != nil {
		return err
	}
	return f.err
}

type fakePublisher struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, path string) error {
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.mu.Unlock()
	_ = os.Remove(path)
	return f.err
}

type fixture struct {
	dir        string
	killed     *counter
	summarizer *fakeSummarizer
	renderer   *fakeRenderer
	publisher  *fakePublisher
	proc       *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		dir:        t.TempDir(),
		killed:     &counter{},
		summarizer: &fakeSummarizer{},
		renderer:   &fakeRenderer{},
		publisher:  &fakePublisher{},
	}
	tickets := map[int]glpi.Ticket{
		7: {ID: 7, Name: "Printer", Content: "<p>jammed</p>"},
		8: {ID: 8, Name: "VPN", Content: "<p>down</p>"},
	}
	f.proc = NewProcessor(Deps{
		Tickets:    func() TicketSource { return &fakeSource{tickets: tickets, killed: f.killed} },
		Summarizer: f.summarizer,
		Renderer:   f.renderer,
		Publisher:  f.publisher,
	}, f.dir, "Give me a summary of this ticket.", nil, nil)
	return f
}

func TestProcess(t *testing.T) {
	f := newFixture(t)

	if err := f.proc.Process(context.Background(), 7); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(f.renderer.reports) != 1 {
		t.Fatalf("expected one report, got %d", len(f.renderer.reports))
	}
	rep := f.renderer.reports[0]
	if rep.Title != "GLPI Ticket Summary - ID: 7" || rep.Query != "Give me a summary of this ticket." || rep.Result != "summary of Printer" {
		t.Fatalf("unexpected report %+v", rep)
	}
	if len(rep.Sources) != 1 || rep.Sources[0] != (report.Source{ID: "7", Type: "glpi_ticket"}) {
		t.Fatalf("unexpected sources %+v", rep.Sources)
	}
	want := filepath.Join(f.dir, "glpi_ticket_7.pdf")
	if len(f.publisher.paths) != 1 || f.publisher.paths[0] != want {
		t.Fatalf("expected publish of %s, got %v", want, f.publisher.paths)
	}
	if f.killed.get() != 1 {
		t.Fatalf("expected session teardown, got %d", f.killed.get())
	}
}

func TestProcessMissingTicket(t *testing.T) {
	f := newFixture(t)

	err := f.proc.Process(context.Background(), 99)
	if !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound, got %v", err)
	}
	if len(f.summarizer.queries) != 0 || len(f.renderer.reports) != 0 || len(f.publisher.paths) != 0 {
		t.Fatalf("nothing should run after a failed fetch")
	}
	if f.killed.get() != 1 {
		t.Fatalf("session must be torn down even when the fetch fails")
	}
}

func TestProcessSummarizeFailure(t *testing.T) {
	f := newFixture(t)
	f.summarizer.err = errors.New("llm down")

	if err := f.proc.Process(context.Background(), 7); err == nil {
		t.Fatalf("expected error")
	}
	if len(f.renderer.reports) != 0 {
		t.Fatalf("no report expected after summarization failure")
	}
}

func TestProcessRenderFailureRemovesFile(t *testing.T) {
	f := newFixture(t)
	f.renderer.err = errors.New("disk full")

	if err := f.proc.Process(context.Background(), 7); err == nil {
		t.Fatalf("expected error")
	}
	if len(f.publisher.paths) != 0 {
		t.Fatalf("no upload expected after render failure")
	}
	if _, err := os.Stat(filepath.Join(f.dir, "glpi_ticket_7.pdf")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("partial report must be removed, stat err = %v", err)
	}
}

func TestProcessUploadFailure(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("access denied")

	if err := f.proc.Process(context.Background(), 7); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := os.Stat(filepath.Join(f.dir, "glpi_ticket_7.pdf")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("local report must not survive a failed upload")
	}
}

func TestDispatchRunsEachTaskIndependently(t *testing.T) {
	f := newFixture(t)

	ids := map[string]bool{}
	ids[f.proc.Dispatch(7)] = true
	ids[f.proc.Dispatch(8)] = true
	ids[f.proc.Dispatch(99)] = true
	f.proc.Wait()

	if len(ids) != 3 {
		t.Fatalf("expected distinct task ids, got %v", ids)
	}
	got := append([]string(nil), f.publisher.paths...)
	sort.Strings(got)
	want := []string{filepath.Join(f.dir, "glpi_ticket_7.pdf"), filepath.Join(f.dir, "glpi_ticket_8.pdf")}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("unexpected uploads %v", got)
	}
	if f.killed.get() != 3 {
		t.Fatalf("expected one session per task, got %d", f.killed.get())
	}
}

func TestDispatchSurvivesPanics(t *testing.T) {
	f := newFixture(t)
	f.proc.deps.Summarizer = panicSummarizer{}

	f.proc.Dispatch(7)
	f.proc.Wait()
}

type panicSummarizer struct{}

func (panicSummarizer) Summarize(context.Context, []glpi.Ticket, string) (string, error) {
	panic("boom")
}
