package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func sampleReport() Report {
	return Report{
		Title:  "GLPI Ticket Summary - ID: 42",
		Query:  "Give me a summary of this ticket.",
		Result: "The printer on floor 3 is jammed & needs a technician. Café staff reported it.",
		Sources: []Source{
			{ID: "42", Type: "glpi_ticket"},
			{},
		},
	}
}

func TestRenderProducesPDF(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRenderer(nil).Render(&buf, sampleReport()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", buf.Bytes()[:min(16, buf.Len())])
	}
	if !bytes.Contains(buf.Bytes(), []byte("%%EOF")) {
		t.Fatalf("output is not terminated")
	}
}

func TestRenderLongResultPaginates(t *testing.T) {
	r := sampleReport()
	r.Result = string(bytes.Repeat([]byte("A long line of summary text. "), 2000))
	var buf bytes.Buffer
	if err := NewRenderer(nil).Render(&buf, r); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("/Count ")) {
		t.Fatalf("missing page tree")
	}
}

func TestRenderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glpi_ticket_42.pdf")
	if err := NewRenderer(nil).RenderFile(path, sampleReport()); err != nil {
		t.Fatalf("RenderFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("file is not a PDF")
	}
}

func TestRenderFileBadDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.pdf")
	if err := NewRenderer(nil).RenderFile(path, sampleReport()); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestOrNA(t *testing.T) {
	if orNA("") != "N/A" || orNA("7") != "7" {
		t.Fatalf("unexpected orNA behaviour")
	}
}
