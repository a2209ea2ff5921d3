package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestProcessRejectsBadTicketID(t *testing.T) {
	cfgPath := ""
	cmd := processCMD(&cfgPath)
	cmd.SetArgs([]string{"abc"})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "invalid ticket id") {
		t.Fatalf("expected invalid ticket id error, got %v", err)
	}
}

func TestTicketsListsJSON(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/apirest.php/initSession", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"session_token":"s"}`))
	})
	mux.HandleFunc("/apirest.php/killSession", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/apirest.php/Ticket", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("range") != "0-1" {
			t.Errorf("unexpected range %q", r.URL.Query().Get("range"))
		}
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte(`[{"id":1,"name":"Printer","content":"jammed","status":1,"date":"2024-03-01 10:00:00"}]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	testChdir(t, t.TempDir())
	t.Setenv("GLPI_URL", srv.URL+"/apirest.php")
	t.Setenv("GLPI_APP_TOKEN", "app")
	t.Setenv("GLPISUM_GENERAL_LOG_LEVEL", "error")

	cfgPath := ""
	cmd := ticketsCMD(&cfgPath)
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--range", "0-1"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("tickets: %v", err)
	}

	var got []map[string]any
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if len(got) != 1 || got[0]["name"] != "Printer" {
		t.Fatalf("unexpected listing %v", got)
	}
}

func TestTicketsRequiresGLPIConfig(t *testing.T) {
	testChdir(t, t.TempDir())
	t.Setenv("GLPI_URL", "")
	t.Setenv("GLPI_APP_TOKEN", "")

	cfgPath := ""
	cmd := ticketsCMD(&cfgPath)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error without GLPI settings")
	}
}
