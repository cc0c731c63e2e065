package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xeoh/GCTool/internal/server"
	"github.com/xeoh/GCTool/pkg/analyzer"
	"github.com/xeoh/GCTool/pkg/config"
	"github.com/xeoh/GCTool/pkg/detector"
	"github.com/xeoh/GCTool/pkg/jobs"
	"github.com/xeoh/GCTool/pkg/output"
	"github.com/xeoh/GCTool/pkg/parser"
	"github.com/xeoh/GCTool/pkg/ticket"
	"github.com/xeoh/GCTool/pkg/webhook"
)

var (
	projectRoot string
	rootOnce    sync.Once
)

// chdir changes to the project root directory for tests.
// Config files use paths relative to project root.
func chdir(t *testing.T) {
	t.Helper()
	rootOnce.Do(func() {
		_, filename, _, _ := runtime.Caller(0)
		projectRoot = filepath.Dir(filepath.Dir(filename))
	})
	if err := os.Chdir(projectRoot); err != nil {
		t.Fatalf("Failed to chdir to project root: %v", err)
	}
}

// requireFile fails the test if the required test file doesn't exist.
// We never skip tests - missing test data is a test failure.
func requireFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Required test file not found: %s", path)
	}
}

// analyzeLog runs the parse and analysis pipeline over one file.
func analyzeLog(t *testing.T, path string, cfg *config.Config) *output.SourceResult {
	t.Helper()
	ctx := context.Background()

	p := parser.New(parser.WithDropSamples(10))
	events, err := p.ParseFile(ctx, path)
	if err != nil {
		t.Fatalf("Parsing %s failed: %v", path, err)
	}

	a, err := analyzer.New(events,
		analyzer.WithMeanLevels(cfg.Analysis.MeanLevels...),
		analyzer.WithOutlierLevels(cfg.Analysis.OutlierLevels...))
	if err != nil {
		t.Fatalf("Creating analyzer failed: %v", err)
	}
	report, err := a.Analyze(ctx)
	if err != nil {
		t.Fatalf("Analysis failed: %v", err)
	}

	return &output.SourceResult{Source: path, Parse: p.Stats(), Analysis: report}
}

// TestE2E_ConfigPipeline runs every log source of the fixture config through
// the full pipeline and both formatters.
func TestE2E_ConfigPipeline(t *testing.T) {
	chdir(t)
	configFile := filepath.Join("testdata", "configs", "gctool.yaml")
	requireFile(t, configFile)

	cfg, err := config.Load(context.Background(), configFile)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	files, err := parser.ExpandGlobs(cfg.LogSources)
	if err != nil {
		t.Fatalf("Failed to expand globs: %v", err)
	}
	want := []string{
		filepath.Join("testdata", "logs", "cms_plain.log"),
		filepath.Join("testdata", "logs", "cms_vm.log"),
	}
	if len(files) != len(want) || files[0] != want[0] || files[1] != want[1] {
		t.Fatalf("files = %v, want %v", files, want)
	}

	var results []*output.SourceResult
	for _, f := range files {
		results = append(results, analyzeLog(t, f, cfg))
	}
	report := output.NewReport(results, output.Metadata{
		ConfigFile:    configFile,
		MeanLevels:    cfg.Analysis.MeanLevels,
		OutlierLevels: cfg.Analysis.OutlierLevels,
		AnalyzedAt:    time.Now(),
	})

	if report.Summary.SourcesAnalyzed != 2 || report.Summary.SourcesFailed != 0 {
		t.Errorf("summary = %+v", report.Summary)
	}
	if report.Summary.EventsParsed != 47 {
		t.Errorf("EventsParsed = %d, want 47", report.Summary.EventsParsed)
	}
	if report.Summary.OutlierEvents != 2 {
		t.Errorf("OutlierEvents = %d, want 2", report.Summary.OutlierEvents)
	}
	if !report.HasIssues() || report.HasErrors() {
		t.Errorf("HasIssues = %v, HasErrors = %v", report.HasIssues(), report.HasErrors())
	}

	// Both formatters render the same report.
	for _, name := range []string{"text", "json"} {
		f, err := output.NewFormatter(name, output.FormatOptions{Verbose: true})
		if err != nil {
			t.Fatalf("NewFormatter(%s): %v", name, err)
		}
		var buf bytes.Buffer
		if err := f.Format(context.Background(), report, &buf); err != nil {
			t.Fatalf("%s format failed: %v", name, err)
		}
		if !strings.Contains(buf.String(), "cms_vm.log") {
			t.Errorf("%s output does not mention cms_vm.log", name)
		}
		if name == "json" {
			var decoded output.Report
			if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if decoded.Summary != report.Summary {
				t.Errorf("decoded summary = %+v, want %+v", decoded.Summary, report.Summary)
			}
		}
	}
}

// TestE2E_SplitEventReassembly checks that the Full GC interrupted by a
// concurrent writer thread is rebuilt into one event.
func TestE2E_SplitEventReassembly(t *testing.T) {
	chdir(t)
	logFile := filepath.Join("testdata", "logs", "cms_vm.log")
	requireFile(t, logFile)

	result := analyzeLog(t, logFile, config.DefaultConfig())

	if result.Parse.EventsParsed != 24 {
		t.Errorf("EventsParsed = %d, want 24", result.Parse.EventsParsed)
	}
	if result.Parse.LinesDropped != 5 {
		t.Errorf("LinesDropped = %d, want 5", result.Parse.LinesDropped)
	}
	if result.Parse.DanglingFragments != 0 {
		t.Errorf("DanglingFragments = %d, want 0", result.Parse.DanglingFragments)
	}

	full := result.Analysis.Pause(parser.FullGC)
	if full == nil || full.Count != 1 || full.MaxEvent == nil {
		t.Fatalf("full GC stats = %+v", full)
	}
	ev := full.MaxEvent
	if ev.Thread != 11779 || ev.Timestamp != 20569 || ev.PauseTime != 0.1819922 {
		t.Errorf("full GC event = %+v", ev)
	}

	minor := result.Analysis.Pause(parser.MinorGC)
	if minor == nil || minor.Count != 12 {
		t.Fatalf("minor GC stats = %+v", minor)
	}
	if minor.MaxEvent == nil || minor.MaxEvent.Timestamp != 10915 {
		t.Errorf("longest minor GC = %+v", minor.MaxEvent)
	}
	for _, set := range minor.Outliers {
		if len(set.Events) != 1 || set.Events[0].Timestamp != 10915 {
			t.Errorf("outliers at %.2f = %+v", set.Level, set.Events)
		}
	}

	counts := map[string]int{}
	for _, cs := range result.Analysis.Concurrences {
		counts[cs.TypeDetail] = cs.Count
	}
	if counts["CMS-concurrent-mark-start"] != 2 {
		t.Errorf("mark-start count = %d, want 2", counts["CMS-concurrent-mark-start"])
	}
	if counts["CMS-concurrent-sweep"] != 1 {
		t.Errorf("sweep count = %d, want 1", counts["CMS-concurrent-sweep"])
	}
}

// TestE2E_Detect checks that format sniffing accepts CMS logs and rejects
// unified JVM logging.
func TestE2E_Detect(t *testing.T) {
	chdir(t)
	d := detector.New()

	tests := []struct {
		file      string
		supported bool
	}{
		{"cms_vm.log", true},
		{"cms_plain.log", true},
		{"unified.log", false},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := filepath.Join("testdata", "logs", tt.file)
			requireFile(t, path)

			result, err := d.DetectFromFile(context.Background(), path)
			if err != nil {
				t.Fatalf("detection failed: %v", err)
			}
			best := result.BestMatch()
			if best == nil {
				t.Fatal("no format detected")
			}
			if best.Format.Supported != tt.supported {
				t.Errorf("%s detected as %s (supported=%v)", tt.file, best.Format.Name, best.Format.Supported)
			}
		})
	}
}

// TestE2E_Webhook delivers a real analysis report to a local endpoint.
func TestE2E_Webhook(t *testing.T) {
	chdir(t)

	var (
		mu       sync.Mutex
		received []output.Report
		auth     string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var report output.Report
		if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, report)
		auth = r.Header.Get("Authorization")
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	result := analyzeLog(t, filepath.Join("testdata", "logs", "cms_vm.log"), cfg)
	report := output.NewReport([]*output.SourceResult{result}, output.Metadata{AnalyzedAt: time.Now()})

	hooks := []config.WebhookConfig{
		{Name: "issues", URL: srv.URL, Token: "secret", Trigger: config.WebhookTriggerOnIssues, Timeout: 5 * time.Second},
		{Name: "muted", URL: srv.URL, Trigger: config.WebhookTriggerNever},
	}
	deliveries := webhook.NewClient().Notify(context.Background(), hooks, report)

	if len(deliveries) != 1 || deliveries[0].Name != "issues" {
		t.Fatalf("deliveries = %+v", deliveries)
	}
	if !deliveries[0].Response.Success() {
		t.Fatalf("delivery failed: %+v", deliveries[0].Response)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("received %d payloads, want 1", len(received))
	}
	if auth != "Bearer secret" {
		t.Errorf("Authorization = %q", auth)
	}
	if received[0].Summary.EventsParsed != 24 || received[0].Summary.OutlierEvents != 1 {
		t.Errorf("payload summary = %+v", received[0].Summary)
	}
}

// TestE2E_Server uploads a fixture, waits for the analysis and reads it back.
func TestE2E_Server(t *testing.T) {
	chdir(t)
	logFile := filepath.Join("testdata", "logs", "cms_vm.log")
	requireFile(t, logFile)
	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	store, err := ticket.OpenSQLite(ctx, filepath.Join(t.TempDir(), "tickets.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer store.Close()

	runner := jobs.New(store, jobs.WithWorkers(2))
	srv, err := server.New(store, runner, server.Options{UploadDir: t.TempDir()})
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}
	defer func() { _ = srv.Shutdown(ctx) }()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "cms_vm.log")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/logs", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	var up server.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&up); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	runner.Wait()

	resp, err = srv.App().Test(httptest.NewRequest(http.MethodGet, "/api/analysis/1", nil), -1)
	if err != nil {
		t.Fatalf("analysis request failed: %v", err)
	}
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analysis status = %d: %s", resp.StatusCode, raw)
	}

	var got server.AnalysisResponse
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if got.Ticket != up.Ticket || got.Status != ticket.StatusCompleted {
		t.Fatalf("ticket %d status %s", got.Ticket, got.Status)
	}

	var result output.SourceResult
	if err := json.Unmarshal(got.Result, &result); err != nil {
		t.Fatalf("invalid result: %v", err)
	}
	if result.Parse.EventsParsed != 24 {
		t.Errorf("EventsParsed = %d, want 24", result.Parse.EventsParsed)
	}
	if result.OutlierEvents() != 1 {
		t.Errorf("OutlierEvents = %d, want 1", result.OutlierEvents())
	}
}
