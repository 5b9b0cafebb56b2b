package spapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/username/sellersync/backend/src/models"
)

type staticTokens struct{}

func (staticTokens) AccessToken(ctx context.Context) (string, error) { return "test-token", nil }

// testClient builds a client against the given server with no rate limiting
// and a sleep that records requested delays instead of waiting.
func testClient(t *testing.T, server *httptest.Server, slept *[]time.Duration) *Client {
	t.Helper()
	signer, err := NewSigner("ak", "sk", "us-east-1")
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	c, err := NewClient(server.URL, staticTokens{}, signer, 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	c.limiter = rate.NewLimiter(rate.Inf, 0)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return ctx.Err()
	}
	return c
}

// reportScript serves a submission response followed by a scripted sequence
// of processing statuses.
func reportScript(statuses []string, documentID string) http.HandlerFunc {
	polls := 0
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			fmt.Fprint(w, `{"reportId":"R-1"}`)
			return
		}
		status := statuses[len(statuses)-1]
		if polls < len(statuses) {
			status = statuses[polls]
		}
		polls++
		fmt.Fprintf(w, `{"reportId":"R-1","processingStatus":%q,"reportDocumentId":%q}`, status, documentID)
	}
}

func TestSubmitReportTransitionsToProcessing(t *testing.T) {
	server := httptest.NewServer(reportScript([]string{"PROCESSING"}, ""))
	defer server.Close()

	var slept []time.Duration
	c := testClient(t, server, &slept)

	job := &models.ReportJob{
		Type:          models.ReportTypeSettlements,
		MarketplaceID: "M1",
		Status:        models.ReportStatusRequested,
	}
	if err := c.SubmitReport(context.Background(), job); err != nil {
		t.Fatalf("SubmitReport failed: %v", err)
	}
	if job.ReportID != "R-1" {
		t.Fatalf("reportID = %q, want R-1", job.ReportID)
	}
	if job.Status != models.ReportStatusProcessing {
		t.Fatalf("status = %q, want PROCESSING", job.Status)
	}
}

func TestSubmitReportRejectsTerminalJob(t *testing.T) {
	server := httptest.NewServer(reportScript(nil, ""))
	defer server.Close()

	var slept []time.Duration
	c := testClient(t, server, &slept)

	job := &models.ReportJob{Type: models.ReportTypeSettlements, Status: models.ReportStatusDone}
	if err := c.SubmitReport(context.Background(), job); err == nil {
		t.Fatal("expected error submitting an already-terminal job")
	}
}

func TestPollReportBackoffCurve(t *testing.T) {
	server := httptest.NewServer(reportScript([]string{"PROCESSING", "PROCESSING", "DONE"}, "DOC-9"))
	defer server.Close()

	var slept []time.Duration
	c := testClient(t, server, &slept)

	job := &models.ReportJob{
		ReportID: "R-1",
		Status:   models.ReportStatusProcessing,
	}
	if err := c.PollReport(context.Background(), job); err != nil {
		t.Fatalf("PollReport failed: %v", err)
	}
	if job.Status != models.ReportStatusDone {
		t.Fatalf("status = %q, want DONE", job.Status)
	}
	if job.DocumentID != "DOC-9" {
		t.Fatalf("documentID = %q, want DOC-9", job.DocumentID)
	}

	want := []time.Duration{10 * time.Second, 16 * time.Second, time.Duration(16 * 1.6 * float64(time.Second))}
	if len(slept) != len(want) {
		t.Fatalf("slept %d times, want %d (%v)", len(slept), len(want), slept)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Fatalf("delay[%d] = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestPollReportDelayCapped(t *testing.T) {
	statuses := make([]string, pollMaxAttempts)
	for i := range statuses {
		statuses[i] = "PROCESSING"
	}
	server := httptest.NewServer(reportScript(statuses, ""))
	defer server.Close()

	var slept []time.Duration
	c := testClient(t, server, &slept)

	job := &models.ReportJob{ReportID: "R-1", Status: models.ReportStatusProcessing}
	err := c.PollReport(context.Background(), job)
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("error = %v, want ErrPollTimeout", err)
	}
	if len(slept) != pollMaxAttempts {
		t.Fatalf("slept %d times, want %d", len(slept), pollMaxAttempts)
	}
	for i, d := range slept {
		if d > pollMaxDelay {
			t.Fatalf("delay[%d] = %v exceeds cap %v", i, d, pollMaxDelay)
		}
	}
	if slept[len(slept)-1] != pollMaxDelay {
		t.Fatalf("final delay = %v, want cap %v", slept[len(slept)-1], pollMaxDelay)
	}
}

func TestPollReportTerminalFailure(t *testing.T) {
	server := httptest.NewServer(reportScript([]string{"CANCELLED"}, ""))
	defer server.Close()

	var slept []time.Duration
	c := testClient(t, server, &slept)

	job := &models.ReportJob{ReportID: "R-1", Status: models.ReportStatusProcessing}
	err := c.PollReport(context.Background(), job)

	var failed *ReportFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("error = %v, want *ReportFailedError", err)
	}
	if failed.Status != "CANCELLED" {
		t.Fatalf("failed status = %q, want CANCELLED", failed.Status)
	}
	if job.Status != models.ReportStatusCancelled {
		t.Fatalf("job status = %q, want CANCELLED", job.Status)
	}
	if len(slept) != 1 {
		t.Fatalf("polled %d times, want 1 (terminal status must stop the loop)", len(slept))
	}
}

func TestPollReportAlreadyTerminalIsNoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for a terminal job")
	}))
	defer server.Close()

	var slept []time.Duration
	c := testClient(t, server, &slept)

	job := &models.ReportJob{ReportID: "R-1", Status: models.ReportStatusDone}
	if err := c.PollReport(context.Background(), job); err != nil {
		t.Fatalf("PollReport failed: %v", err)
	}
	if len(slept) != 0 {
		t.Fatal("terminal job should not sleep")
	}
}

func TestPollReportCancellation(t *testing.T) {
	server := httptest.NewServer(reportScript([]string{"PROCESSING"}, ""))
	defer server.Close()

	var slept []time.Duration
	c := testClient(t, server, &slept)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := &models.ReportJob{ReportID: "R-1", Status: models.ReportStatusProcessing}
	if err := c.PollReport(ctx, job); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestRunReportNoDataReturnsNilDocument(t *testing.T) {
	server := httptest.NewServer(reportScript([]string{"DONE_NO_DATA"}, ""))
	defer server.Close()

	var slept []time.Duration
	c := testClient(t, server, &slept)

	job := &models.ReportJob{
		Type:          models.ReportTypeSettlements,
		MarketplaceID: "M1",
		Status:        models.ReportStatusRequested,
	}
	doc, err := c.RunReport(context.Background(), job)
	if err != nil {
		t.Fatalf("RunReport failed: %v", err)
	}
	if doc != nil {
		t.Fatalf("document = %+v, want nil for DONE_NO_DATA", doc)
	}
	if job.Status != models.ReportStatusDoneNoData {
		t.Fatalf("status = %q, want DONE_NO_DATA", job.Status)
	}
}

func TestGetReportDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"reportDocumentId":"DOC-1","url":"https://cdn.example.com/doc","compressionAlgorithm":"GZIP"}`)
	}))
	defer server.Close()

	var slept []time.Duration
	c := testClient(t, server, &slept)

	doc, err := c.GetReportDocument(context.Background(), "DOC-1")
	if err != nil {
		t.Fatalf("GetReportDocument failed: %v", err)
	}
	if doc.URL != "https://cdn.example.com/doc" || doc.Compression != "GZIP" {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestCallNon2xxSurfacesRemoteRequestError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"errors":[{"code":"Unauthorized"}]}`)
	}))
	defer server.Close()

	var slept []time.Duration
	c := testClient(t, server, &slept)

	_, _, err := c.GetReport(context.Background(), "R-1")
	var remote *RemoteRequestError
	if !errors.As(err, &remote) {
		t.Fatalf("error = %v, want *RemoteRequestError", err)
	}
	if remote.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", remote.StatusCode)
	}
}
