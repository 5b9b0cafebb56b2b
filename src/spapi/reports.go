package spapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/username/sellersync/backend/src/logger"
	"github.com/username/sellersync/backend/src/models"
)

const (
	reportsPath   = "/reports/2021-06-30/reports"
	documentsPath = "/reports/2021-06-30/documents/"

	pollInitialDelay  = 10 * time.Second
	pollBackoffFactor = 1.6
	pollMaxDelay      = 2 * time.Minute
	pollMaxAttempts   = 12
)

type createReportRequest struct {
	ReportType     string   `json:"reportType"`
	MarketplaceIDs []string `json:"marketplaceIds"`
	DataStartTime  string   `json:"dataStartTime,omitempty"`
	DataEndTime    string   `json:"dataEndTime,omitempty"`
}

type createReportResponse struct {
	ReportID string `json:"reportId"`
}

type reportStatusResponse struct {
	ReportID         string `json:"reportId"`
	ProcessingStatus string `json:"processingStatus"`
	DocumentID       string `json:"reportDocumentId"`
}

type reportDocumentResponse struct {
	DocumentID  string `json:"reportDocumentId"`
	URL         string `json:"url"`
	Compression string `json:"compressionAlgorithm"`
}

// SubmitReport requests a new bulk report and moves the job from REQUESTED
// to PROCESSING. The job must not already be terminal.
func (c *Client) SubmitReport(ctx context.Context, job *models.ReportJob) error {
	if job.Status.IsTerminal() {
		return fmt.Errorf("spapi: job for report type %s is already terminal (%s)", job.Type, job.Status)
	}

	req := createReportRequest{
		ReportType:     string(job.Type),
		MarketplaceIDs: []string{job.MarketplaceID},
	}
	if !job.StartDate.IsZero() {
		req.DataStartTime = job.StartDate.UTC().Format(time.RFC3339)
	}
	if !job.EndDate.IsZero() {
		req.DataEndTime = job.EndDate.UTC().Format(time.RFC3339)
	}

	var resp createReportResponse
	if err := c.call(ctx, http.MethodPost, reportsPath, nil, req, &resp); err != nil {
		return err
	}
	if resp.ReportID == "" {
		return fmt.Errorf("spapi: report submission returned no reportId")
	}

	job.ReportID = resp.ReportID
	job.Status = models.ReportStatusProcessing
	logger.L.Info("Report submitted", "reportType", job.Type, "reportId", job.ReportID)
	return nil
}

// PollReport polls the job status with exponential backoff until a terminal
// status is reached or the attempt budget runs out. Sequential per job; the
// delay step is cancellable through ctx.
//
// A terminal failure status raises ReportFailedError. Exhausting the budget
// raises ErrPollTimeout even though the remote job may still legitimately
// complete later; that bounded wait is deliberate.
func (c *Client) PollReport(ctx context.Context, job *models.ReportJob) error {
	if job.Status.IsTerminal() {
		return nil
	}
	if job.ReportID == "" {
		return fmt.Errorf("spapi: cannot poll job without a reportId")
	}

	delay := pollInitialDelay
	for attempt := 1; attempt <= pollMaxAttempts; attempt++ {
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}

		var resp reportStatusResponse
		if err := c.call(ctx, http.MethodGet, reportsPath+"/"+job.ReportID, nil, nil, &resp); err != nil {
			return err
		}

		status := models.ReportStatus(resp.ProcessingStatus)
		logger.L.Debug("Report poll", "reportId", job.ReportID, "attempt", attempt, "status", status)

		if status.IsTerminal() {
			job.Status = status
			if !status.IsSuccess() {
				return &ReportFailedError{ReportID: job.ReportID, Status: string(status)}
			}
			job.DocumentID = resp.DocumentID
			return nil
		}

		delay = time.Duration(float64(delay) * pollBackoffFactor)
		if delay > pollMaxDelay {
			delay = pollMaxDelay
		}
	}

	logger.L.Warn("Report poll budget exhausted", "reportId", job.ReportID, "attempts", pollMaxAttempts)
	return fmt.Errorf("%w: report %s, %d attempts", ErrPollTimeout, job.ReportID, pollMaxAttempts)
}

// GetReport fetches the current status of a report without polling. Used by
// read paths that look up an already-submitted report.
func (c *Client) GetReport(ctx context.Context, reportID string) (models.ReportStatus, string, error) {
	var resp reportStatusResponse
	if err := c.call(ctx, http.MethodGet, reportsPath+"/"+reportID, nil, nil, &resp); err != nil {
		return "", "", err
	}
	return models.ReportStatus(resp.ProcessingStatus), resp.DocumentID, nil
}

// GetReportDocument resolves the downloadable document handle for a
// completed report.
func (c *Client) GetReportDocument(ctx context.Context, documentID string) (*models.ReportDocument, error) {
	var resp reportDocumentResponse
	if err := c.call(ctx, http.MethodGet, documentsPath+documentID, nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.URL == "" {
		return nil, &DocumentFetchError{DocumentID: documentID, Reason: "document response carried no url"}
	}
	return &models.ReportDocument{
		DocumentID:  resp.DocumentID,
		URL:         resp.URL,
		Compression: resp.Compression,
	}, nil
}

// RunReport submits a job, polls it to completion and resolves the document
// handle. A DONE_NO_DATA outcome returns (nil, nil): an empty report is a
// legitimate zero-row result, never an error.
func (c *Client) RunReport(ctx context.Context, job *models.ReportJob) (*models.ReportDocument, error) {
	if err := c.SubmitReport(ctx, job); err != nil {
		return nil, err
	}
	if err := c.PollReport(ctx, job); err != nil {
		return nil, err
	}
	if job.Status == models.ReportStatusDoneNoData {
		logger.L.Info("Report completed with no data", "reportId", job.ReportID)
		return nil, nil
	}
	return c.GetReportDocument(ctx, job.DocumentID)
}
