package spapi

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/username/sellersync/backend/src/models"
)

// FetchDocument downloads a report payload from its pre-signed storage URL.
// The download is a plain GET: document URLs carry their own authorization
// and must not be signed. A GZIP compression tag (case-insensitive) is
// decompressed transparently.
func (c *Client) FetchDocument(ctx context.Context, doc *models.ReportDocument) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, doc.URL, nil)
	if err != nil {
		return "", &DocumentFetchError{DocumentID: doc.DocumentID, Reason: "building request", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &DocumentFetchError{DocumentID: doc.DocumentID, Reason: "download failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &DocumentFetchError{DocumentID: doc.DocumentID, Reason: "download returned " + resp.Status}
	}

	var reader io.Reader = resp.Body
	if strings.EqualFold(doc.Compression, "GZIP") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", &DocumentFetchError{DocumentID: doc.DocumentID, Reason: "gzip decompression failed", Err: err}
		}
		defer gz.Close()
		reader = gz
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", &DocumentFetchError{DocumentID: doc.DocumentID, Reason: "reading payload", Err: err}
	}
	return string(data), nil
}
