// Package http provides the HTTP client used to probe and fetch model files.
//
// The Client in this package handles:
//   - User-Agent headers
//   - File size retrieval via HEAD requests
//   - Ranged GET requests so interrupted downloads can continue
//   - Optional bandwidth limiting
//   - Response header timeouts that do not cap long transfers
//
// # Basic Usage
//
//	client := http.NewClient(http.Options{UserAgent: "model-downloader"})
//
//	// Probe a file size
//	size, err := client.GetFileSize(ctx, fileURL)
//
//	// Continue a transfer at byte 4096
//	resp, err := client.OpenRange(ctx, fileURL, 4096)
//	defer resp.Body.Close()
//
// # Progress Tracking
//
// The ProgressWriter type can be used to wrap any io.Writer for progress tracking:
//
//	pw := &http.ProgressWriter{
//	    Writer:   file,
//	    Written:  resp.Offset,
//	    Total:    resp.Total,
//	    OnUpdate: func(written, total int64) { /* publish progress */ },
//	}
package http
