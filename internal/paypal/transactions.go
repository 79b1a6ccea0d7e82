package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// wireTimeFormat is the timestamp layout the reporting API expects in query
// parameters.
const wireTimeFormat = "2006-01-02T15:04:05Z"

// TransactionsQuery carries the caller's transaction listing parameters.
// StartDate and EndDate are ISO 8601 timestamps.
type TransactionsQuery struct {
	StartDate         string
	EndDate           string
	Page              int
	PageSize          int
	TransactionStatus string
}

// transactionsChunk is the slice of an upstream transactions response the
// merge cares about. Transaction records stay opaque.
type transactionsChunk struct {
	TransactionDetails []json.RawMessage `json:"transaction_details"`
	TotalItems         int               `json:"total_items"`
}

// MergedTransactions is the combined document returned when a query spanned
// multiple chunks. Pagination is not meaningful across a merge, so
// TotalPages is fixed to one; ChunkCount and OriginalSpanDays describe how
// the merge was assembled.
type MergedTransactions struct {
	TransactionDetails []json.RawMessage `json:"transaction_details"`
	TotalItems         int               `json:"total_items"`
	TotalPages         int               `json:"total_pages"`
	ChunkCount         int               `json:"chunk_count"`
	OriginalSpanDays   int               `json:"original_span_days"`
}

// GetTransactions lists transactions for the requested window. Windows of at
// most 31 days are forwarded as a single request and the upstream body is
// returned unmodified. Wider windows are partitioned, fetched concurrently
// under the configured cap, and merged in chunk order regardless of network
// completion order. Any chunk failure fails the whole operation.
func (c *Client) GetTransactions(ctx context.Context, q TransactionsQuery) ([]byte, error) {
	start, err := parseWireTime(q.StartDate)
	if err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("invalid start_date %q: expected ISO 8601 (e.g. 2024-01-01T00:00:00Z)", q.StartDate)}
	}
	end, err := parseWireTime(q.EndDate)
	if err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("invalid end_date %q: expected ISO 8601 (e.g. 2024-01-01T00:00:00Z)", q.EndDate)}
	}
	if !start.Before(end) {
		return nil, &ValidationError{Message: "start_date must be before end_date"}
	}

	spanDays := int(end.Sub(start).Hours() / 24)
	if spanDays <= MaxDateRangeDays {
		log.Debugf("paypal: date range is %d days, single request", spanDays)
		return c.fetchChunk(ctx, DateRange{Start: start, End: end}, q)
	}

	ranges := SplitDateRange(start, end, MaxDateRangeDays)
	limit := int(c.chunkConcurrency.Load())
	log.Infof("paypal: date range is %d days, fetching %d chunks with max %d concurrent", spanDays, len(ranges), limit)

	// Results are collected by chunk index so the merge preserves
	// chronological order no matter which request resolves first.
	results := make([][]byte, len(ranges))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, rng := range ranges {
		i, rng := i, rng
		g.Go(func() error {
			body, errFetch := c.fetchChunk(gctx, rng, q)
			if errFetch != nil {
				return errFetch
			}
			results[i] = body
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	return mergeChunks(results, spanDays)
}

// mergeChunks concatenates chunk transaction lists in chunk order and sums
// their item counts.
func mergeChunks(results [][]byte, spanDays int) ([]byte, error) {
	merged := MergedTransactions{
		TransactionDetails: make([]json.RawMessage, 0),
		TotalPages:         1,
		ChunkCount:         len(results),
		OriginalSpanDays:   spanDays,
	}
	for i, body := range results {
		var chunk transactionsChunk
		if err := json.Unmarshal(body, &chunk); err != nil {
			return nil, fmt.Errorf("paypal: failed to decode chunk %d response: %w", i, err)
		}
		merged.TransactionDetails = append(merged.TransactionDetails, chunk.TransactionDetails...)
		merged.TotalItems += chunk.TotalItems
	}
	log.Infof("paypal: merged %d chunks, %d transactions total", merged.ChunkCount, len(merged.TransactionDetails))
	return json.Marshal(merged)
}

// fetchChunk issues one transactions request for a single date range.
func (c *Client) fetchChunk(ctx context.Context, rng DateRange, q TransactionsQuery) ([]byte, error) {
	query := url.Values{}
	query.Set("start_date", rng.Start.UTC().Format(wireTimeFormat))
	query.Set("end_date", rng.End.UTC().Format(wireTimeFormat))
	query.Set("page", strconv.Itoa(q.Page))
	query.Set("page_size", strconv.Itoa(q.PageSize))
	if q.TransactionStatus != "" {
		query.Set("transaction_status", q.TransactionStatus)
	}
	return c.execute(ctx, http.MethodGet, transactionsPath, query)
}

// parseWireTime accepts RFC 3339 timestamps, the superset of what the
// reporting API emits and accepts.
func parseWireTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
