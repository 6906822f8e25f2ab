package grist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"

	"github.com/rs/zerolog/log"

	contractx "github.com/Nicolassaint/grist-ai-api/agent/contract"
)

type sqlPayload struct {
	Records []contractx.Row `json:"records"`
	Columns []string        `json:"columns"`
}

// Run executes an already-validated read-only query against the document.
// Ordinary SQL failures (HTTP errors, timeouts) come back as failed outcomes;
// the error return is reserved for cancellation.
func (c *Client) Run(ctx context.Context, documentID, sql, requestID string) (contractx.QueryOutcome, error) {
	rawURL := fmt.Sprintf("%s/docs/%s/sql?q=%s", c.baseURL, documentID, url.QueryEscape(sql))

	req, err := c.newRequest(http.MethodGet, rawURL)
	if err != nil {
		return contractx.ExecutionFailure(err.Error()), nil
	}

	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		if ctx.Err() != nil {
			return contractx.QueryOutcome{}, ctx.Err()
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return contractx.ExecutionFailure("Timeout lors de l'exécution de la requête SQL"), nil
		}
		return contractx.ExecutionFailure(fmt.Sprintf("Exception lors de l'exécution SQL: %v", err)), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Error().
			Str("request_id", requestID).
			Str("sql_query", sql).
			Int("status_code", resp.StatusCode).
			Msg("erreur lors de l'exécution SQL")
		return contractx.ExecutionFailure(fmt.Sprintf("Erreur HTTP %d: %s", resp.StatusCode, string(body))), nil
	}

	var payload sqlPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return contractx.ExecutionFailure(fmt.Sprintf("décodage des résultats SQL: %v", err)), nil
	}

	columns := payload.Columns
	if len(columns) == 0 && len(payload.Records) > 0 {
		for col := range payload.Records[0] {
			columns = append(columns, col)
		}
		sort.Strings(columns)
	}

	log.Info().
		Str("request_id", requestID).
		Str("sql_query", sql).
		Int("row_count", len(payload.Records)).
		Msg("requête SQL exécutée avec succès")

	return contractx.QueryOutcome{
		Success: true,
		Rows:    payload.Records,
		Columns: columns,
	}, nil
}
