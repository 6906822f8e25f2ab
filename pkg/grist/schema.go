package grist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	contractx "github.com/Nicolassaint/grist-ai-api/agent/contract"
)

type tablesPayload struct {
	Tables []struct {
		ID string `json:"id"`
	} `json:"tables"`
}

type columnsPayload struct {
	Columns []struct {
		ID          string `json:"id"`
		Label       string `json:"label"`
		Type        string `json:"type"`
		Formula     string `json:"formula"`
		Description string `json:"description"`
	} `json:"columns"`
}

// Fetch returns the current schema snapshot of every table in the document.
// Tables without columns are omitted. An unreachable or empty document is a
// fetch error: no query can be generated without a schema.
func (c *Client) Fetch(ctx context.Context, documentID, requestID string) (contractx.SchemaSnapshot, error) {
	tables, err := c.listTables(ctx, documentID, requestID)
	if err != nil {
		return contractx.SchemaSnapshot{}, err
	}

	snapshot := contractx.SchemaSnapshot{}
	for _, tableID := range tables {
		table, err := c.tableColumns(ctx, documentID, tableID, requestID)
		if err != nil {
			if ctx.Err() != nil {
				return contractx.SchemaSnapshot{}, ctx.Err()
			}
			log.Warn().
				Str("request_id", requestID).
				Str("table_id", tableID).
				Err(err).
				Msg("schéma de table inaccessible, table ignorée")
			continue
		}
		if len(table.Columns) == 0 {
			continue
		}
		snapshot.Tables = append(snapshot.Tables, table)
	}

	if snapshot.IsEmpty() {
		return contractx.SchemaSnapshot{}, fmt.Errorf("%w: aucune table exploitable dans le document %s", contractx.ErrSchemaFetch, documentID)
	}

	log.Info().
		Str("request_id", requestID).
		Str("document_id", documentID).
		Int("tables_count", len(snapshot.Tables)).
		Msg("schémas récupérés depuis Grist")

	return snapshot, nil
}

func (c *Client) listTables(ctx context.Context, documentID, requestID string) ([]string, error) {
	rawURL := fmt.Sprintf("%s/docs/%s/tables", c.baseURL, documentID)

	req, err := c.newRequest(http.MethodGet, rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrSchemaFetch, err)
	}

	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", contractx.ErrSchemaFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: liste des tables: HTTP %d: %s", contractx.ErrSchemaFetch, resp.StatusCode, string(body))
	}

	var payload tablesPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: décodage des tables: %v", contractx.ErrSchemaFetch, err)
	}

	tables := make([]string, 0, len(payload.Tables))
	for _, t := range payload.Tables {
		tables = append(tables, t.ID)
	}
	return tables, nil
}

func (c *Client) tableColumns(ctx context.Context, documentID, tableID, requestID string) (contractx.TableSchema, error) {
	rawURL := fmt.Sprintf("%s/docs/%s/tables/%s/columns", c.baseURL, documentID, tableID)

	req, err := c.newRequest(http.MethodGet, rawURL)
	if err != nil {
		return contractx.TableSchema{}, err
	}

	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return contractx.TableSchema{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return contractx.TableSchema{}, fmt.Errorf("colonnes de %s: HTTP %d", tableID, resp.StatusCode)
	}

	var payload columnsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return contractx.TableSchema{}, fmt.Errorf("décodage des colonnes de %s: %v", tableID, err)
	}

	table := contractx.TableSchema{TableID: tableID}
	for _, col := range payload.Columns {
		label := col.Label
		if label == "" {
			label = col.ID
		}
		colType := col.Type
		if colType == "" {
			colType = "Text"
		}
		table.Columns = append(table.Columns, contractx.ColumnSchema{
			ID:          col.ID,
			Label:       label,
			Type:        colType,
			Formula:     col.Formula,
			Description: col.Description,
		})
	}
	return table, nil
}
