package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/uofuseismo/cct-review/pkg/models"
)

// GetCatalog fetches the lightweight event list for a schema. The rows are
// returned in service order; sorting is the caller's concern.
func (c *CCTClient) GetCatalog(ctx context.Context, schema models.Schema) ([]models.CatalogEntry, error) {
	var respData models.CatalogResponse
	req := models.APIRequest{RequestType: "cctData", Schema: schema}
	if err := c.authed(ctx, http.MethodPut, req, &respData); err != nil {
		return nil, err
	}
	if respData.Events == nil {
		return nil, fmt.Errorf("%w: cctData response has no events", ErrData)
	}

	// The service sends an empty string when the schema holds no events.
	raw := strings.TrimSpace(*respData.Events)
	if raw == "" {
		return []models.CatalogEntry{}, nil
	}
	var entries []models.CatalogEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("%w: cctData events: %w", ErrData, err)
	}
	if entries == nil {
		entries = []models.CatalogEntry{}
	}
	return entries, nil
}

// GetEventData fetches the heavyweight payload for one event. The raw
// document is returned alongside the decoded detail so it can be exported
// byte for byte.
func (c *CCTClient) GetEventData(ctx context.Context, schema models.Schema, eventID string) (*models.EventDetail, []byte, error) {
	var respData models.EventDataResponse
	req := models.APIRequest{RequestType: "eventData", Schema: schema, EventIdentifier: eventID}
	if err := c.authed(ctx, http.MethodPut, req, &respData); err != nil {
		return nil, nil, err
	}
	if respData.Data == nil || strings.TrimSpace(*respData.Data) == "" {
		return nil, nil, fmt.Errorf("%w: no event data for %s", ErrData, eventID)
	}

	raw := []byte(*respData.Data)
	var detail models.EventDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return nil, nil, fmt.Errorf("%w: eventData for %s: %w", ErrData, eventID, err)
	}
	if detail.EventIdentifier == "" {
		detail.EventIdentifier = eventID
	}
	if err := detail.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrData, err)
	}
	return &detail, raw, nil
}
