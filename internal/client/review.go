package client

import (
	"context"
	"net/http"

	"github.com/uofuseismo/cct-review/pkg/models"
)

// Accept asks the service to publish the Mw,coda magnitude of an event.
func (c *CCTClient) Accept(ctx context.Context, schema models.Schema, eventID string) (*models.ActionResponse, error) {
	return c.review(ctx, "accept", schema, eventID)
}

// Reject asks the service to discard the Mw,coda magnitude of an event.
func (c *CCTClient) Reject(ctx context.Context, schema models.Schema, eventID string) (*models.ActionResponse, error) {
	return c.review(ctx, "reject", schema, eventID)
}

func (c *CCTClient) review(ctx context.Context, action string, schema models.Schema, eventID string) (*models.ActionResponse, error) {
	var out models.ActionResponse
	req := models.APIRequest{RequestType: action, Schema: schema, EventIdentifier: eventID}
	if err := c.authed(ctx, http.MethodPost, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
