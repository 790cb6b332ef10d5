package client

import (
	"context"
	"net/http"

	"github.com/uofuseismo/cct-review/internal/auth"
	"github.com/uofuseismo/cct-review/pkg/models"
)

// Login exchanges Basic credentials for a JSON web token. The request has no
// body; the service recognises it by the Basic Authorization header.
func (c *CCTClient) Login(ctx context.Context, user, password string) (*models.LoginResponse, error) {
	var out models.LoginResponse
	if err := c.send(ctx, http.MethodPut, auth.BasicAuthHeader(user, password), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AvailableSchemas lists the schemas the service can serve.
func (c *CCTClient) AvailableSchemas(ctx context.Context) ([]string, error) {
	var out models.SchemasResponse
	req := models.APIRequest{RequestType: "availableSchemas"}
	if err := c.authed(ctx, http.MethodPut, req, &out); err != nil {
		return nil, err
	}
	return out.AvailableSchemas, nil
}
