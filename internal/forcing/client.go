// Package forcing fetches environmental forcing data references from the
// data staging service.
package forcing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/driftline/driftline/config"
	"github.com/driftline/driftline/internal/core"
	"github.com/driftline/driftline/internal/domain/model"
)

// Client asks the data service to stage forcing layers for a spatial/temporal
// window and returns references to the staged objects. A layer the service
// cannot provide is absent from the bundle; the simulation engine falls back
// to constant conditions for it.
type Client struct {
	baseURL    string
	dataBucket string
	http       *http.Client
	logger     *slog.Logger
}

var _ core.ForcingProvider = (*Client)(nil)

// NewClient creates a forcing data client. dataBucket is the object store
// bucket the service stages layers into; layer keys in the response resolve
// against it.
func NewClient(cfg config.ForcingConfig, dataBucket string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.DataServiceURL, "/"),
		dataBucket: dataBucket,
		http:       &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// stageRequest is the staging call body: the spatial/temporal window plus the
// bucket the layers must land in.
type stageRequest struct {
	model.ForcingRequest
	Bucket string `json:"bucket"`
}

// stageResponse is the data service reply: one entry per layer it staged.
type stageResponse struct {
	Layers []model.ForcingLayer `json:"layers"`
}

// Fetch requests staging of all forcing layers covering the window. Layers
// the service does not return stay nil in the bundle. Transport and decode
// failures are errors; callers degrade to an empty bundle rather than
// failing the mission.
func (c *Client) Fetch(ctx context.Context, req model.ForcingRequest) (model.ForcingBundle, error) {
	var bundle model.ForcingBundle

	body, err := json.Marshal(stageRequest{ForcingRequest: req, Bucket: c.dataBucket})
	if err != nil {
		return bundle, fmt.Errorf("encode forcing request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/forcing/stage", bytes.NewReader(body))
	if err != nil {
		return bundle, fmt.Errorf("build forcing request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return bundle, fmt.Errorf("forcing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return bundle, fmt.Errorf("forcing request: data service returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var staged stageResponse
	if err := json.NewDecoder(resp.Body).Decode(&staged); err != nil {
		return bundle, fmt.Errorf("decode forcing response: %w", err)
	}

	for i := range staged.Layers {
		layer := staged.Layers[i]
		switch layer.Name {
		case model.ForcingLayerOceanCurrents:
			bundle.OceanCurrents = &layer
		case model.ForcingLayerWind:
			bundle.Wind = &layer
		case model.ForcingLayerWaves:
			bundle.Waves = &layer
		default:
			c.logger.WarnContext(ctx, "ignoring unknown forcing layer", "layer", layer.Name)
		}
	}

	if !bundle.Complete() {
		c.logger.InfoContext(ctx, "forcing bundle incomplete",
			"ocean_currents", bundle.OceanCurrents != nil,
			"wind", bundle.Wind != nil,
			"waves", bundle.Waves != nil)
	}
	return bundle, nil
}
