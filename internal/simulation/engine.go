// Package simulation invokes the drift simulation engine service.
package simulation

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
	apperrors "github.com/driftline/driftline/internal/errors"
	"github.com/driftline/driftline/internal/domain/model"
)

// Engine calls the drift model service over HTTP. The engine is a black box
// behind this invocation contract: seed parameters and forcing references in,
// a dense trajectory dataset out.
type Engine struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

var _ core.SimulationEngine = (*Engine)(nil)

// NewEngine creates a simulation engine client from configuration.
func NewEngine(cfg config.SimulationConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		baseURL: strings.TrimRight(cfg.EngineURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// Run executes one simulation synchronously. Any failure, including an
// engine-side error or a structurally invalid dataset, comes back as a
// simulation error whose message is fit for the mission's error_message.
func (e *Engine) Run(ctx context.Context, req model.SimulationRequest) (*model.TrajectoryDataset, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.Simulation("simulation failed: encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/v1/simulations/run", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Simulation("simulation failed: build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(httpReq)
	if err != nil {
		return nil, apperrors.Simulation("simulation failed: engine unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperrors.Simulation(
			fmt.Sprintf("simulation failed: engine returned %d: %s",
				resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}

	var dataset model.TrajectoryDataset
	if err := json.NewDecoder(resp.Body).Decode(&dataset); err != nil {
		return nil, apperrors.Simulation("simulation failed: decode trajectory dataset", err)
	}
	if dataset.MissionID == "" {
		dataset.MissionID = req.MissionID
	}
	if err := dataset.Validate(); err != nil {
		return nil, apperrors.Simulation("simulation failed: invalid trajectory dataset", err)
	}

	e.logger.InfoContext(ctx, "simulation complete",
		"mission_id", req.MissionID,
		"time_steps", dataset.NumTimeSteps(),
		"particles", dataset.NumParticles())
	return &dataset, nil
}
