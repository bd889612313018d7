package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"zkaccount-backend/internal/config"
)

// ErrChainNotFound the configuration endpoint has no entry for the chain
var ErrChainNotFound = errors.New("chain not found in configuration service")

// ConfigClient external chain configuration endpoint client
type ConfigClient struct {
	BaseURL string
	Client  *http.Client
	logger  *logrus.Logger
}

type chainConfigResponse struct {
	Success bool                `json:"success"`
	Data    *config.ChainConfig `json:"data"`
	Error   string              `json:"error,omitempty"`
	Message string              `json:"message,omitempty"`
}

// NewConfigClient Create a configuration endpoint client
func NewConfigClient(cfg config.ConfigServiceConfig, logger *logrus.Logger) *ConfigClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ConfigClient{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// ChainConfig GET {baseURL}/api/chains/{chainId}
func (c *ConfigClient) ChainConfig(ctx context.Context, chainID int64) (*config.ChainConfig, error) {
	url := fmt.Sprintf("%s/api/chains/%d", c.BaseURL, chainID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain %d config: %w", chainID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %d", ErrChainNotFound, chainID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("configuration service returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var out chainConfigResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse chain config: %w", err)
	}
	if !out.Success || out.Data == nil {
		return nil, fmt.Errorf("%w: %d: %s%s", ErrChainNotFound, chainID, out.Error, out.Message)
	}
	if out.Data.ChainID != chainID {
		return nil, fmt.Errorf("configuration service answered chain %d for %d", out.Data.ChainID, chainID)
	}

	c.logger.WithField("chain_id", chainID).Debug("📋 [Config] Chain configuration fetched")
	return out.Data, nil
}
