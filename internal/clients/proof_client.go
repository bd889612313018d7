package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"zkaccount-backend/internal/config"
	"zkaccount-backend/internal/types"
)

// ProofClient proof issuing service client
type ProofClient struct {
	BaseURL string
	Path    string
	Client  *http.Client
	logger  *logrus.Logger
}

// NewProofClient Create a new proof issuing client
func NewProofClient(cfg config.ProofConfig, logger *logrus.Logger) *ProofClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	logger.WithFields(logrus.Fields{"base_url": cfg.BaseURL, "timeout": timeout}).Info("🔧 [Proof] Create client")
	return &ProofClient{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Path:    cfg.Path,
		Client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Issue asks the issuer for a proof bound to the session behind bearerToken.
// The request carries no body; the issuer derives the identity from the session.
// Returns types.ErrUnauthenticated when the session is missing or rejected and
// types.ErrProofGenerationFailed for any other issuer failure.
func (c *ProofClient) Issue(ctx context.Context, bearerToken string) (*types.RawProofResponse, error) {
	if strings.TrimSpace(bearerToken) == "" {
		return nil, types.ErrUnauthenticated
	}
	if c.BaseURL == "" {
		return nil, fmt.Errorf("%w: proof service not configured", types.ErrProofGenerationFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+c.Path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", types.ErrProofGenerationFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+bearerToken)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %v", types.ErrProofGenerationFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", types.ErrProofGenerationFailed, err)
	}

	c.logger.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("📥 [Proof] Response received")

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, types.ErrUnauthenticated
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", types.ErrProofGenerationFailed, resp.StatusCode, truncate(string(body), 200))
	}

	var out types.RawProofResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", types.ErrProofGenerationFailed, err)
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = out.Message
		}
		return nil, fmt.Errorf("%w: %s", types.ErrProofGenerationFailed, msg)
	}
	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
