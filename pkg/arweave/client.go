package arweave

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wandern-app/echo-archiver/pkg/config"
	pkgerrors "github.com/wandern-app/echo-archiver/pkg/errors"
	"github.com/wandern-app/echo-archiver/pkg/logger"
)

const (
	defaultTimeout              = 30 * time.Second
	responseBodyReadLimit int64 = 2048

	// freeTierMaxBytes is the bundler's free-tier payload ceiling. Larger
	// uploads still go through; they just get logged.
	freeTierMaxBytes = 100 * 1024
)

// Tag is a name/value pair attached to a bundled transaction.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Client submits JSON documents to Arweave through an Irys bundler node.
// Construction fails when no wallet key is configured: a missing credential is
// an explicit unconfigured state, never a silently fabricated identifier.
type Client struct {
	httpClient *http.Client
	nodeURL    string
	walletKey  string
	logg       *logger.Logger
}

// NewClient builds the bundler client from configuration.
func NewClient(cfg config.ArweaveConfig, logg *logger.Logger) (*Client, error) {
	nodeURL := strings.TrimRight(strings.TrimSpace(cfg.NodeURL), "/")
	if nodeURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnconfigured, "arweave node URL is required")
	}
	if strings.TrimSpace(cfg.WalletKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnconfigured, "arweave wallet key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		nodeURL:    nodeURL,
		walletKey:  cfg.WalletKey,
		logg:       logg,
	}, nil
}

type uploadRequest struct {
	Data json.RawMessage `json:"data"`
	Tags []Tag           `json:"tags"`
}

// Put uploads the document with its tags and returns the transaction ID. The
// ID is derived from a digest of the serialized document, so byte-identical
// re-uploads produce the same identifier even though the bundler itself does
// not deduplicate.
func (c *Client) Put(ctx context.Context, document any, tags []Tag) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeUnconfigured, "arweave client not configured")
	}

	payload, err := json.Marshal(document)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal upload document")
	}

	if len(payload) > freeTierMaxBytes && c.logg != nil {
		warnCtx := c.logg.WithField(ctx, "payload_bytes", len(payload))
		c.logg.Warn(warnCtx, "upload payload exceeds bundler free tier")
	}

	txID := TransactionID(payload)

	body, err := json.Marshal(uploadRequest{Data: payload, Tags: tags})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal upload request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.nodeURL+"/tx", bytes.NewReader(body))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build upload request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.walletKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute upload request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "bundler rejected upload")
	}

	return txID, nil
}

// TransactionID derives the stable content-addressed identifier for a
// serialized document.
func TransactionID(payload []byte) string {
	sum := sha256.Sum256(payload)
	return "ar_" + base64.RawURLEncoding.EncodeToString(sum[:])
}
