// Package delivery is the HTTP client for the content delivery service that
// serves depot manifests and chunk bytes.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/datallboy/godepot/internal/domain"
)

// maxChunkSize bounds a single chunk body; real chunks are at most 1 MiB.
const maxChunkSize = 64 << 20

type Client struct {
	BaseURL string
	Token   string
	http    *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// FetchManifests lists the depots of appID and downloads the manifest of
// every depot the filter admits. A failed listing returns no manifests. A
// failed manifest only skips its depot: the rest are returned together with
// a *domain.ManifestFetchError naming the depots that failed.
func (c *Client) FetchManifests(ctx context.Context, appID uint32, filter domain.SubItemFilter) ([]*domain.Manifest, error) {
	if filter == nil {
		filter = domain.AllSubItems
	}

	var listing depotListing
	if err := c.getJSON(ctx, fmt.Sprintf("/apps/%d/depots", appID), &listing); err != nil {
		return nil, unavailable(fmt.Sprintf("list depots of app %d", appID), err)
	}

	var manifests []*domain.Manifest
	var failed []domain.DepotFailure
	for _, depotID := range listing.Depots {
		if !filter(depotID) {
			continue
		}

		var wire manifestJSON
		if err := c.getJSON(ctx, fmt.Sprintf("/apps/%d/depots/%d/manifest", appID, depotID), &wire); err != nil {
			failed = append(failed, domain.DepotFailure{
				DepotID: depotID,
				Err:     unavailable(fmt.Sprintf("manifest of depot %d", depotID), err),
			})
			continue
		}
		m := wire.toDomain()
		m.AppID, m.DepotID = appID, depotID
		manifests = append(manifests, m)
	}
	if len(failed) > 0 {
		return manifests, &domain.ManifestFetchError{Failed: failed}
	}
	return manifests, nil
}

// FetchChunk downloads the original bytes of one chunk.
func (c *Client) FetchChunk(ctx context.Context, appID, depotID uint32, sha domain.Hash) ([]byte, error) {
	resp, err := c.get(ctx, fmt.Sprintf("/depots/%d/chunks/%s", depotID, sha))
	if err != nil {
		return nil, unavailable(fmt.Sprintf("chunk %s of depot %d", sha, depotID), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxChunkSize))
	if err != nil {
		return nil, unavailable(fmt.Sprintf("chunk %s of depot %d", sha, depotID), err)
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("delivery service returned status: %d", resp.StatusCode)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return domain.NewTransferError(domain.DeliveryUnavailable, op, err)
}

// Ping checks that the service is reachable and the token is accepted.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.get(ctx, "/ping")
	if err != nil {
		return unavailable("ping", err)
	}
	return resp.Body.Close()
}
