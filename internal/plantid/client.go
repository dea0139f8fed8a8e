// Package plantid implements the external vision classifier contract against
// the Plant.id v2 HTTP API.
package plantid

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/your-org/herbid/internal/config"
	"github.com/your-org/herbid/internal/identify"
)

const providerName = "plant.id"

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewClient(cfg config.PlantIDConfig) *Client {
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) Provider() string { return providerName }

type identifyRequest struct {
	Images       []string `json:"images"`
	Modifiers    []string `json:"modifiers"`
	PlantDetails []string `json:"plant_details"`
}

type identifyResponse struct {
	Suggestions []struct {
		PlantName    string  `json:"plant_name"`
		Probability  float64 `json:"probability"`
		PlantDetails struct {
			ScientificName  string         `json:"scientific_name"`
			CommonNames     []string       `json:"common_names"`
			URL             string         `json:"url"`
			Taxonomy        map[string]any `json:"taxonomy"`
			WikiDescription struct {
				Value    string `json:"value"`
				Citation string `json:"citation"`
			} `json:"wiki_description"`
		} `json:"plant_details"`
	} `json:"suggestions"`
	IsPlant *bool `json:"is_plant,omitempty"`
}

// Identify posts the image for classification and maps the response to the
// pipeline's contract. Non-2xx statuses and malformed bodies are failures.
func (c *Client) Identify(ctx context.Context, image []byte) (*identify.Classification, error) {
	if c.apiKey == "" {
		return nil, &identify.ExternalServiceError{
			Provider: providerName,
			Kind:     identify.KindAuth,
			Err:      errors.New("api key not configured"),
		}
	}

	reqBody, err := json.Marshal(identifyRequest{
		Images:       []string{base64.StdEncoding.EncodeToString(image)},
		Modifiers:    []string{"crops_fast", "similar_images"},
		PlantDetails: []string{"common_names", "url", "wiki_description", "taxonomy"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal identify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v2/identify", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build identify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.statusError(resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.wrap(identify.KindConnectivity, fmt.Errorf("read response: %w", err))
	}

	var parsed identifyResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, c.wrap(identify.KindConnectivity, fmt.Errorf("malformed response: %w", err))
	}

	suggestions := make([]identify.Suggestion, 0, len(parsed.Suggestions))
	for _, s := range parsed.Suggestions {
		description := s.PlantDetails.WikiDescription.Value
		if description == "" {
			description = s.PlantDetails.WikiDescription.Citation
		}
		suggestions = append(suggestions, identify.Suggestion{
			Name:           s.PlantName,
			ScientificName: s.PlantDetails.ScientificName,
			CommonNames:    s.PlantDetails.CommonNames,
			Probability:    s.Probability,
			Description:    description,
			WikiURL:        s.PlantDetails.URL,
			Taxonomy:       s.PlantDetails.Taxonomy,
			IsPlant:        parsed.IsPlant,
		})
	}

	return &identify.Classification{
		Suggestions: suggestions,
		Raw:         raw,
	}, nil
}

func (c *Client) transportError(err error) error {
	kind := identify.KindConnectivity
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		kind = identify.KindTimeout
	} else if errors.Is(err, context.DeadlineExceeded) {
		kind = identify.KindTimeout
	}
	return c.wrap(kind, err)
}

func (c *Client) statusError(status int) error {
	kind := identify.KindConnectivity
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = identify.KindAuth
	case http.StatusTooManyRequests:
		kind = identify.KindRateLimit
	}
	return c.wrap(kind, fmt.Errorf("unexpected status %d", status))
}

func (c *Client) wrap(kind identify.ServiceErrorKind, err error) error {
	return &identify.ExternalServiceError{Provider: providerName, Kind: kind, Err: err}
}
