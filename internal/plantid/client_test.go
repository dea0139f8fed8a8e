package plantid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/herbid/internal/config"
	"github.com/your-org/herbid/internal/identify"
)

func newTestClient(url string) *Client {
	return NewClient(config.PlantIDConfig{
		APIKey:  "test-key",
		BaseURL: url,
		Timeout: 2 * time.Second,
	})
}

func TestIdentifyMapsResponse(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Api-Key")
		assert.Equal(t, "/v2/identify", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req, "images")
		assert.Contains(t, req, "modifiers")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"suggestions": [{
				"plant_name": "Mentha spicata",
				"probability": 0.93,
				"plant_details": {
					"scientific_name": "Mentha spicata",
					"common_names": ["spearmint"],
					"url": "https://en.wikipedia.org/wiki/Mentha_spicata",
					"taxonomy": {"kingdom": "Plantae", "family": "Lamiaceae"},
					"wiki_description": {"value": "A species of mint."}
				}
			}],
			"is_plant": true
		}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	res, err := c.Identify(context.Background(), []byte("image bytes"))
	require.NoError(t, err)

	assert.Equal(t, "test-key", gotKey)
	require.Len(t, res.Suggestions, 1)

	sg := res.Suggestions[0]
	assert.Equal(t, "Mentha spicata", sg.Name)
	assert.Equal(t, 0.93, sg.Probability)
	assert.Equal(t, []string{"spearmint"}, sg.CommonNames)
	assert.Equal(t, "A species of mint.", sg.Description)
	assert.Equal(t, "Plantae", sg.Taxonomy["kingdom"])
	require.NotNil(t, sg.IsPlant)
	assert.True(t, *sg.IsPlant)
	assert.NotEmpty(t, res.Raw)
}

func TestIdentifyMissingKeyFailsFast(t *testing.T) {
	c := NewClient(config.PlantIDConfig{BaseURL: "http://unused"})

	_, err := c.Identify(context.Background(), []byte("image"))

	var extErr *identify.ExternalServiceError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, identify.KindAuth, extErr.Kind)
}

func TestIdentifyStatusMapping(t *testing.T) {
	cases := map[int]identify.ServiceErrorKind{
		http.StatusUnauthorized:        identify.KindAuth,
		http.StatusForbidden:           identify.KindAuth,
		http.StatusTooManyRequests:     identify.KindRateLimit,
		http.StatusInternalServerError: identify.KindConnectivity,
	}

	for status, wantKind := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))

		_, err := newTestClient(srv.URL).Identify(context.Background(), []byte("image"))
		srv.Close()

		var extErr *identify.ExternalServiceError
		require.ErrorAs(t, err, &extErr, "status %d", status)
		assert.Equal(t, wantKind, extErr.Kind, "status %d", status)
	}
}

func TestIdentifyMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Identify(context.Background(), []byte("image"))

	var extErr *identify.ExternalServiceError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, identify.KindConnectivity, extErr.Kind)
}

func TestIdentifyTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(config.PlantIDConfig{
		APIKey: "test-key", BaseURL: srv.URL, Timeout: 20 * time.Millisecond,
	})

	_, err := c.Identify(context.Background(), []byte("image"))

	var extErr *identify.ExternalServiceError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, identify.KindTimeout, extErr.Kind)
}
