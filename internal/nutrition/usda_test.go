package nutrition

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/noot-app/foodscan-mcp-server/internal/config"
	"github.com/noot-app/foodscan-mcp-server/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const appleSearchResponse = `{
	"totalHits": 1,
	"foods": [{
		"fdcId": 171688,
		"description": "Apples, raw, with skin",
		"servingSize": 182,
		"servingSizeUnit": "g",
		"foodNutrients": [
			{"nutrientId": 1008, "nutrientName": "Energy", "unitName": "KCAL", "value": 52.4},
			{"nutrientId": 1003, "nutrientName": "Protein", "unitName": "G", "value": 0.26},
			{"nutrientId": 1005, "nutrientName": "Carbohydrate", "unitName": "G", "value": 13.8},
			{"nutrientId": 1004, "nutrientName": "Total lipid (fat)", "unitName": "G", "value": 0.17},
			{"nutrientId": 1079, "nutrientName": "Fiber", "unitName": "G", "value": 2.4},
			{"nutrientId": 2000, "nutrientName": "Sugars", "unitName": "G", "value": 10.4},
			{"nutrientId": 1093, "nutrientName": "Sodium", "unitName": "MG", "value": 1},
			{"nutrientId": 1162, "nutrientName": "Vitamin C", "unitName": "MG", "value": 4.6}
		]
	}]
}`

func TestUSDAClient_Lookup(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/foods/search", r.URL.Path)
		gotQuery = map[string]string{
			"api_key":  r.URL.Query().Get("api_key"),
			"query":    r.URL.Query().Get("query"),
			"dataType": r.URL.Query().Get("dataType"),
			"pageSize": r.URL.Query().Get("pageSize"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(appleSearchResponse))
	}))
	defer srv.Close()

	client := NewUSDAClient(srv.URL+"/", "test-key", 5*time.Second, config.NewTestLogger(io.Discard, "debug"))
	rec, err := client.Lookup(context.Background(), "apple")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"api_key":  "test-key",
		"query":    "apple",
		"dataType": "Foundation,SR Legacy",
		"pageSize": "1",
	}, gotQuery)

	assert.Equal(t, "Apples, raw, with skin", rec.FoodName)
	assert.Equal(t, 52, rec.Calories)
	assert.InDelta(t, 0.26, rec.Protein, 0.0001)
	assert.InDelta(t, 13.8, rec.Carbs, 0.0001)
	assert.InDelta(t, 0.17, rec.Fat, 0.0001)
	require.NotNil(t, rec.Fiber)
	assert.InDelta(t, 2.4, *rec.Fiber, 0.0001)
	require.NotNil(t, rec.VitaminC)
	assert.Nil(t, rec.Cholesterol)
	require.NotNil(t, rec.ServingSize)
	assert.Equal(t, 182.0, *rec.ServingSize)
	assert.Equal(t, types.SourceRemote, rec.Source)
}

func TestUSDAClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrRateLimited)
			},
		},
		{
			name:   "server error is terminal status",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				var se *StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, 500, se.Code)
				assert.NotErrorIs(t, err, ErrTransport)
			},
		},
		{
			name:   "forbidden is terminal status",
			status: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				var se *StatusError
				assert.True(t, errors.As(err, &se))
			},
		},
		{
			name:   "empty foods is no match",
			status: http.StatusOK,
			body:   `{"totalHits": 0, "foods": []}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNoMatch)
			},
		},
		{
			name:   "bad json is malformed",
			status: http.StatusOK,
			body:   `{"foods": [`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedResponse)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewUSDAClient(srv.URL, "k", 5*time.Second, config.NewTestLogger(io.Discard, "debug"))
			rec, err := client.Lookup(context.Background(), "durian")
			assert.Nil(t, rec)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestUSDAClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewUSDAClient(url, "k", time.Second, config.NewTestLogger(io.Discard, "debug"))
	_, err := client.Lookup(context.Background(), "apple")
	assert.ErrorIs(t, err, ErrTransport)
}
