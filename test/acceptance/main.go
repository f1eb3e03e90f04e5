package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	serverURL = envOr("SERVER_URL", "http://localhost:8080")
	authToken = envOr("AUTH_TOKEN", "your-secret-token")
)

const (
	maxDuration = 2 * time.Second
	testRuns    = 5
)

type MCPRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type CallToolParams struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments,omitempty"`
}

// Analysis mirrors the fields of the server's analysis response that the
// checks below look at
type Analysis struct {
	State string `json:"state"`
	Foods []struct {
		Name      string `json:"name"`
		Nutrition struct {
			Calories int    `json:"calories"`
			Source   string `json:"source"`
		} `json:"nutrition"`
		Warnings []struct {
			Condition string `json:"condition"`
			Severity  string `json:"severity"`
		} `json:"warnings"`
	} `json:"foods"`
}

func main() {
	fmt.Printf("🧪 Running acceptance tests for Food Scan MCP Server at %s\n\n", serverURL)

	steps := []struct {
		name string
		run  func() error
	}{
		{"health endpoint (no auth)", testHealth},
		{"REST rejects missing and wrong tokens", testAuthRejected},
		{"MCP initialize with correct auth", testMCPInitialize},
		{"MCP analyze_food_labels", testMCPAnalyzeLabels},
		{"REST analyze labels with a profile", testRESTAnalyzeLabels},
		{"REST feedback round trip", testFeedback},
		{"concurrent label analysis", testConcurrentLoad},
	}

	for i, step := range steps {
		fmt.Printf("%d. Testing %s...\n", i+1, step.name)
		if err := step.run(); err != nil {
			fmt.Printf("❌ %s failed: %v\n", step.name, err)
			os.Exit(1)
		}
		fmt.Printf("✅ %s passed\n\n", step.name)
	}

	fmt.Printf("🎉 ALL TESTS PASSED!\n")
}

func testHealth() error {
	resp, err := http.Get(serverURL + "/health")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("expected status 200, got %d: %s", resp.StatusCode, body)
	}
	return nil
}

func testAuthRejected() error {
	for _, token := range []string{"", "wrong-token"} {
		status, _, err := do(http.MethodGet, "/v1/feedback", token, nil)
		if err != nil {
			return err
		}
		if status != http.StatusUnauthorized {
			return fmt.Errorf("token %q: expected 401, got %d", token, status)
		}
	}
	return nil
}

func testMCPInitialize() error {
	body, err := mcpCall(MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "initialize",
		Params: map[string]any{
			"protocolVersion": "2025-06-18",
			"capabilities":    map[string]any{},
			"clientInfo":      map[string]string{"name": "acceptance", "version": "1.0.0"},
		},
	})
	if err != nil {
		return err
	}
	if !strings.Contains(string(body), "serverInfo") {
		return fmt.Errorf("response doesn't contain expected MCP initialize result")
	}
	return nil
}

func testMCPAnalyzeLabels() error {
	var totalDuration time.Duration

	for i := 1; i <= testRuns; i++ {
		start := time.Now()
		body, err := mcpCall(MCPRequest{
			JSONRPC: "2.0",
			ID:      i + 1,
			Method:  "tools/call",
			Params: CallToolParams{
				Name:      "analyze_food_labels",
				Arguments: map[string]any{"labels": "Banana=0.9,Rock=0.1"},
			},
		})
		if err != nil {
			return fmt.Errorf("call %d: %w", i, err)
		}
		duration := time.Since(start)
		totalDuration += duration

		var rpc struct {
			Result struct {
				IsError           bool     `json:"isError"`
				StructuredContent Analysis `json:"structuredContent"`
			} `json:"result"`
		}
		if err := json.Unmarshal(body, &rpc); err != nil {
			return fmt.Errorf("call %d: failed to parse response: %w", i, err)
		}
		if rpc.Result.IsError {
			return fmt.Errorf("call %d: tool returned an error: %s", i, body)
		}
		if err := expectFoods(rpc.Result.StructuredContent, "Banana"); err != nil {
			return fmt.Errorf("call %d: %w", i, err)
		}
		if duration > maxDuration {
			return fmt.Errorf("call %d took %v, which exceeds the %v limit", i, duration, maxDuration)
		}
		fmt.Printf("   Call %d: %v\n", i, duration)
	}

	fmt.Printf("   Average: %v\n", totalDuration/testRuns)
	return nil
}

func testRESTAnalyzeLabels() error {
	status, body, err := do(http.MethodPost, "/v1/analyze/labels", authToken, map[string]any{
		"candidates": []map[string]any{{"label": "peanut butter", "confidence": 0.92}},
		"conditions": []string{"nutAllergy"},
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("expected 200, got %d: %s", status, body)
	}

	var analysis Analysis
	if err := json.Unmarshal(body, &analysis); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if err := expectFoods(analysis, "Peanut Butter"); err != nil {
		return err
	}
	warnings := analysis.Foods[0].Warnings
	if len(warnings) == 0 || warnings[0].Severity != "severe" {
		return fmt.Errorf("expected a severe nut allergy warning, got %+v", warnings)
	}
	return nil
}

func testFeedback() error {
	status, body, err := do(http.MethodPost, "/v1/feedback", authToken, map[string]any{
		"label":           "Hotdog",
		"verdict":         "incorrect",
		"corrected_label": "Corn Dog",
		"confidence":      0.8,
	})
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("expected 201, got %d: %s", status, body)
	}

	status, body, err = do(http.MethodPost, "/v1/analyze/labels", authToken, map[string]any{"labels": "hotdog=0.9"})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("expected 200, got %d: %s", status, body)
	}
	var analysis Analysis
	if err := json.Unmarshal(body, &analysis); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return expectFoods(analysis, "Corn Dog")
}

func testConcurrentLoad() error {
	const clients, requestsPerClient = 10, 5
	labels := []string{"apple=0.9", "broccoli=0.8", "salmon=0.95", "rice=0.7", "egg=0.85"}

	var wg sync.WaitGroup
	errs := make(chan error, clients*requestsPerClient)
	start := time.Now()

	for c := 0; c < clients; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			for r := 0; r < requestsPerClient; r++ {
				status, body, err := do(http.MethodPost, "/v1/analyze/labels", authToken,
					map[string]any{"labels": labels[(c+r)%len(labels)]})
				if err == nil && status != http.StatusOK {
					err = fmt.Errorf("status %d: %s", status, body)
				}
				if err != nil {
					errs <- fmt.Errorf("client %d request %d: %w", c, r, err)
				}
			}
		}(c)
	}
	wg.Wait()
	close(errs)

	if err, ok := <-errs; ok {
		return err
	}
	fmt.Printf("   %d requests from %d clients in %v\n", clients*requestsPerClient, clients, time.Since(start))
	return nil
}

func expectFoods(a Analysis, names ...string) error {
	if len(a.Foods) != len(names) {
		return fmt.Errorf("expected %d foods, got %d (state %s)", len(names), len(a.Foods), a.State)
	}
	for i, name := range names {
		if a.Foods[i].Name != name {
			return fmt.Errorf("food %d: expected %q, got %q", i, name, a.Foods[i].Name)
		}
		if a.Foods[i].Nutrition.Calories <= 0 {
			return fmt.Errorf("food %q has no calories", name)
		}
	}
	return nil
}

func do(method, path, token string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, serverURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

// mcpCall posts one JSON-RPC message and returns the result payload, reading
// through an SSE envelope when the server streams
func mcpCall(req MCPRequest) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequest(http.MethodPost, serverURL+"/mcp", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+authToken)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("expected status 200, got %d: %s", resp.StatusCode, body)
	}

	for _, line := range strings.Split(string(body), "\n") {
		if payload, ok := strings.CutPrefix(line, "data: "); ok {
			return []byte(payload), nil
		}
	}
	return body, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
