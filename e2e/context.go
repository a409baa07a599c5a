package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TestContext carries HTTP state between the steps of one scenario.
type TestContext struct {
	BaseURL          string
	MintingAuthority string
	IdentityHeader   string

	client       *http.Client
	caller       string
	vars         map[string]string
	lastStatus   int
	lastBody     []byte
	lastResponse map[string]any
}

// NewTestContext creates a context targeting baseURL.
func NewTestContext(baseURL, mintingAuthority string) *TestContext {
	return &TestContext{
		BaseURL:          strings.TrimRight(baseURL, "/"),
		MintingAuthority: mintingAuthority,
		IdentityHeader:   "X-Caller-Identity",
		client:           &http.Client{Timeout: 10 * time.Second},
		vars:             map[string]string{},
	}
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.caller = ""
	tc.vars = map[string]string{}
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.lastResponse = nil
}

func (tc *TestContext) SetCaller(caller string) {
	tc.caller = caller
}

func (tc *TestContext) GetMintingAuthority() string {
	return tc.MintingAuthority
}

// Remember stores a value for later {name} substitution in paths and bodies.
func (tc *TestContext) Remember(name, value string) {
	tc.vars[name] = value
}

// Expand replaces {name} placeholders with remembered values.
func (tc *TestContext) Expand(s string) string {
	for k, v := range tc.vars {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}

func (tc *TestContext) GET(path string) error {
	return tc.Do(http.MethodGet, path, nil)
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.Do(http.MethodPost, path, body)
}

func (tc *TestContext) PUT(path string, body any) error {
	return tc.Do(http.MethodPut, path, body)
}

// Do sends a request as the current caller. body may be nil, a string holding
// raw JSON, or a value to encode.
func (tc *TestContext) Do(method, path string, body any) error {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(tc.Expand(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, tc.BaseURL+tc.Expand(path), reader)
	if err != nil {
		return err
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.caller != "" {
		req.Header.Set(tc.IdentityHeader, tc.caller)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	tc.lastResponse = nil
	if len(tc.lastBody) > 0 {
		var parsed map[string]any
		if json.Unmarshal(tc.lastBody, &parsed) == nil {
			tc.lastResponse = parsed
		}
	}
	return nil
}

func (tc *TestContext) GetLastStatusCode() int {
	return tc.lastStatus
}

func (tc *TestContext) GetLastBody() string {
	return string(tc.lastBody)
}

// GetResponseField resolves a dotted path such as "events.0.action" in the
// last JSON response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	if tc.lastResponse == nil {
		return nil, fmt.Errorf("no JSON response (status %d): %s", tc.lastStatus, tc.lastBody)
	}
	var current any = tc.lastResponse
	for _, part := range strings.Split(field, ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found in %s", field, tc.lastBody)
			}
			current = v
		case []any:
			var i int
			if _, err := fmt.Sscanf(part, "%d", &i); err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %q", part, field)
			}
			current = node[i]
		default:
			return nil, fmt.Errorf("field %q does not resolve", field)
		}
	}
	return current, nil
}
