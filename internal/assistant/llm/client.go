package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"hearth/internal/assistant/action"
	"hearth/internal/assistant/prompt"
)

const (
	requestTimeout = 30 * time.Second
	schemaURL      = "https://hearth.schemas.local/assistant-action.schema.json"
)

// Client talks to the completion endpoint. One call per user message,
// no retries: the call either yields a schema-conformant proposal or an
// error the handler turns into a generic failure reply.
type Client struct {
	endpoint   string
	apiKey     string
	deployment string
	httpClient *http.Client
	schema     *jsonschema.Schema
}

// NewClient creates a completion client for the given invoke endpoint.
// The response schema is fixed, so it is compiled here once and reused
// for every completion.
func NewClient(endpoint, apiKey string) (*Client, error) {
	schema, err := compileSchema(prompt.ResponseSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to compile response schema: %w", err)
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		schema: schema,
	}, nil
}

// SetDeployment overrides the endpoint's default model deployment.
func (c *Client) SetDeployment(deployment string) {
	c.deployment = deployment
}

// invokeRequest is the completion endpoint's request format.
type invokeRequest struct {
	Prompt             string                 `json:"prompt"`
	System             string                 `json:"system,omitempty"`
	ResponseJSONSchema map[string]interface{} `json:"response_json_schema,omitempty"`
	Strict             bool                   `json:"strict,omitempty"`
	Temperature        float64                `json:"temperature,omitempty"`
	Deployment         string                 `json:"deployment,omitempty"`
}

// invokeResponse is the completion endpoint's response format. Data is
// the schema-validated JSON object.
type invokeResponse struct {
	Data    json.RawMessage `json:"data"`
	Summary string          `json:"summary,omitempty"`
	Meta    json.RawMessage `json:"meta,omitempty"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Propose sends the assembled prompt to the completion endpoint and
// returns the proposal it chose. A reply that is not valid JSON is run
// through jsonrepair once; if it still cannot be parsed it is
// downgraded to a clarify proposal rather than an error, matching how
// an unparseable reply should read to the user ("I didn't understand").
// A reply that parses but violates the schema is an error.
func (c *Client) Propose(ctx context.Context, p prompt.Prompt) (*action.Proposal, error) {
	reqBody := invokeRequest{
		Prompt:             p.User,
		System:             p.System,
		ResponseJSONSchema: p.Schema,
		Strict:             true,
		Deployment:         c.deployment,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("completion endpoint error (status %d): %s", resp.StatusCode, string(body))
	}

	var invResp invokeResponse
	if err := json.Unmarshal(body, &invResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if invResp.Error != nil {
		return nil, fmt.Errorf("completion endpoint error: %s", invResp.Error.Message)
	}
	if len(invResp.Data) == 0 {
		return nil, fmt.Errorf("empty completion response")
	}

	return ParseProposal(invResp.Data, c.schema)
}

// ParseProposal decodes raw completion output into a Proposal,
// salvaging almost-JSON and validating against the precompiled response
// schema.
func ParseProposal(data []byte, schema *jsonschema.Schema) (*action.Proposal, error) {
	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(string(data))
		if repairErr != nil {
			return unparseable(), nil
		}
		if err := json.Unmarshal([]byte(repaired), &decoded); err != nil {
			return unparseable(), nil
		}
		data = []byte(repaired)
	}

	if schema != nil {
		if err := schema.Validate(decoded); err != nil {
			return nil, fmt.Errorf("completion response violates schema: %w", err)
		}
	}

	var proposal action.Proposal
	if err := json.Unmarshal(data, &proposal); err != nil {
		return nil, fmt.Errorf("failed to decode proposal: %w", err)
	}
	if proposal.ActionType == "" {
		return nil, fmt.Errorf("completion response missing action_type")
	}
	return &proposal, nil
}

func compileSchema(schema map[string]interface{}) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
}

// unparseable downgrades a reply that is not JSON at all into a clarify
// proposal with no question; the interpreter substitutes its default
// "didn't understand" wording.
func unparseable() *action.Proposal {
	return &action.Proposal{ActionType: action.TypeClarify}
}
