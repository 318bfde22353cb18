package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const schemaRegistryContentType = "application/vnd.schemaregistry.v1+json"

var errSubjectNotFound = errors.New("schema subject not found")

// SchemaRegistryClient provides minimal interactions with Confluent Schema Registry.
type SchemaRegistryClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSchemaRegistryClient constructs a client with a bounded request timeout.
func NewSchemaRegistryClient(baseURL string) *SchemaRegistryClient {
	return &SchemaRegistryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// EnsureSchema returns the id of schema under subject, registering it first when the
// registry has not seen it.
func (c *SchemaRegistryClient) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	id, err := c.lookup(ctx, subject, schema)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, errSubjectNotFound) {
		return 0, err
	}
	return c.register(ctx, subject, schema)
}

func (c *SchemaRegistryClient) lookup(ctx context.Context, subject string, schema string) (int, error) {
	resp, err := c.post(ctx, fmt.Sprintf("%s/subjects/%s", c.baseURL, url.PathEscape(subject)), schema)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, errSubjectNotFound
	}
	return decodeSchemaID(resp, "lookup")
}

func (c *SchemaRegistryClient) register(ctx context.Context, subject string, schema string) (int, error) {
	resp, err := c.post(ctx, fmt.Sprintf("%s/subjects/%s/versions", c.baseURL, url.PathEscape(subject)), schema)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return decodeSchemaID(resp, "register")
}

func (c *SchemaRegistryClient) post(ctx context.Context, endpoint string, schema string) (*http.Response, error) {
	body, err := json.Marshal(map[string]any{
		"schemaType": "JSON",
		"schema":     schema,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", schemaRegistryContentType)
	return c.httpClient.Do(req)
}

func decodeSchemaID(resp *http.Response, op string) (int, error) {
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("schema registry %s error (status=%d): %s", op, resp.StatusCode, data)
	}

	var payload struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, err
	}
	return payload.ID, nil
}
