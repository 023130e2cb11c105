package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

type RestClient struct {
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
}

func NewRestClient(baseURL string, headers map[string]string) *RestClient {
	return &RestClient{
		baseURL:    baseURL,
		headers:    headers,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *RestClient) setHeaders(req *http.Request, headers map[string]string) {
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
}

func (c *RestClient) doRequest(request *http.Request) ([]byte, int, error) {
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, 0, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	return body, response.StatusCode, err
}

func (c *RestClient) Get(ctx context.Context, endpoint string, headers map[string]string) ([]byte, int, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	c.setHeaders(request, headers)
	return c.doRequest(request)
}

func (c *RestClient) Head(ctx context.Context, endpoint string, headers map[string]string) ([]byte, int, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	c.setHeaders(request, headers)
	return c.doRequest(request)
}

func (c *RestClient) Post(ctx context.Context, endpoint string, body any, headers map[string]string) ([]byte, int, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, 0, err
	}
	c.setHeaders(request, headers)
	return c.doRequest(request)
}

// PostRaw sends a preassembled payload without JSON re-encoding. Bulk ingestion
// uses it for NDJSON bodies, which are not a single JSON document.
func (c *RestClient) PostRaw(ctx context.Context, endpoint string, body []byte, contentType string) ([]byte, int, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	c.setHeaders(request, nil)
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}
	return c.doRequest(request)
}

func (c *RestClient) Put(ctx context.Context, endpoint string, body any, headers map[string]string) ([]byte, int, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, 0, err
	}
	c.setHeaders(request, headers)
	return c.doRequest(request)
}

func (c *RestClient) Delete(ctx context.Context, endpoint string, headers map[string]string) ([]byte, int, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	c.setHeaders(request, headers)
	return c.doRequest(request)
}
