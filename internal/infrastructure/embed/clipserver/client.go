package clipserver

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/signatlas/signrag/internal/infrastructure/resilience"
)

// Client talks to a CLIP-style embedding server that maps images and text
// into one joint vector space. Both endpoints must agree on dimensionality
// and model version; the indexer fails fast per item when they do not.
type Client struct {
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, dimension int, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

func (c *Client) Dimension() int { return c.dimension }

func (c *Client) ModelVersion() string { return c.model }

func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	request := map[string]any{
		"model": c.model,
		"text":  text,
	}
	return c.embed(ctx, "/v1/embed/text", request, "embed text")
}

func (c *Client) EmbedImage(ctx context.Context, asset []byte) ([]float32, error) {
	if len(asset) == 0 {
		return nil, fmt.Errorf("empty image payload")
	}
	request := map[string]any{
		"model": c.model,
		"image": base64.StdEncoding.EncodeToString(asset),
	}
	return c.embed(ctx, "/v1/embed/image", request, "embed image")
}

func (c *Client) embed(ctx context.Context, path string, request map[string]any, operation string) ([]float32, error) {
	var response struct {
		Embedding []float32 `json:"embedding"`
	}

	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, path, request, &response, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "clip."+strings.ReplaceAll(operation, " ", "_"), call, classifyEmbedError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded(operation, err)
	}
	if len(response.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return response.Embedding, nil
}
