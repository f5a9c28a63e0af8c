package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultEndpoint = "https://api.openai.com/v1/chat/completions"

const systemPrompt = `Eres un extractor experto de facturas/tickets mexicanos. Devuelve SIEMPRE JSON válido.

OBJETIVO:
- Extraer el TOTAL FINAL (monto a pagar).

REGLAS:
- No incluyas impuestos, subtotal, IVA, retenciones, propinas o envío como total.
- El "total" debe ser el total final del documento.

SALIDA JSON (siempre):
{"total": number_or_null, "currency": "MXN", "confidence_score": number_1_to_10}
Responde ÚNICAMENTE JSON válido, sin texto adicional.`

// Client extracts receipt totals through the OpenAI vision API. One HTTP
// round trip per attempt, a fixed per-attempt timeout, and at most
// 1+retries attempts on transient failures.
type Client struct {
	endpoint string
	key      string
	model    string
	retries  int
	backoff  time.Duration
	http     *http.Client
}

func NewClient(key, model string, timeout time.Duration, retries int) *Client {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &Client{
		endpoint: defaultEndpoint,
		key:      key,
		model:    model,
		retries:  retries,
		backoff:  2 * time.Second,
		http:     &http.Client{Timeout: timeout},
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type visionResult struct {
	Total           *float64 `json:"total"`
	Currency        string   `json:"currency"`
	ConfidenceScore float64  `json:"confidence_score"`
}

// ExtractTotal sends the receipt image and parses the model's JSON answer.
// Transient upstream failures are retried with a short backoff; a
// well-formed answer without a total is returned as a nil-amount success.
func (c *Client) ExtractTotal(ctx context.Context, image []byte) (Result, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Result{}, transientErr(ctx.Err())
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}

		res, err := c.attempt(ctx, image)
		if err == nil {
			return res, nil
		}
		if !IsTransient(err) {
			return Result{}, err
		}
		lastErr = err
	}
	return Result{}, lastErr
}

func (c *Client) attempt(ctx context.Context, image []byte) (Result, error) {
	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": "Analiza este ticket/factura y devuelve el JSON indicado."},
				{"type": "image_url", "image_url": map[string]string{
					"url": "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image),
				}},
			}},
		},
		"response_format": map[string]string{"type": "json_object"},
		"max_tokens":      2000,
		"temperature":     0.1,
	})
	if err != nil {
		return Result{}, permanentErr(fmt.Errorf("encoding request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, permanentErr(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, transientErr(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, transientErr(fmt.Errorf("reading response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Result{}, transientErr(fmt.Errorf("upstream status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return Result{}, permanentErr(fmt.Errorf("upstream status %d: %s", resp.StatusCode, truncate(raw, 200)))
	}

	var chat chatResponse
	if err := json.Unmarshal(raw, &chat); err != nil {
		return Result{}, permanentErr(fmt.Errorf("decoding completion: %w", err))
	}
	if len(chat.Choices) == 0 {
		return Result{}, permanentErr(fmt.Errorf("completion has no choices"))
	}

	content := stripToJSON(chat.Choices[0].Message.Content)
	var vision visionResult
	if err := json.Unmarshal([]byte(content), &vision); err != nil {
		return Result{}, permanentErr(fmt.Errorf("decoding model answer %q: %w", truncate([]byte(content), 120), err))
	}

	return Result{
		Amount:     vision.Total,
		Confidence: vision.ConfidenceScore,
		RawDetail:  content,
	}, nil
}

// stripToJSON trims anything the model wrapped around its JSON object.
func stripToJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "…"
}

var _ Extractor = (*Client)(nil)
