package oracle

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Backend calls the remote extraction service over signed HTTP. Every
// request carries an HMAC-SHA256 signature over timestamp.nonce.body so the
// service can authenticate clients without TLS client certs.
type Backend struct {
	BaseURL      string
	Route        string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration

	// HTTPClient overrides the default client in tests.
	HTTPClient *http.Client
}

type backendResponse struct {
	OK         *bool  `json:"ok"`
	Error      string `json:"error"`
	OutputText string `json:"output_text"`
}

func signature(secret, timestamp, nonce, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "." + nonce + "." + body))
	return hex.EncodeToString(mac.Sum(nil))
}

func dataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// wireBlocks converts content blocks to the service's JSON shape.
func wireBlocks(blocks []ContentBlock) []map[string]any {
	out := make([]map[string]any, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case "input_text":
			out = append(out, map[string]any{"type": "input_text", "text": b.Text})
		case "input_image":
			out = append(out, map[string]any{"type": "input_image", "image_url": dataURL(b.MIMEType, b.Data)})
		case "input_file":
			out = append(out, map[string]any{
				"type":      "input_file",
				"filename":  b.Filename,
				"file_data": dataURL(b.MIMEType, b.Data),
			})
		}
	}
	return out
}

// Extract sends one signed extraction request and returns the model text.
func (b *Backend) Extract(ctx context.Context, req Request) (string, error) {
	if b.BaseURL == "" {
		return "", fmt.Errorf("oracle.Backend: missing backend URL")
	}
	if b.ClientID == "" || b.ClientSecret == "" {
		return "", fmt.Errorf("oracle.Backend: missing client credentials")
	}

	task := strings.ToUpper(strings.TrimSpace(req.Task))
	source := strings.TrimSpace(req.SourceFilename)
	if source == "" {
		source = SourceFilename(req.Blocks)
	}

	payload := map[string]any{
		"model":             req.Model,
		"max_output_tokens": req.MaxOutputToks,
		"input": []map[string]any{
			{"role": "user", "content": wireBlocks(req.Blocks)},
		},
	}
	if task != "" {
		payload["task"] = task
		payload["opcion"] = task
	}
	if req.ClientID != "" {
		payload["idcliente"] = req.ClientID
	}
	if source != "" {
		// The service grew several aliases for the same field; send them all.
		for _, k := range []string{"source_filename", "archivo_nombre", "filename", "archivoNombre", "file_name"} {
			payload[k] = source
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("oracle.Backend: marshal request: %w", err)
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")

	route := b.Route
	if route == "" {
		route = "/v1/process"
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	url := strings.TrimRight(b.BaseURL, "/") + route

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("oracle.Backend: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")
	httpReq.Header.Set("X-IA-Client-Id", b.ClientID)
	httpReq.Header.Set("X-IA-Timestamp", timestamp)
	httpReq.Header.Set("X-IA-Nonce", nonce)
	httpReq.Header.Set("X-IA-Signature", signature(b.ClientSecret, timestamp, nonce, string(body)))
	if task != "" {
		httpReq.Header.Set("X-IA-Task", task)
		httpReq.Header.Set("X-IA-Opcion", task)
	}
	if req.ClientID != "" {
		httpReq.Header.Set("X-IA-IdCliente", req.ClientID)
	}
	if source != "" {
		httpReq.Header.Set("X-IA-Source-Filename", source)
		httpReq.Header.Set("X-IA-Archivo-Nombre", source)
	}

	client := b.HTTPClient
	if client == nil {
		timeout := b.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Minute
		}
		client = &http.Client{Timeout: timeout}
	}

	zerolog.Ctx(ctx).Debug().
		Str("url", url).Str("task", task).Str("source", source).
		Int("blocks", len(req.Blocks)).
		Msg("calling extraction backend")

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("oracle.Backend: backend unavailable: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("oracle.Backend: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("oracle.Backend: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed backendResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("oracle.Backend: response is not valid JSON: %w", err)
	}
	if parsed.OK != nil && !*parsed.OK {
		detail := parsed.Error
		if detail == "" {
			detail = "no detail"
		}
		return "", fmt.Errorf("oracle.Backend: backend rejected request: %s", detail)
	}
	out := strings.TrimSpace(parsed.OutputText)
	if out == "" {
		return "", fmt.Errorf("oracle.Backend: empty model response")
	}
	return out, nil
}
