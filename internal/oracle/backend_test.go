package oracle

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBackend(url string) *Backend {
	return &Backend{
		BaseURL:      url,
		ClientID:     "cliente_demo",
		ClientSecret: "secreto",
	}
}

func request() Request {
	return Request{
		Blocks: []ContentBlock{
			TextBlock("instrucciones"),
			{Type: "input_file", MIMEType: "application/pdf", Filename: "liq.pdf", Data: []byte("%PDF")},
		},
		Model:         "gemini-2.5-flash",
		MaxOutputToks: 4000,
		Task:          "tarjetas",
		ClientID:      "7",
	}
}

func TestBackendSignsRequest(t *testing.T) {
	var gotBody []byte
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeader = r.Header.Clone()
		if r.URL.Path != "/v1/process" {
			t.Errorf("path = %q", r.URL.Path)
		}
		io.WriteString(w, `{"ok":true,"output_text":"CONCEPTO|TOTAL\n"}`)
	}))
	defer srv.Close()

	out, err := newBackend(srv.URL).Extract(context.Background(), request())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "CONCEPTO|TOTAL") {
		t.Errorf("out = %q", out)
	}

	for _, h := range []string{"X-Ia-Client-Id", "X-Ia-Timestamp", "X-Ia-Nonce", "X-Ia-Signature"} {
		if gotHeader.Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}
	if got := gotHeader.Get("X-Ia-Task"); got != "TARJETAS" {
		t.Errorf("task header = %q, want upper-cased TARJETAS", got)
	}
	if got := gotHeader.Get("X-Ia-Source-Filename"); got != "liq.pdf" {
		t.Errorf("source filename header = %q, want inferred from attachment", got)
	}

	// The signature must verify over timestamp.nonce.body with the shared secret.
	mac := hmac.New(sha256.New, []byte("secreto"))
	mac.Write([]byte(gotHeader.Get("X-Ia-Timestamp") + "." + gotHeader.Get("X-Ia-Nonce") + "." + string(gotBody)))
	want := hex.EncodeToString(mac.Sum(nil))
	if got := gotHeader.Get("X-Ia-Signature"); got != want {
		t.Errorf("signature = %q, want %q", got, want)
	}

	var payload map[string]any
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if payload["idcliente"] != "7" {
		t.Errorf("idcliente = %v", payload["idcliente"])
	}
	if payload["archivo_nombre"] != "liq.pdf" {
		t.Errorf("archivo_nombre = %v", payload["archivo_nombre"])
	}
}

func TestBackendFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantSub string
	}{
		{
			"http status",
			func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			"HTTP 500",
		},
		{
			"non-json body",
			func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, "<html>not json</html>")
			},
			"not valid JSON",
		},
		{
			"ok false",
			func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"ok":false,"error":"firma invalida"}`)
			},
			"firma invalida",
		},
		{
			"empty output",
			func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"ok":true,"output_text":"  "}`)
			},
			"empty model response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := newBackend(srv.URL).Extract(context.Background(), request())
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("err = %v, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestBackendMissingCredentials(t *testing.T) {
	b := &Backend{BaseURL: "http://localhost:1"}
	if _, err := b.Extract(context.Background(), request()); err == nil ||
		!strings.Contains(err.Error(), "credentials") {
		t.Errorf("err = %v, want missing credentials", err)
	}

	b = &Backend{ClientID: "x", ClientSecret: "y"}
	if _, err := b.Extract(context.Background(), request()); err == nil ||
		!strings.Contains(err.Error(), "backend URL") {
		t.Errorf("err = %v, want missing backend URL", err)
	}
}
