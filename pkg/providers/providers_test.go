package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paraflow/paraflow/pkg/config"
)

func TestSupportedProvidersIncludesRegistered(t *testing.T) {
	supported := SupportedProviders()
	want := map[string]bool{ProviderOpenRouter: false, ProviderOpenAI: false}
	for _, name := range supported {
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Fatalf("expected provider %q in supported list %v", name, supported)
		}
	}
}

func TestNormalizeProviderNameDefaultsToOpenRouter(t *testing.T) {
	if got := NormalizeProviderName(""); got != ProviderOpenRouter {
		t.Fatalf("empty name normalized to %q, want %q", got, ProviderOpenRouter)
	}
	if got := NormalizeProviderName("  OpenAI "); got != ProviderOpenAI {
		t.Fatalf("normalized to %q, want %q", got, ProviderOpenAI)
	}
}

func TestCreateProviderUnsupported(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Assistant.Provider = "nosuch"
	if _, err := CreateProvider(cfg); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestCreateProviderMissingKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Assistant.Provider = ProviderOpenRouter
	if _, err := CreateProvider(cfg); err == nil {
		t.Fatal("expected error when OpenRouter key is unset")
	}

	cfg.Assistant.Provider = ProviderOpenAI
	if _, err := CreateProvider(cfg); err == nil {
		t.Fatal("expected error when OpenAI key is unset")
	}
}

func TestChatRoundTrip(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{
					"message":       map[string]interface{}{"content": "hello back"},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
		})
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.Assistant.Provider = ProviderOpenRouter
	cfg.Providers.OpenRouter.APIKey = "sk-test"
	cfg.Providers.OpenRouter.APIBase = server.URL

	provider, err := CreateProvider(cfg)
	if err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}

	resp, err := provider.Chat(context.Background(), []Message{{Role: "user", Content: "hello"}}, "", map[string]interface{}{
		"temperature": 0.3,
		"max_tokens":  256,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if resp.Content != "hello back" {
		t.Fatalf("content = %q, want %q", resp.Content, "hello back")
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 5 {
		t.Fatalf("usage = %+v, want total 5", resp.Usage)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotBody["model"] != "openai/gpt-4o-mini" {
		t.Fatalf("model = %v, want default model", gotBody["model"])
	}
	if gotBody["temperature"] != 0.3 {
		t.Fatalf("temperature = %v", gotBody["temperature"])
	}
	if gotBody["max_tokens"] != float64(256) {
		t.Fatalf("max_tokens = %v", gotBody["max_tokens"])
	}
}

func TestChatAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key","type":"auth_error"}}`))
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.Providers.OpenRouter.APIKey = "sk-bad"
	cfg.Providers.OpenRouter.APIBase = server.URL

	provider, err := CreateProvider(cfg)
	if err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}

	_, err = provider.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, "", nil)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "invalid api key") {
		t.Fatalf("error %q should carry upstream message", err)
	}
	if !strings.Contains(err.Error(), "status=401") {
		t.Fatalf("error %q should carry status", err)
	}
}

func TestChatListContentFlattened(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":[{"type":"text","text":"part one "},{"type":"text","text":"part two"}]},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.Providers.OpenRouter.APIKey = "sk-test"
	cfg.Providers.OpenRouter.APIBase = server.URL

	provider, err := CreateProvider(cfg)
	if err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}

	resp, err := provider.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, "", nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "part one part two" {
		t.Fatalf("content = %q", resp.Content)
	}
}

func TestOpenAIFileTokenSource(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "openai.key")
	if err := os.WriteFile(keyPath, []byte("sk-from-file\n"), 0600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.Assistant.Provider = ProviderOpenAI
	cfg.Providers.OpenAI.APIKeyFile = keyPath
	cfg.Providers.OpenAI.APIBase = server.URL

	provider, err := CreateProvider(cfg)
	if err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}

	if _, err := provider.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, "gpt-4o-mini", nil); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if gotAuth != "Bearer sk-from-file" {
		t.Fatalf("auth header = %q, want token from file", gotAuth)
	}
}

func TestExtractAPIError(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"nested error message", `{"error":{"message":"rate limited"}}`, "rate limited"},
		{"top-level message", `{"message":"bad request"}`, "bad request"},
		{"plain text", "upstream exploded", "upstream exploded"},
		{"empty", "", "empty response body"},
	}
	for _, tc := range cases {
		if got := extractAPIError([]byte(tc.body)); got != tc.want {
			t.Fatalf("%s: extractAPIError = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestOptionHelpers(t *testing.T) {
	opts := map[string]interface{}{
		"max_tokens":  float64(512),
		"temperature": 0.2,
		"bogus":       "nope",
	}
	if v, ok := optionAsInt(opts, "max_tokens"); !ok || v != 512 {
		t.Fatalf("optionAsInt = %d,%v", v, ok)
	}
	if v, ok := optionAsFloat(opts, "temperature"); !ok || v != 0.2 {
		t.Fatalf("optionAsFloat = %f,%v", v, ok)
	}
	if _, ok := optionAsInt(opts, "bogus"); ok {
		t.Fatal("optionAsInt should reject non-numeric value")
	}
	if _, ok := optionAsFloat(nil, "temperature"); ok {
		t.Fatal("optionAsFloat should reject nil options")
	}
}
