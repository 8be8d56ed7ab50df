package claude_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/internal/config"
	"folio/internal/domain"
	"folio/internal/oracle"
	"folio/internal/oracle/claude"
	"folio/internal/port"
)

const answer = `{"associations":[{"element_id":"F0","caption_id":"t1","confidence":0.9,"reasoning":"directly below"}],"unmatched_figures_tables":[],"identified_captions":["t1"]}`

func newTestOracle(serverURL string) *claude.Oracle {
	return claude.NewOracleWithEndpoint(&config.OracleProviderConfig{
		Provider:     "claude",
		APIKey:       "test-api-key",
		DefaultModel: "claude-sonnet-4-20250514",
		TimeoutSecs:  30,
	}, serverURL)
}

func testInput() port.OracleInput {
	return port.OracleInput{
		Image:       []byte("\x89PNG fake"),
		ContentType: "image/png",
		Width:       100,
		Height:      100,
		Boxes: []port.AnnotatedBox{
			{ID: "F0", Label: domain.LabelFigure, BBox: [4]float64{0, 0, 50, 50}},
			{ID: "t1", Label: domain.LabelText, BBox: [4]float64{0, 55, 50, 70}},
		},
	}
}

func TestClaudeOracle_Associate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var reqBody map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "claude-sonnet-4-20250514", reqBody["model"])

		messages := reqBody["messages"].([]interface{})
		content := messages[0].(map[string]interface{})["content"].([]interface{})
		if !assert.Len(t, content, 2) {
			return
		}
		imageBlock := content[0].(map[string]interface{})
		assert.Equal(t, "image", imageBlock["type"])
		source := imageBlock["source"].(map[string]interface{})
		assert.Equal(t, "image/png", source["media_type"])
		textBlock := content[1].(map[string]interface{})
		assert.Contains(t, textBlock["text"], "F0: Figure")

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content":     []map[string]interface{}{{"type": "text", "text": answer}},
			"stop_reason": "end_turn",
		})
	}))
	defer server.Close()

	out, err := newTestOracle(server.URL).Associate(context.Background(), testInput())
	require.NoError(t, err)
	require.Len(t, out.Associations, 1)
	assert.Equal(t, "F0", out.Associations[0].PrimaryID)
	assert.Equal(t, "t1", out.Associations[0].CaptionID)
	assert.Equal(t, "claude-sonnet-4-20250514", out.ModelUsed)
}

func TestClaudeOracle_Associate_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "17")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate_limit"}`))
	}))
	defer server.Close()

	_, err := newTestOracle(server.URL).Associate(context.Background(), testInput())
	var rlErr *oracle.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, "claude", rlErr.Provider)
	assert.Equal(t, 17.0, rlErr.RetryAfter.Seconds())
}

func TestClaudeOracle_Associate_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`oops`))
	}))
	defer server.Close()

	_, err := newTestOracle(server.URL).Associate(context.Background(), testInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestClaudeOracle_Associate_Truncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content":     []map[string]interface{}{{"type": "text", "text": `{"associations":[`}},
			"stop_reason": "max_tokens",
		})
	}))
	defer server.Close()

	_, err := newTestOracle(server.URL).Associate(context.Background(), testInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_tokens")
}

func TestClaudeOracle_Associate_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]interface{}{{"type": "text", "text": "F0 is captioned by t1"}},
		})
	}))
	defer server.Close()

	_, err := newTestOracle(server.URL).Associate(context.Background(), testInput())
	assert.ErrorIs(t, err, domain.ErrInvalidOracleResponse)
}

func TestClaudeOracle_Associate_UnsupportedContentType(t *testing.T) {
	in := testInput()
	in.ContentType = "application/pdf"
	_, err := newTestOracle("http://127.0.0.1:1").Associate(context.Background(), in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported content type")
}
