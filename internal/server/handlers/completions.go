package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	apperrors "github.com/noveum/gatebench/internal/errors"
)

// Defaults for the simulated upstream.
const (
	DefaultChunks     = 20
	DefaultRetryAfter = 2 * time.Second
	DefaultModel      = "llama-3.1-8b-instant"
)

// Options shape the simulated upstream behaviour. Zero values disable the
// corresponding fault.
type Options struct {
	Chunks     int
	ChunkDelay time.Duration
	// RateLimitEvery answers every Nth request with 429.
	RateLimitEvery int
	RetryAfter     time.Duration
	// FailEvery answers every Nth request with 500.
	FailEvery int
	// RequireHeader rejects requests that do not carry this header.
	RequireHeader string
	Model         string
}

// Completions imitates an OpenAI-compatible chat completions endpoint.
type Completions struct {
	opts   Options
	served atomic.Uint64
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewCompletions returns a handler with defaults filled in.
func NewCompletions(opts Options) *Completions {
	if opts.Chunks <= 0 {
		opts.Chunks = DefaultChunks
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = DefaultRetryAfter
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	return &Completions{opts: opts, sleep: sleepContext}
}

// Served returns the number of completion requests received.
func (c *Completions) Served() uint64 {
	return c.served.Load()
}

// ServeHTTP handles POST /v1/chat/completions.
func (c *Completions) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := c.served.Add(1)

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") || strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")) == "" {
		respondWithError(w, r, apperrors.NewUnauthorizedError("Invalid API Key"))
		return
	}

	if h := c.opts.RequireHeader; h != "" && r.Header.Get(h) == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError(fmt.Sprintf("missing required header %s", h)))
		return
	}

	if every := c.opts.RateLimitEvery; every > 0 && n%uint64(every) == 0 {
		seconds := strconv.FormatFloat(c.opts.RetryAfter.Seconds(), 'f', -1, 64)
		respondWithError(w, r, apperrors.NewRateLimitedError(fmt.Sprintf(
			"Rate limit reached for model `%s`. Please try again in %ss.", c.opts.Model, seconds)))
		return
	}

	if every := c.opts.FailEvery; every > 0 && n%uint64(every) == 0 {
		respondWithError(w, r, apperrors.NewInternalError("simulated upstream failure"))
		return
	}

	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("request body is not valid JSON"))
		return
	}
	if req.Model == "" {
		req.Model = c.opts.Model
	}

	id := "chatcmpl-" + uuid.NewString()
	if !req.Stream {
		c.writeCompletion(w, id, req.Model)
		return
	}
	c.writeStream(w, r, id, req.Model)
}

func (c *Completions) writeCompletion(w http.ResponseWriter, id, model string) {
	resp := openai.ChatCompletionResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []openai.ChatCompletionChoice{{
			Index: 0,
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: strings.TrimSpace(strings.Repeat("token ", c.opts.Chunks)),
			},
			FinishReason: openai.FinishReasonStop,
		}},
		Usage: openai.Usage{CompletionTokens: c.opts.Chunks, TotalTokens: c.opts.Chunks},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func (c *Completions) writeStream(w http.ResponseWriter, r *http.Request, id, model string) {
	flusher, _ := w.(http.Flusher)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	created := time.Now().Unix()
	for i := 0; i < c.opts.Chunks; i++ {
		chunk := openai.ChatCompletionStreamResponse{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   model,
			Choices: []openai.ChatCompletionStreamChoice{{
				Index: 0,
				Delta: openai.ChatCompletionStreamChoiceDelta{Content: "token "},
			}},
		}
		if i == 0 {
			chunk.Choices[0].Delta.Role = openai.ChatMessageRoleAssistant
		}
		if i == c.opts.Chunks-1 {
			chunk.Choices[0].FinishReason = openai.FinishReasonStop
		}
		if err := writeEvent(w, chunk); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		if c.opts.ChunkDelay > 0 && i < c.opts.Chunks-1 {
			if err := c.sleep(r.Context(), c.opts.ChunkDelay); err != nil {
				return
			}
		}
	}

	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, chunk openai.ChatCompletionStreamResponse) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
