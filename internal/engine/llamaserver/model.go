package llamaserver

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"inferd/internal/engine"
)

// callTimeout bounds the short, non-streaming calls (tokenize, props).
const callTimeout = 30 * time.Second

// Model is the client side of one served model.
type Model struct {
	eng      *Engine
	path     string
	baseURL  string
	external bool

	cachePrompt bool
}

var _ engine.Model = (*Model)(nil)

type tokenizeRequest struct {
	Content string `json:"content"`
	// AddSpecial asks for the model's special prefix tokens, matching what
	// a completion call sees. Older servers ignore the field.
	AddSpecial bool `json:"add_special"`
}

type detokenizeRequest struct {
	Tokens []int32 `json:"tokens"`
}

// Tokenize asks the server for the token ids of text.
func (m *Model) Tokenize(text string) ([]int32, error) {
	var out struct {
		Tokens []int32 `json:"tokens"`
	}
	if err := m.post("/tokenize", tokenizeRequest{Content: text, AddSpecial: true}, &out); err != nil {
		return nil, err
	}
	return out.Tokens, nil
}

// Detokenize renders token ids back to text.
func (m *Model) Detokenize(toks []int32) ([]byte, error) {
	var out struct {
		Content string `json:"content"`
	}
	if err := m.post("/detokenize", detokenizeRequest{Tokens: toks}, &out); err != nil {
		return nil, err
	}
	return []byte(out.Content), nil
}

// EOS is unknown over HTTP; banning end of sequence goes through the
// ignore_eos request field instead of a token id.
func (m *Model) EOS() int32 { return -1 }

// SetCache switches server-side prompt caching on. The KV memory lives in
// the server process; only the cache_prompt flag crosses the wire.
func (m *Model) SetCache(c engine.Cache) error {
	if _, ok := c.(*Cache); !ok {
		return fmt.Errorf("cache %T does not belong to this engine", c)
	}
	m.cachePrompt = true
	return nil
}

// completionRequest is the native /completion payload. Zero-valued
// sampling fields are omitted so the server applies its own defaults.
type completionRequest struct {
	Prompt        string   `json:"prompt"`
	NPredict      int      `json:"n_predict,omitempty"`
	Temperature   float32  `json:"temperature,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	TopP          float32  `json:"top_p,omitempty"`
	RepeatPenalty float32  `json:"repeat_penalty,omitempty"`
	TFSZ          float32  `json:"tfs_z,omitempty"`
	Mirostat      int      `json:"mirostat,omitempty"`
	MirostatTau   float32  `json:"mirostat_tau,omitempty"`
	MirostatEta   float32  `json:"mirostat_eta,omitempty"`
	Seed          int      `json:"seed,omitempty"`
	Stop          []string `json:"stop,omitempty"`
	IgnoreEOS     bool     `json:"ignore_eos,omitempty"`
	CachePrompt   bool     `json:"cache_prompt,omitempty"`
	Stream        bool     `json:"stream"`
}

// completionChunk is one streamed /completion frame.
type completionChunk struct {
	Content      string `json:"content"`
	Stop         bool   `json:"stop"`
	StoppedEOS   bool   `json:"stopped_eos"`
	StoppedWord  bool   `json:"stopped_word"`
	StoppedLimit bool   `json:"stopped_limit"`
}

// Complete streams chunks from /completion. The one logits processor the
// server can honor is the end-of-sequence ban, which maps onto ignore_eos;
// anything else is refused rather than silently dropped.
func (m *Model) Complete(ctx context.Context, prompt string, p engine.CompletionParams, procs []engine.LogitsProcessor, emit func(engine.Chunk) bool) (string, error) {
	payload := completionRequest{
		Prompt:        prompt,
		NPredict:      p.MaxTokens,
		Temperature:   p.Temperature,
		TopK:          p.TopK,
		TopP:          p.TopP,
		RepeatPenalty: p.RepeatPenalty,
		TFSZ:          p.TFSZ,
		Mirostat:      p.Mirostat,
		MirostatTau:   p.MirostatTau,
		MirostatEta:   p.MirostatEta,
		Seed:          p.Seed,
		Stop:          p.Stop,
		CachePrompt:   m.cachePrompt,
		Stream:        true,
	}
	for _, proc := range procs {
		switch proc.(type) {
		case engine.EOSBan, *engine.EOSBan:
			payload.IgnoreEOS = true
		default:
			return "", engine.ErrUnsupported("logits processors")
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := m.eng.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("llama-server /completion: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	r := bufio.NewReader(resp.Body)
	reason := engine.ReasonStop
	for {
		line, err := r.ReadString('\n')
		if l := strings.TrimSpace(line); l != "" && strings.HasPrefix(strings.ToLower(l), "data:") {
			data := strings.TrimSpace(l[len("data:"):])
			if data == "[DONE]" {
				break
			}
			var chunk completionChunk
			if uerr := json.Unmarshal([]byte(data), &chunk); uerr != nil {
				m.eng.log.Warn().Str("line", l).Msg("unparseable completion stream line")
			} else {
				if chunk.Content != "" {
					if !emit(engine.Chunk{Text: chunk.Content}) {
						// Dropping the connection stops the server-side
						// generation.
						return "", nil
					}
				}
				if chunk.Stop {
					if chunk.StoppedLimit {
						reason = engine.ReasonLength
					}
					return reason, nil
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", err
		}
	}
	return reason, nil
}

// Close stops the spawned server behind this model. Attached servers are
// left running; the operator owns them.
func (m *Model) Close() error {
	if m.external {
		return nil
	}
	m.eng.stop(m.path)
	return nil
}

// post sends a JSON request and decodes a JSON reply.
func (m *Model) post(route string, in, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+route, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := m.eng.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("llama-server %s: %s: %s", route, resp.Status, strings.TrimSpace(string(b)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type propsResponse struct {
	DefaultGenerationSettings struct {
		NCtx int `json:"n_ctx"`
	} `json:"default_generation_settings"`
}

// logProps reports the context size the server settled on. Best effort;
// servers without /props just skip the line.
func (m *Model) logProps() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/props", nil)
	if err != nil {
		return
	}
	resp, err := m.eng.client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return
	}
	var props propsResponse
	if err := json.NewDecoder(resp.Body).Decode(&props); err != nil {
		return
	}
	if n := props.DefaultGenerationSettings.NCtx; n > 0 {
		m.eng.log.Debug().Str("model", m.path).Int("n_ctx", n).Msg("llama-server props")
	}
}
