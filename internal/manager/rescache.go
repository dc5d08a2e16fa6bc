package manager

import (
	"crypto/sha256"
	"encoding/hex"

	json "github.com/goccy/go-json"
	"github.com/jellydator/ttlcache/v3"

	"inferd/internal/llm"
)

// resultKey fingerprints a deterministic request. Only seeded
// generations are cached: with a fixed seed the engine output is
// reproducible, so the fingerprint fully determines the text. The
// delivery mode is not part of the key.
func resultKey(modelID, prompt string, p llm.Params) string {
	h := sha256.New()
	_ = json.NewEncoder(h).Encode(struct {
		Model  string     `json:"model"`
		Prompt string     `json:"prompt"`
		Params llm.Params `json:"params"`
	}{modelID, prompt, p})
	return hex.EncodeToString(h.Sum(nil))
}

func (m *Manager) cachedResult(key string) (llm.Result, bool) {
	item := m.results.Get(key)
	if item == nil {
		return llm.Result{}, false
	}
	return item.Value(), true
}

func (m *Manager) storeResult(key string, res llm.Result) {
	m.results.Set(key, res, ttlcache.DefaultTTL)
}
