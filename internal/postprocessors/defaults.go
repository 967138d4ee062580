package postprocessors

import (
	"math"

	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/postprocessors/chunker"
	"github.com/custodia-labs/docqa/internal/postprocessors/tokens"
)

// RegisterDefaults adds the built-in stages: "chunker", and "tokens"
// backed by counter.
func RegisterDefaults(r *Registry, counter driven.TokenCounter) {
	r.Register("chunker", buildChunker)
	r.Register("tokens", func(map[string]any) (driven.PostProcessor, error) {
		return tokens.New(counter), nil
	})
}

// buildChunker reads chunk_size and overlap; missing keys keep the
// chunker defaults.
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	opts := make([]chunker.Option, 0, 2)
	if n, ok := getIntFromConfig(cfg, "chunk_size"); ok {
		opts = append(opts, chunker.WithChunkSize(n))
	}
	if n, ok := getIntFromConfig(cfg, "overlap"); ok {
		opts = append(opts, chunker.WithOverlap(n))
	}
	return chunker.New(opts...), nil
}

// getIntFromConfig accepts the integer shapes TOML and JSON decoders
// produce. Fractional floats are rejected.
func getIntFromConfig(cfg map[string]any, key string) (int, bool) {
	switch v := cfg[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int(v), true
	}
	return 0, false
}
