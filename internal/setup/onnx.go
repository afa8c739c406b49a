//go:build onnx

package setup

import (
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/onnx"
)

// EmbedderONNX selects the local all-MiniLM-L6-v2 embedder.
const EmbedderONNX = "onnx"

func init() {
	embedders[EmbedderONNX] = func(*Config) (memory.Embedder, func(), error) {
		emb, err := onnx.New(onnx.ConfigFromEnv())
		if err != nil {
			return nil, nil, err
		}
		return emb, func() { emb.Close() }, nil
	}
}
