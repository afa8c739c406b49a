//go:build onnx

// Package onnx embeds text locally with a sentence-transformer model
// (all-MiniLM-L6-v2 by default) through ONNX Runtime. Build with -tags onnx.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvLibraryPath   = "ONNX_LIBRARY_PATH"
	EnvModelPath     = "ONNX_MODEL_PATH"
	EnvTokenizerPath = "ONNX_TOKENIZER_PATH"
)

// MaxSequenceLength is the token window fed to the model, [CLS] and [SEP] included.
const MaxSequenceLength = 128

// Config configures the ONNX embedder.
type Config struct {
	// LibraryPath points at libonnxruntime. Empty uses the loader's default.
	LibraryPath string

	// ModelPath is the path to the ONNX model file.
	ModelPath string

	// TokenizerPath is the path to the tokenizer.json file.
	TokenizerPath string

	// Dimensions is the embedding vector size (default: 384 for all-MiniLM-L6-v2).
	Dimensions int
}

// ConfigFromEnv reads paths from ONNX_* environment variables.
func ConfigFromEnv() Config {
	return Config{
		LibraryPath:   os.Getenv(EnvLibraryPath),
		ModelPath:     os.Getenv(EnvModelPath),
		TokenizerPath: os.Getenv(EnvTokenizerPath),
	}
}

var (
	initOnce sync.Once
	initErr  error
)

// initRuntime initializes the process-wide ONNX environment once.
func initRuntime(libraryPath string) error {
	initOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		initErr = ort.InitializeEnvironment()
	})
	return initErr
}

// Embedder generates embeddings using ONNX Runtime.
type Embedder struct {
	mu         sync.Mutex // sessions are not safe for concurrent Run
	session    *ort.DynamicAdvancedSession
	tokenizer  *Tokenizer
	dimensions int
}

// New creates a new ONNX embedder.
func New(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("onnx: ModelPath is required")
	}
	if cfg.TokenizerPath == "" {
		return nil, errors.New("onnx: TokenizerPath is required")
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 384
	}

	if err := initRuntime(cfg.LibraryPath); err != nil {
		return nil, fmt.Errorf("initialize ONNX runtime: %w", err)
	}

	tokenizer, err := LoadTokenizer(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	inputNames := []string{"input_ids", "attention_mask", "token_type_ids"}
	outputNames := []string{"last_hidden_state"}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputNames, outputNames, nil)
	if err != nil {
		return nil, fmt.Errorf("create ONNX session: %w", err)
	}

	log.Infof("[ONNX] Loaded model %s (%d dims, vocab %d)", cfg.ModelPath, cfg.Dimensions, tokenizer.VocabSize())

	return &Embedder{
		session:    session,
		tokenizer:  tokenizer,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed converts text to embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inputIDs, attentionMask := e.tokenizer.Encode(text, MaxSequenceLength)
	tokenTypeIDs := make([]int64, MaxSequenceLength)

	// Order matches the session's input names
	shape := ort.NewShape(1, MaxSequenceLength)
	var inputs []ort.Value
	defer func() {
		for _, v := range inputs {
			v.Destroy()
		}
	}()
	for _, data := range [][]int64{inputIDs, attentionMask, tokenTypeIDs} {
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("create input tensor: %w", err)
		}
		inputs = append(inputs, t)
	}

	// Outputs are allocated by Run
	outputs := []ort.Value{nil}

	e.mu.Lock()
	err := e.session.Run(inputs, outputs)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("ONNX inference failed: %w", err)
	}
	defer func() {
		for _, output := range outputs {
			if output != nil {
				output.Destroy()
			}
		}
	}()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.New("unexpected output tensor type")
	}

	embedding, err := pool(tensor.GetData(), tensor.GetShape(), attentionMask, e.dimensions)
	if err != nil {
		return nil, err
	}
	return normalize(embedding), nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Close releases ONNX resources.
func (e *Embedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}

// pool reduces model output to one vector. Pooled output ([1, dims]) is
// copied; token output ([1, seq, dims]) is mean-pooled over attended tokens.
func pool(data []float32, shape ort.Shape, attentionMask []int64, dims int) ([]float32, error) {
	embedding := make([]float32, dims)

	switch len(shape) {
	case 2:
		if len(data) < dims {
			return nil, fmt.Errorf("output dimension mismatch: got %d, expected %d", len(data), dims)
		}
		copy(embedding, data[:dims])
		return embedding, nil

	case 3:
		if shape[0] != 1 {
			return nil, fmt.Errorf("expected batch size 1, got %d", shape[0])
		}
		if shape[2] != int64(dims) {
			return nil, fmt.Errorf("hidden size mismatch: got %d, expected %d", shape[2], dims)
		}
		var attended float32
		for i := 0; i < int(shape[1]) && i < len(attentionMask); i++ {
			if attentionMask[i] == 0 {
				continue
			}
			attended++
			offset := i * dims
			for j := 0; j < dims; j++ {
				embedding[j] += data[offset+j]
			}
		}
		if attended == 0 {
			return nil, errors.New("no attended tokens")
		}
		for j := range embedding {
			embedding[j] /= attended
		}
		return embedding, nil
	}

	return nil, fmt.Errorf("unexpected output shape: %v", shape)
}

// normalize converts embedding to unit vector.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec
}
