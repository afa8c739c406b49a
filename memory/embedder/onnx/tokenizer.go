//go:build onnx

package onnx

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/goccy/go-json"
)

// Tokenizer is a BERT-style WordPiece tokenizer loaded from a Hugging Face
// tokenizer.json.
type Tokenizer struct {
	vocab map[string]int64
	cls   int64
	sep   int64
	unk   int64
}

// LoadTokenizer reads the WordPiece vocabulary from tokenizer.json.
func LoadTokenizer(path string) (*Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file struct {
		Model struct {
			Vocab map[string]int64 `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(file.Model.Vocab) == 0 {
		return nil, fmt.Errorf("%s has no vocabulary", path)
	}

	t := &Tokenizer{vocab: file.Model.Vocab}
	special := map[string]*int64{"[CLS]": &t.cls, "[SEP]": &t.sep, "[UNK]": &t.unk}
	for token, dst := range special {
		id, ok := t.vocab[token]
		if !ok {
			return nil, fmt.Errorf("%s is missing special token %s", path, token)
		}
		*dst = id
	}
	return t, nil
}

// VocabSize returns the number of vocabulary entries.
func (t *Tokenizer) VocabSize() int {
	return len(t.vocab)
}

// Encode returns input IDs and attention mask padded to maxLen:
// [CLS] tokens... [SEP] followed by zero padding.
func (t *Tokenizer) Encode(text string, maxLen int) (ids, mask []int64) {
	ids = make([]int64, maxLen)
	mask = make([]int64, maxLen)

	tokens := t.Tokenize(text)
	if len(tokens) > maxLen-2 {
		tokens = tokens[:maxLen-2]
	}

	ids[0], mask[0] = t.cls, 1
	for i, tok := range tokens {
		ids[i+1], mask[i+1] = tok, 1
	}
	end := len(tokens) + 1
	ids[end], mask[end] = t.sep, 1
	return ids, mask
}

// Tokenize converts text to token IDs (uncased BERT basic tokenization
// followed by greedy longest-match WordPiece).
func (t *Tokenizer) Tokenize(text string) []int64 {
	var ids []int64
	for _, word := range basicTokenize(text) {
		ids = append(ids, t.wordPiece(word)...)
	}
	return ids
}

func (t *Tokenizer) wordPiece(word string) []int64 {
	if id, ok := t.vocab[word]; ok {
		return []int64{id}
	}

	var ids []int64
	runes := []rune(word)
	for start := 0; start < len(runes); {
		end := len(runes)
		var match int64 = -1
		for ; end > start; end-- {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				match = id
				break
			}
		}
		if match < 0 {
			// An unmatched word maps to a single [UNK]
			return []int64{t.unk}
		}
		ids = append(ids, match)
		start = end
	}
	return ids
}

// basicTokenize lowercases, splits on whitespace and isolates punctuation.
func basicTokenize(text string) []string {
	var words []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			words = append(words, b.String())
			b.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return words
}
