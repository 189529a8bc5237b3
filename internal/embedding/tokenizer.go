package embedding

import (
	"hash/fnv"
	"strings"

	"github.com/hyperjump/norma/internal/keyword"
)

// Tokenizer produces model inputs for BERT-style encoders.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// Special token ids shared by BERT vocabularies.
const (
	clsToken  = 101
	sepToken  = 102
	vocabSize = 30000
)

// HashTokenizer maps folded words to hashed vocabulary ids. It stands in for a real
// WordPiece vocabulary when only the ONNX graph is shipped.
type HashTokenizer struct{}

// Tokenize produces [CLS] w1 .. wn [SEP] padded to maxTokens.
func (t *HashTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 2 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = clsToken
	attentionMask[0] = 1
	pos := 1
	for _, word := range strings.Fields(keyword.FoldText(text)) {
		if pos >= maxTokens-1 {
			break
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		inputIDs[pos] = int64(h.Sum32()%(vocabSize-1000)) + 1000
		attentionMask[pos] = 1
		pos++
	}
	inputIDs[pos] = sepToken
	attentionMask[pos] = 1
	return inputIDs, attentionMask, tokenTypeIDs
}
