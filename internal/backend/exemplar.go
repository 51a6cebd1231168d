package backend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lucasnoah/compiletutor/internal/prompt"
)

// DefaultAnswerCacheSize bounds the exemplar pipeline's answer cache.
const DefaultAnswerCacheSize = 256

// ExemplarRuntime loads a retrieval pipeline that answers from the built-in
// catalog of common compiler errors. It reads the model's tokenizer and
// generation config so output limits behave like the real model's.
type ExemplarRuntime struct {
	CacheSize int
}

type tokenizerFile struct {
	Model struct {
		Type  string          `json:"type"`
		Vocab json.RawMessage `json:"vocab"`
	} `json:"model"`
}

type generationConfig struct {
	MaxNewTokens int `json:"max_new_tokens"`
	MaxLength    int `json:"max_length"`
}

// Load parses tokenizer.json and config.json from the verified artifacts.
func (r ExemplarRuntime) Load(_ context.Context, a Artifacts) (Pipeline, error) {
	vocab, err := loadVocab(a.Tokenizer)
	if err != nil {
		return nil, err
	}
	var gen generationConfig
	if a.Config != "" {
		data, err := os.ReadFile(a.Config)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, &gen); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", a.Config, err)
		}
	}
	size := r.CacheSize
	if size <= 0 {
		size = DefaultAnswerCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	limit := gen.MaxNewTokens
	if limit == 0 {
		limit = gen.MaxLength
	}
	return &exemplarPipeline{vocab: vocab, limit: limit, cache: cache}, nil
}

// loadVocab accepts both the map form (BPE, WordPiece) and the list-of-pairs
// form (Unigram) of model.vocab.
func loadVocab(path string) (map[string]struct{}, error) {
	if path == "" {
		return nil, fmt.Errorf("tokenizer path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer: %w", err)
	}
	var tf tokenizerFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse tokenizer %s: %w", path, err)
	}

	vocab := make(map[string]struct{})
	var asMap map[string]int
	if err := json.Unmarshal(tf.Model.Vocab, &asMap); err == nil {
		for tok := range asMap {
			vocab[tok] = struct{}{}
		}
		return vocab, nil
	}
	var asPairs [][]json.RawMessage
	if err := json.Unmarshal(tf.Model.Vocab, &asPairs); err != nil {
		return nil, fmt.Errorf("tokenizer %s: unsupported vocab format", path)
	}
	for _, pair := range asPairs {
		if len(pair) == 0 {
			continue
		}
		var tok string
		if json.Unmarshal(pair[0], &tok) == nil {
			vocab[tok] = struct{}{}
		}
	}
	return vocab, nil
}

type exemplarPipeline struct {
	vocab map[string]struct{}
	limit int
	cache *lru.Cache[string, string]
}

// Generate answers deterministically; temperature and repetition penalty
// have no effect.
func (p *exemplarPipeline) Generate(ctx context.Context, input string, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	limit := opts.MaxNewTokens
	if limit <= 0 {
		limit = p.limit
	}

	sum := sha256.Sum256([]byte(input))
	key := fmt.Sprintf("%s:%d", hex.EncodeToString(sum[:]), limit)
	if text, ok := p.cache.Get(key); ok {
		return text, nil
	}

	text := p.truncate(explain(input), limit)
	p.cache.Add(key, text)
	return text, nil
}

func explain(input string) string {
	if q, ok := latestQuestion(input); ok {
		return answerFollowUp(q)
	}
	if strings.Contains(input, prompt.NoErrorMarker) {
		return "Your program compiled and ran without errors. " +
			"It works because every statement is complete and every name it uses is declared before use. " +
			"Concept: declaring variables and functions before using them."
	}
	ex, ok := prompt.Match(input)
	if !ok {
		return "The compiler or the program reported a problem. " +
			"Read the first error line: it names the file, the line and what the compiler expected. " +
			"Look at that line and the one just before it. " +
			"Rule to remember: fix the first error first, later errors often follow from it."
	}
	return describeExemplar(ex)
}

func describeExemplar(ex prompt.Exemplar) string {
	return "Error Overview: " + ex.Error + "\n" +
		"What the Error Means: " + ex.Meaning + "\n" +
		"Hint: look at code shaped like this:\n" + ex.BadCode + "\n" +
		"Rule to Remember: " + ex.Rule
}

// latestQuestion extracts the last user turn from a rendered conversation.
// It reports false for a single prompt.
func latestQuestion(input string) (string, bool) {
	const userTag, replyTag = "\n\nUser: ", "Assistant:"
	if !strings.HasSuffix(input, replyTag) {
		return "", false
	}
	i := strings.LastIndex(input, userTag)
	if i < 0 {
		return "", false
	}
	return strings.TrimSpace(input[i+len(userTag) : len(input)-len(replyTag)]), true
}

// answerFollowUp looks only at the question, so earlier turns that quote an
// error do not decide every later answer.
func answerFollowUp(question string) string {
	if ex, ok := prompt.Match(question); ok {
		return describeExemplar(ex)
	}
	return fmt.Sprintf("You asked: %q. ", question) +
		"Go back to the line the first error names and compare it with the rule from the explanation above. " +
		"Change one thing at a time and compile again to see which error goes away."
}

// truncate keeps at most limit tokens and returns text unchanged when it
// fits. A word costs one token when the vocabulary knows it, else one per rune.
func (p *exemplarPipeline) truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	var (
		b    strings.Builder
		used int
	)
	for i, word := range strings.Fields(text) {
		cost := p.cost(word)
		if used+cost > limit {
			return b.String()
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
		used += cost
	}
	return text
}

func (p *exemplarPipeline) cost(word string) int {
	if _, ok := p.vocab[word]; ok {
		return 1
	}
	if _, ok := p.vocab["▁"+word]; ok {
		return 1
	}
	return len([]rune(word))
}
