// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package route

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperfinder/internal/ident"
	"github.com/pdiddy/paperfinder/pkg/types"
)

func TestNewQueryInvalid(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace", "   \t\n "},
		{"punctuation only", "?!... ---"},
		{"too long", strings.Repeat("a", maxQueryRunes+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewQuery(tt.text)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidQuery), "got %v", err)
		})
	}
}

func TestNewQueryNormalizesWhitespace(t *testing.T) {
	q, err := NewQuery("  Attention   Is All\nYou Need ")
	require.NoError(t, err)
	assert.Equal(t, "Attention Is All You Need", q.Text())
	assert.Equal(t, DomainCSAI, q.Domain())
	assert.True(t, q.Hint().IsZero())
}

func TestClassifyDomain(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Domain
	}{
		{"transformer", "Attention Is All You Need", DomainCSAI},
		{"bert", "BERT: Pre-training of Deep Bidirectional Transformers for Language Understanding", DomainNLP},
		{"machine translation", "Neural Machine Translation by Jointly Learning to Align and Translate", DomainNLP},
		{"physics", "Quantum entanglement of massive particles", DomainPhysicsMath},
		{"math", "A proof of the Riemann conjecture for curves", DomainPhysicsMath},
		{"resnet", "Deep Residual Learning for Image Recognition", DomainCSAI},
		{"no signal", "On the history of medieval trade routes", DomainOther},
		{"acl doi", "10.18653/v1/N19-1423", DomainNLP},
		{"acm doi", "10.1145/3442381.3449802", DomainCSAI},
		{"aps doi", "10.1103/PhysRevLett.116.061102", DomainPhysicsMath},
		{"acl id", "P19-1001", DomainNLP},
		{"bare arxiv", "1706.03762", DomainCSAI},
		{"arxiv category", "hep-th/9901001", DomainPhysicsMath},
		{"acl host", "https://aclanthology.org/2020.acl-main.463", DomainNLP},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text, ident.Extract(tt.text)))
		})
	}
}

func TestClassifyShortTermsMatchWholeWords(t *testing.T) {
	// "organ" contains "gan" but must not count as a GAN reference.
	assert.Equal(t, DomainOther, Classify("organic chemistry of soil", ident.Hint{}))
}

func TestRouteOrders(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"Attention Is All You Need", []string{types.BackendDBLP, types.BackendSemanticScholar, types.BackendArxiv}},
		{"BERT language model pre-training", []string{types.BackendACL, types.BackendDBLP, types.BackendSemanticScholar}},
		{"quantum gravity on the lattice", []string{types.BackendSemanticScholar, types.BackendArxiv}},
		{"medieval trade routes", []string{types.BackendSemanticScholar}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			q, err := NewQuery(tt.text)
			require.NoError(t, err)
			plan := Router{}.Route(q)
			assert.Equal(t, tt.want, plan.Order())
			for _, s := range plan.Steps {
				assert.Equal(t, DefaultCap, s.Cap)
			}
			assert.Nil(t, plan.Direct)
		})
	}
}

func TestRouteIsDeterministic(t *testing.T) {
	q, err := NewQuery("graph neural networks for molecules")
	require.NoError(t, err)
	r := Router{}
	first := r.Route(q)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, r.Route(q))
	}
}

func TestRouteCapOverride(t *testing.T) {
	q, err := NewQuery("Attention Is All You Need")
	require.NoError(t, err)
	plan := Router{Caps: map[string]int{types.BackendDBLP: 10, types.BackendArxiv: 0}}.Route(q)
	require.Len(t, plan.Steps, 3)
	assert.Equal(t, 10, plan.Steps[0].Cap)
	assert.Equal(t, DefaultCap, plan.Steps[2].Cap, "non-positive override falls back to default")
}

func TestRouteDirect(t *testing.T) {
	tests := []struct {
		text    string
		backend string
		value   string
	}{
		{"arXiv:1706.03762", types.BackendArxiv, "1706.03762"},
		{"10.1145/3442381.3449802", types.BackendCrossref, "10.1145/3442381.3449802"},
		{"N19-1423", types.BackendACL, "N19-1423"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			q, err := NewQuery(tt.text)
			require.NoError(t, err)
			plan := Router{}.Route(q)
			require.NotNil(t, plan.Direct)
			assert.Equal(t, tt.backend, plan.Direct.Backend)
			assert.Equal(t, tt.value, plan.Hint.Value)
			assert.NotEmpty(t, plan.Steps)
		})
	}
}

func TestSearchTextDropsUnknownURL(t *testing.T) {
	q, err := NewQuery("https://example.com/x.pdf sparse attention")
	require.NoError(t, err)
	assert.Equal(t, "sparse attention", q.SearchText())

	q, err = NewQuery("https://example.com/x.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/x.pdf", q.SearchText())
}
