// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package route classifies query text into a research domain and chooses
// the ordered list of backends to consult, with a result cap per backend.
// Classification is a fixed keyword and identifier table; it never calls out.
package route

import (
	"regexp"
	"strings"

	"github.com/pdiddy/paperfinder/internal/ident"
	"github.com/pdiddy/paperfinder/pkg/types"
)

// Domain tags a query with the research area used for backend selection.
type Domain string

const (
	DomainCSAI        Domain = "cs_ai"
	DomainNLP         Domain = "nlp"
	DomainPhysicsMath Domain = "physics_math"
	DomainOther       Domain = "other"
)

// DefaultCap is the per-backend result cap when none is configured.
const DefaultCap = 5

// Step is one backend consultation in a plan.
type Step struct {
	Backend string `json:"backend" yaml:"backend"`
	Cap     int    `json:"cap" yaml:"cap"`
}

// Plan is the routing decision for a query.
type Plan struct {
	Domain Domain `json:"domain" yaml:"domain"`

	// Direct is the identifier fast path, set only when the query carries
	// an identifier some backend can fetch directly.
	Direct *Step `json:"direct,omitempty" yaml:"direct,omitempty"`

	// Hint is the identifier Direct should fetch.
	Hint ident.Hint `json:"hint,omitempty" yaml:"hint,omitempty"`

	// Steps lists backends in quality order; never empty.
	Steps []Step `json:"steps" yaml:"steps"`
}

// Order returns the backend ids of Steps in order.
func (p Plan) Order() []string {
	order := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		order[i] = s.Backend
	}
	return order
}

// domainOrder is the fixed domain → backend order policy.
var domainOrder = map[Domain][]string{
	DomainCSAI:        {types.BackendDBLP, types.BackendSemanticScholar, types.BackendArxiv},
	DomainNLP:         {types.BackendACL, types.BackendDBLP, types.BackendSemanticScholar},
	DomainPhysicsMath: {types.BackendSemanticScholar, types.BackendArxiv},
	DomainOther:       {types.BackendSemanticScholar},
}

// directBackend maps identifier kinds to the backend that fetches them.
var directBackend = map[ident.Kind]string{
	ident.KindArxiv: types.BackendArxiv,
	ident.KindDOI:   types.BackendCrossref,
	ident.KindACL:   types.BackendACL,
}

// Router turns queries into plans. The zero value uses DefaultCap for
// every backend.
type Router struct {
	// Caps overrides the result cap per backend id.
	Caps map[string]int
}

// Route returns the plan for q. It is deterministic and total: unknown
// domains fall back to DomainOther, which always has one backend.
func (r Router) Route(q Query) Plan {
	domain := q.Domain()
	order, ok := domainOrder[domain]
	if !ok {
		domain = DomainOther
		order = domainOrder[DomainOther]
	}

	plan := Plan{Domain: domain, Steps: make([]Step, 0, len(order))}
	for _, b := range order {
		plan.Steps = append(plan.Steps, Step{Backend: b, Cap: r.cap(b)})
	}

	hint := q.Hint()
	if b, ok := directBackend[hint.Kind]; ok {
		plan.Direct = &Step{Backend: b, Cap: 1}
		plan.Hint = hint
	}
	return plan
}

func (r Router) cap(backend string) int {
	if c, ok := r.Caps[backend]; ok && c > 0 {
		return c
	}
	return DefaultCap
}

// Keyword tables. Terms are matched against lowercase, space-padded text
// so short acronyms only match whole words.
var (
	nlpTerms = []string{
		"nlp", "natural language", "language model", "linguistic", "translation",
		"machine translation", "parsing", "parser", "sentiment", "named entity",
		"question answering", "summarization", "dialogue", "dialog", "tokeniz",
		"bert", "gpt", "word embedding", "word2vec", "corpus", "corpora", "acl",
		"emnlp", "naacl", "coling", "eacl", "speech", "text classification",
		"morpholog", "syntax", "semantic role", "coreference",
	}
	csaiTerms = []string{
		"neural", "deep learning", "machine learning", "reinforcement", "transformer",
		"attention", "convolutional", "cnn", "rnn", "lstm", "gan", "generative adversarial",
		"diffusion model", "computer vision", "image", "object detection", "segmentation",
		"graph neural", "optimization", "gradient", "learning", "neurips", "nips", "icml",
		"iclr", "cvpr", "iccv", "eccv", "aaai", "ijcai", "algorithm", "database",
		"distributed system", "compiler", "operating system", "network", "robot",
		"classifier", "benchmark", "dataset", "kdd", "sigmod", "vldb",
	}
	physicsMathTerms = []string{
		"quantum", "physics", "particle", "cosmolog", "galaxy", "astrophys", "relativity",
		"boson", "fermion", "hadron", "lattice", "string theory", "gravit", "thermodynam",
		"theorem", "lemma", "conjecture", "topolog", "algebra", "manifold", "hilbert",
		"riemann", "prime", "number theory", "differential equation", "stochastic",
		"probability", "combinator", "homolog", "mathemat", "hep-", "cond-mat",
		"astro-ph", "gr-qc", "quant-ph",
	}
)

// doiPrefixDomain maps DOI registrant prefixes to domains.
var doiPrefixDomain = map[string]Domain{
	"10.18653": DomainNLP,         // ACL Anthology
	"10.3115":  DomainNLP,         // ACL (older)
	"10.1162":  DomainNLP,         // MIT Press (TACL, Computational Linguistics)
	"10.1145":  DomainCSAI,        // ACM
	"10.1109":  DomainCSAI,        // IEEE
	"10.1007":  DomainCSAI,        // Springer LNCS
	"10.5555":  DomainCSAI,        // ACM guide (NeurIPS, ICML proceedings)
	"10.1609":  DomainCSAI,        // AAAI
	"10.24963": DomainCSAI,        // IJCAI
	"10.1613":  DomainCSAI,        // JAIR
	"10.1103":  DomainPhysicsMath, // APS
	"10.1088":  DomainPhysicsMath, // IOP
	"10.1063":  DomainPhysicsMath, // AIP
	"10.1090":  DomainPhysicsMath, // AMS
	"10.1137":  DomainPhysicsMath, // SIAM
}

// hostDomain maps URL hosts to domains.
var hostDomain = map[string]Domain{
	"aclanthology.org":       DomainNLP,
	"aclweb.org":             DomainNLP,
	"dl.acm.org":             DomainCSAI,
	"ieeexplore.ieee.org":    DomainCSAI,
	"openreview.net":         DomainCSAI,
	"proceedings.neurips.cc": DomainCSAI,
	"papers.nips.cc":         DomainCSAI,
	"proceedings.mlr.press":  DomainCSAI,
	"dblp.org":               DomainCSAI,
	"journals.aps.org":       DomainPhysicsMath,
	"iopscience.iop.org":     DomainPhysicsMath,
}

var nonWord = regexp.MustCompile(`[^a-z0-9\-]+`)

// Classify infers the domain of text. Identifier signals (DOI prefix, URL
// host, ACL id) take precedence over keywords; among keywords the domain
// with the most distinct hits wins, ties resolved NLP, then CS/AI, then
// physics/math. Text without signal falls back to DomainOther.
func Classify(text string, hint ident.Hint) Domain {
	switch hint.Kind {
	case ident.KindACL:
		return DomainNLP
	case ident.KindDOI:
		if i := strings.Index(hint.Value, "/"); i > 0 {
			if d, ok := doiPrefixDomain[hint.Value[:i]]; ok {
				return d
			}
		}
	}
	if hint.Host != "" {
		if d, ok := hostDomain[hint.Host]; ok {
			return d
		}
	}

	padded := " " + nonWord.ReplaceAllString(strings.ToLower(text), " ") + " "
	scores := map[Domain]int{
		DomainNLP:         countTerms(padded, nlpTerms),
		DomainCSAI:        countTerms(padded, csaiTerms),
		DomainPhysicsMath: countTerms(padded, physicsMathTerms),
	}

	best, bestScore := DomainOther, 0
	for _, d := range []Domain{DomainNLP, DomainCSAI, DomainPhysicsMath} {
		if scores[d] > bestScore {
			best, bestScore = d, scores[d]
		}
	}
	if best != DomainOther {
		return best
	}

	// Bare arXiv ids route to CS/AI, whose order ends at the preprint index.
	if hint.Kind == ident.KindArxiv {
		return DomainCSAI
	}
	return DomainOther
}

// countTerms counts distinct terms present in padded text. Terms of three
// or fewer characters must appear as whole words; longer terms match as
// word prefixes.
func countTerms(padded string, terms []string) int {
	n := 0
	for _, t := range terms {
		needle := " " + t
		if len(t) <= 3 {
			needle += " "
		}
		if strings.Contains(padded, needle) {
			n++
		}
	}
	return n
}
