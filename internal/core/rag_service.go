package core

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yaoapp/kun/log"
	"golang.org/x/sync/errgroup"
	"gwi.com/docqa/internal/params"
)

// mapConcurrency bounds parallel per-chunk calls in map_reduce and map-rerank.
const mapConcurrency = 4

const (
	stuffPrompt = "Use the following pieces of context to answer the question at the end. " +
		"If you don't know the answer, just say that you don't know, don't try to make up an answer.\n\n" +
		"%s\n\nQuestion: %s\nHelpful Answer:"

	mapPrompt = "Use the following portion of a long document to see if any of the text is relevant to answer the question. " +
		"Return any relevant text verbatim.\n%s\nQuestion: %s\nRelevant text, if any:"

	combinePrompt = "Given the following extracted parts of a long document and a question, create a final answer. " +
		"If you don't know the answer, just say that you don't know. Don't try to make up an answer.\n\n" +
		"QUESTION: %s\n=========\n%s\n=========\nFINAL ANSWER:"

	refinePrompt = "The original question is as follows: %s\n" +
		"We have provided an existing answer: %s\n" +
		"We have the opportunity to refine the existing answer (only if needed) with some more context below.\n" +
		"------------\n%s\n------------\n" +
		"Given the new context, refine the original answer to better answer the question. " +
		"If the context isn't useful, return the original answer."

	rerankPrompt = "Use the following pieces of context to answer the question at the end. " +
		"If you don't know the answer, just say that you don't know, don't try to make up an answer.\n\n" +
		"In addition to giving an answer, also return a score of how fully it answered the user's question. " +
		"This should be in the following format:\n\n" +
		"Question: [question here]\nHelpful Answer: [answer here]\nScore: [score between 0 and 100]\n\n" +
		"Begin!\n\nContext:\n---------\n%s\n---------\nQuestion: %s\nHelpful Answer:"
)

var scorePattern = regexp.MustCompile(`(?s)^(.*?)\s*Score:\s*(\d+)`)

// Chain turns retrieved chunks and a question into an answer.
type Chain interface {
	Run(ctx context.Context, question string, chunks []ScoredChunk) (string, error)
}

// NewChain builds the chain for p.ChainType. Each query gets its own chain
// carrying that query's parameter snapshot.
func NewChain(gen Generator, p params.Parameters) (Chain, error) {
	base := chainBase{gen: gen, params: p}
	switch p.ChainType {
	case params.ChainStuff, "":
		return stuffChain{base}, nil
	case params.ChainMapReduce:
		return mapReduceChain{base}, nil
	case params.ChainRefine:
		return refineChain{base}, nil
	case params.ChainMapRerank:
		return mapRerankChain{base}, nil
	}
	return nil, fmt.Errorf("unknown chain type %q", p.ChainType)
}

type chainBase struct {
	gen    Generator
	params params.Parameters
}

func (c chainBase) ask(ctx context.Context, prompt string) (string, error) {
	out, err := c.gen.Generate(ctx, GenerateRequest{Prompt: prompt, Params: c.params})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// each runs fn for every chunk with bounded concurrency, keeping results in chunk order.
func (c chainBase) each(ctx context.Context, chunks []ScoredChunk, fn func(context.Context, ScoredChunk) (string, error)) ([]string, error) {
	results := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(mapConcurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			out, err := fn(gctx, chunk)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

type stuffChain struct{ chainBase }

func (c stuffChain) Run(ctx context.Context, question string, chunks []ScoredChunk) (string, error) {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	return c.ask(ctx, fmt.Sprintf(stuffPrompt, strings.Join(texts, "\n\n"), question))
}

type mapReduceChain struct{ chainBase }

func (c mapReduceChain) Run(ctx context.Context, question string, chunks []ScoredChunk) (string, error) {
	extracts, err := c.each(ctx, chunks, func(ctx context.Context, ch ScoredChunk) (string, error) {
		return c.ask(ctx, fmt.Sprintf(mapPrompt, ch.Content, question))
	})
	if err != nil {
		return "", err
	}

	var kept []string
	for _, e := range extracts {
		if e != "" {
			kept = append(kept, e)
		}
	}
	log.Trace("map_reduce kept %d of %d extracts", len(kept), len(extracts))
	return c.ask(ctx, fmt.Sprintf(combinePrompt, question, strings.Join(kept, "\n\n")))
}

type refineChain struct{ chainBase }

func (c refineChain) Run(ctx context.Context, question string, chunks []ScoredChunk) (string, error) {
	if len(chunks) == 0 {
		return "", nil
	}
	answer, err := c.ask(ctx, fmt.Sprintf(stuffPrompt, chunks[0].Content, question))
	if err != nil {
		return "", err
	}
	for _, ch := range chunks[1:] {
		refined, err := c.ask(ctx, fmt.Sprintf(refinePrompt, question, answer, ch.Content))
		if err != nil {
			return "", err
		}
		if refined != "" {
			answer = refined
		}
	}
	return answer, nil
}

type mapRerankChain struct{ chainBase }

func (c mapRerankChain) Run(ctx context.Context, question string, chunks []ScoredChunk) (string, error) {
	outputs, err := c.each(ctx, chunks, func(ctx context.Context, ch ScoredChunk) (string, error) {
		return c.ask(ctx, fmt.Sprintf(rerankPrompt, ch.Content, question))
	})
	if err != nil {
		return "", err
	}

	best, bestScore := "", -1
	for _, out := range outputs {
		answer, score := parseScored(out)
		if score > bestScore {
			best, bestScore = answer, score
		}
	}
	log.Trace("map-rerank picked an answer scored %d", bestScore)
	return best, nil
}

// parseScored splits "answer\nScore: N". Unscored output counts as 0.
func parseScored(out string) (string, int) {
	m := scorePattern.FindStringSubmatch(out)
	if m == nil {
		return strings.TrimSpace(out), 0
	}
	score, err := strconv.Atoi(m[2])
	if err != nil {
		return strings.TrimSpace(m[1]), 0
	}
	return strings.TrimSpace(m[1]), score
}
