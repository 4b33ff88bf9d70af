package params

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cast"
)

// Range is the bound a control imposes on one numeric field.
type Range struct {
	Min, Max, Step float64
}

// Ranges are the bounds of the sidebar controls, keyed by field name.
var Ranges = map[string]Range{
	"chunk_size":         {Min: 100, Max: 1000, Step: 10},
	"chunk_overlap":      {Min: 1, Max: 100, Step: 5},
	"temperature":        {Min: 0, Max: 2, Step: 0.01},
	"top_k":              {Min: 1, Max: 100, Step: 1},
	"top_p":              {Min: 0, Max: 1, Step: 0.01},
	"repetition_penalty": {Min: 1, Max: 2, Step: 0.01},
	"min_new_tokens":     {Min: 1, Max: 1000, Step: 1},
	"max_new_tokens":     {Min: 1, Max: 1000, Step: 1},
	"search_k":           {Min: 1, Max: 100, Step: 1},
}

var (
	ChainTypes  = []ChainType{ChainStuff, ChainMapReduce, ChainRefine, ChainMapRerank}
	SearchTypes = []SearchType{SearchSimilarity, SearchMMR}
)

func (p Parameters) numeric() map[string]float64 {
	return map[string]float64{
		"chunk_size":         float64(p.ChunkSize),
		"chunk_overlap":      float64(p.ChunkOverlap),
		"temperature":        p.Temperature,
		"top_k":              float64(p.TopK),
		"top_p":              p.TopP,
		"repetition_penalty": p.RepetitionPenalty,
		"min_new_tokens":     float64(p.MinNewTokens),
		"max_new_tokens":     float64(p.MaxNewTokens),
		"search_k":           float64(p.SearchK),
	}
}

// Validate checks p against the control bounds and reports every violation.
func Validate(p Parameters) error {
	var result *multierror.Error

	values := p.numeric()
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		r := Ranges[name]
		if v := values[name]; v < r.Min || v > r.Max {
			result = multierror.Append(result, fmt.Errorf("%s must be between %g and %g, got %g", name, r.Min, r.Max, v))
		}
	}
	if !validChain(p.ChainType) {
		result = multierror.Append(result, fmt.Errorf("unknown chain_type %q", p.ChainType))
	}
	if !validSearch(p.SearchType) {
		result = multierror.Append(result, fmt.Errorf("unknown search_type %q", p.SearchType))
	}
	if p.Model == "" {
		result = multierror.Append(result, fmt.Errorf("model must not be empty"))
	}
	return result.ErrorOrNil()
}

// Apply sets fields by name on a copy of p. Values may arrive as strings
// (form posts) or JSON numbers.
func Apply(p Parameters, fields map[string]any) (Parameters, error) {
	var result *multierror.Error
	out := p

	for name, raw := range fields {
		var err error
		switch name {
		case "chunk_size":
			out.ChunkSize, err = cast.ToIntE(raw)
		case "chunk_overlap":
			out.ChunkOverlap, err = cast.ToIntE(raw)
		case "model":
			out.Model, err = cast.ToStringE(raw)
		case "temperature":
			out.Temperature, err = cast.ToFloat64E(raw)
		case "top_k":
			out.TopK, err = cast.ToIntE(raw)
		case "top_p":
			out.TopP, err = cast.ToFloat64E(raw)
		case "repetition_penalty":
			out.RepetitionPenalty, err = cast.ToFloat64E(raw)
		case "min_new_tokens":
			out.MinNewTokens, err = cast.ToIntE(raw)
		case "max_new_tokens":
			out.MaxNewTokens, err = cast.ToIntE(raw)
		case "chain_type":
			var s string
			s, err = cast.ToStringE(raw)
			out.ChainType = ChainType(s)
		case "search_type":
			var s string
			s, err = cast.ToStringE(raw)
			out.SearchType = SearchType(s)
		case "search_k":
			out.SearchK, err = cast.ToIntE(raw)
		default:
			err = fmt.Errorf("unknown parameter")
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return p, err
	}
	return out, nil
}

func validChain(c ChainType) bool {
	for _, v := range ChainTypes {
		if v == c {
			return true
		}
	}
	return false
}

func validSearch(s SearchType) bool {
	for _, v := range SearchTypes {
		if v == s {
			return true
		}
	}
	return false
}
