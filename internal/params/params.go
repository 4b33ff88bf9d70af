package params

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type ChainType string

const (
	ChainStuff     ChainType = "stuff"
	ChainMapReduce ChainType = "map_reduce"
	ChainRefine    ChainType = "refine"
	ChainMapRerank ChainType = "map-rerank"
)

type SearchType string

const (
	SearchSimilarity SearchType = "similarity"
	SearchMMR        SearchType = "mmr"
)

const (
	DefaultChunkSize         = 1000
	DefaultChunkOverlap      = 5 // percent of chunk size
	DefaultTemperature       = 0.7
	DefaultTopK              = 50
	DefaultTopP              = 0.15
	DefaultRepetitionPenalty = 1.5
	DefaultMinNewTokens      = 100
	DefaultMaxNewTokens      = 400
	DefaultChainType         = ChainStuff
	DefaultSearchType        = SearchSimilarity
	DefaultSearchK           = 3
)

// Parameters holds the tunable values of one session.
// It is a plain record; range checks live in Validate.
type Parameters struct {
	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`

	Model             string  `yaml:"model" json:"model"`
	Temperature       float64 `yaml:"temperature" json:"temperature"`
	TopK              int     `yaml:"top_k" json:"top_k"`
	TopP              float64 `yaml:"top_p" json:"top_p"`
	RepetitionPenalty float64 `yaml:"repetition_penalty" json:"repetition_penalty"`
	MinNewTokens      int     `yaml:"min_new_tokens" json:"min_new_tokens"`
	MaxNewTokens      int     `yaml:"max_new_tokens" json:"max_new_tokens"`

	ChainType  ChainType  `yaml:"chain_type" json:"chain_type"`
	SearchType SearchType `yaml:"search_type" json:"search_type"`
	SearchK    int        `yaml:"search_k" json:"search_k"`
}

// New returns the default parameters for the given chat model.
func New(model string) Parameters {
	return Parameters{
		ChunkSize:         DefaultChunkSize,
		ChunkOverlap:      DefaultChunkOverlap,
		Model:             model,
		Temperature:       DefaultTemperature,
		TopK:              DefaultTopK,
		TopP:              DefaultTopP,
		RepetitionPenalty: DefaultRepetitionPenalty,
		MinNewTokens:      DefaultMinNewTokens,
		MaxNewTokens:      DefaultMaxNewTokens,
		ChainType:         DefaultChainType,
		SearchType:        DefaultSearchType,
		SearchK:           DefaultSearchK,
	}
}

// LoadFile overlays the YAML document at path on base.
// Keys absent from the file keep their base value.
func LoadFile(path string, base Parameters) (Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read params file %s: %w", path, err)
	}
	p := base
	if err := yaml.Unmarshal(data, &p); err != nil {
		return base, fmt.Errorf("failed to parse params file %s: %w", path, err)
	}
	return p, nil
}

// OverlapChars converts the overlap percentage into characters.
func (p Parameters) OverlapChars() int {
	if p.ChunkOverlap <= 0 || p.ChunkSize <= 0 {
		return 0
	}
	return p.ChunkSize * p.ChunkOverlap / 100
}

// IngestionChanged reports whether other differs from p in a field that
// only takes effect at ingestion time.
func (p Parameters) IngestionChanged(other Parameters) bool {
	return p.ChunkSize != other.ChunkSize || p.ChunkOverlap != other.ChunkOverlap
}
