// Package analyzer turns decoded uploads into processing results.
//
// Fields that cannot be derived from the content itself are simulated with a
// random source and labelled: the whole result carries "simulated": true, or
// the result lists the fabricated keys under "simulated_fields".
package analyzer

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/chat-upload-api/backend/internal/models"
	"github.com/chat-upload-api/backend/internal/parser"
)

// ErrUnsupportedType is returned when no analyzer handles a file type.
var ErrUnsupportedType = errors.New("unsupported file type")

// Analyzer produces results for one file type.
type Analyzer interface {
	FileType() string
	Analyze(doc *parser.Document) ([]models.ProcessingResult, error)
}

// Sampler is a goroutine-safe random source for simulated fields.
type Sampler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSampler wraps src. A nil src seeds from the clock.
func NewSampler(src rand.Source) *Sampler {
	if src == nil {
		now := uint64(time.Now().UnixNano())
		src = rand.NewPCG(now, now>>1|1)
	}
	return &Sampler{rnd: rand.New(src)}
}

// IntRange returns a value in [lo, hi].
func (s *Sampler) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rnd.IntN(hi-lo+1)
}

// Uniform returns a value in [lo, hi).
func (s *Sampler) Uniform(lo, hi float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rnd.Float64()*(hi-lo)
}

// Choice picks one element of options.
func (s *Sampler) Choice(options []string) string {
	return options[s.IntRange(0, len(options)-1)]
}

// Registry maps file types to analyzers.
type Registry struct {
	analyzers map[string]Analyzer
	now       func() time.Time
}

// NewRegistry returns a registry with the json and csv analyzers sharing sampler.
func NewRegistry(sampler *Sampler) *Registry {
	r := &Registry{
		analyzers: make(map[string]Analyzer),
		now:       func() time.Time { return time.Now().UTC() },
	}
	r.Register(NewJSONAnalyzer(sampler))
	r.Register(NewCSVAnalyzer(sampler))
	return r
}

// Register adds or replaces the analyzer for a.FileType().
func (r *Registry) Register(a Analyzer) {
	r.analyzers[strings.ToLower(a.FileType())] = a
}

// Get returns the analyzer for a file type.
func (r *Registry) Get(fileType string) (Analyzer, error) {
	a, ok := r.analyzers[strings.ToLower(fileType)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, fileType)
	}
	return a, nil
}

// Analyze runs the analyzer for doc.FileType and stamps CreatedAt on every result.
func (r *Registry) Analyze(doc *parser.Document) ([]models.ProcessingResult, error) {
	a, err := r.Get(doc.FileType)
	if err != nil {
		return nil, err
	}
	results, err := a.Analyze(doc)
	if err != nil {
		return nil, err
	}
	created := r.now()
	for i := range results {
		if results[i].CreatedAt.IsZero() {
			results[i].CreatedAt = created
		}
	}
	return results, nil
}
