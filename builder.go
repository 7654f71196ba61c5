// Package qprober classifies collections that can only be queried into a topic taxonomy, and builds content summaries
// of them from the documents the classification queries return.
//
// A Builder runs the two sampling passes over the taxonomy, estimates the size of the collection with random probe
// queries, and extrapolates the sample to the estimated size. Batch runs many builders concurrently.
package qprober

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/go-errors/errors"
	"github.com/hscells/qprober/cache"
	"github.com/hscells/qprober/preprocess"
	"github.com/hscells/qprober/source"
	"github.com/hscells/qprober/store"
	"github.com/hscells/qprober/summary"
	"github.com/hscells/qprober/taxonomy"
	"github.com/pkg/errors"
)

// Stages a failure can happen in.
const (
	StageClassification = "classification"
	StageDocument       = "document"
	StageSize           = "size"
)

// Failure is a query or document that failed and was skipped.
type Failure struct {
	Stage  string
	Pass   int
	Target string
	Err    error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %q (pass %d): %v", f.Stage, f.Target, f.Pass, f.Err)
}

// Report is the outcome of building the content summary of a collection.
type Report struct {
	Collection string
	// RunID identifies the run in the run store, if one is used.
	RunID         string
	Categories    []string
	Decisions     []taxonomy.Decision
	EstimatedSize float64
	SampleSize    int
	CommonWords   []string
	// LiveQueries is the number of queries issued against the collection; CacheHits the number answered by the cache.
	LiveQueries int
	CacheHits   int
	Failures    []Failure
	SummaryPath string
	ProfilePath string
	Summary     *summary.ContentSummary
}

// Builder builds the content summary of one collection.
type Builder struct {
	hierarchy *taxonomy.Hierarchy
	source    source.Source
	cache     cache.QueryCacher
	store     *store.Store

	options      taxonomy.Options
	maxDocuments int
	timeout      time.Duration
	size         SizeOptions
	seed         int64
	summaryPath  string
	profilePath  string
	progress     func(done, total int)
	tokenise     func(string) ([]string, error)
}

// Option configures a Builder.
type Option func(*Builder)

// WithCache sets the query cache. Without one every query is issued live.
func WithCache(c cache.QueryCacher) Option {
	return func(b *Builder) {
		b.cache = c
	}
}

// WithStore records runs in a run store.
func WithStore(s *store.Store) Option {
	return func(b *Builder) {
		b.store = s
	}
}

// WithClassification sets the thresholds, method and fallback of the classification.
func WithClassification(options taxonomy.Options) Option {
	return func(b *Builder) {
		b.options = options
	}
}

// WithMaxDocuments sets the number of documents of each query that are sampled.
func WithMaxDocuments(n int) Option {
	return func(b *Builder) {
		b.maxDocuments = n
	}
}

// WithTimeout sets the timeout of every live query. A timeout of zero or less disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(b *Builder) {
		b.timeout = timeout
	}
}

// WithSize sets how the size of the collection is estimated.
func WithSize(options SizeOptions) Option {
	return func(b *Builder) {
		b.size = options
	}
}

// WithSeed seeds the choice of size probe terms.
func WithSeed(seed int64) Option {
	return func(b *Builder) {
		b.seed = seed
	}
}

// WithSummaryPath writes the content summary to path. An occurrence of %s in the path is replaced with the name of
// the collection.
func WithSummaryPath(path string) Option {
	return func(b *Builder) {
		b.summaryPath = path
	}
}

// WithProfilePath writes the profile of the sample to path, like WithSummaryPath.
func WithProfilePath(path string) Option {
	return func(b *Builder) {
		b.profilePath = path
	}
}

// WithProgress is called after every size probe.
func WithProgress(f func(done, total int)) Option {
	return func(b *Builder) {
		b.progress = f
	}
}

// NewBuilder creates a builder for the collection behind s.
func NewBuilder(h *taxonomy.Hierarchy, s source.Source, options ...Option) *Builder {
	b := &Builder{
		hierarchy: h,
		source:    s,
		cache:     cache.NewNopQueryCache(),
		options: taxonomy.Options{
			Specificity: 0.4,
			Method:      taxonomy.ProbOnly,
			Fallback:    taxonomy.FallbackNode,
		},
		maxDocuments: 4,
		timeout:      30 * time.Second,
		size:         DefaultSizeOptions,
		seed:         time.Now().UnixNano(),
		tokenise:     preprocess.Tokenise,
	}
	for _, option := range options {
		option(b)
	}
	return b
}

// run is the state of one build.
type run struct {
	*Builder
	report  *Report
	summary *summary.ContentSummary
	maxHits int64
}

// pass probes the taxonomy once, sampling every document not seen before in the pass.
type pass struct {
	*run
	number int
	seen   map[string]bool
}

// Build classifies the collection in two passes, estimates its size, and extrapolates the sample. Queries and
// documents that fail are logged, recorded in the report, and skipped; only cancellation of the context stops the
// build, in which case the partial report is returned with the error.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	r := &run{
		Builder: b,
		report:  &Report{Collection: b.source.Name()},
		summary: summary.New(),
	}
	r.report.Summary = r.summary
	r.startRun()

	for number := 1; number <= 2; number++ {
		p := &pass{run: r, number: number, seen: make(map[string]bool)}
		c, err := b.hierarchy.Classify(ctx, p, b.options)
		if err != nil {
			return r.report, err
		}
		if number == 1 {
			r.report.CommonWords = r.summary.DetectCommonWords()
			r.summary.ClearResults()
			log.Printf("%s: pass 1 found %d common words\n", r.report.Collection, len(r.report.CommonWords))
			continue
		}
		r.report.Categories = c.Categories
		r.report.Decisions = c.Decisions
	}

	estimate, err := r.estimateSize(ctx)
	if err != nil {
		return r.report, err
	}
	r.summary.Extrapolate(estimate)
	r.report.EstimatedSize = r.summary.EstimatedSize()
	r.report.SampleSize = r.summary.SampleSize()
	log.Printf("%s: classified into %v, estimated size %.0f from a sample of %d\n",
		r.report.Collection, r.report.Categories, r.report.EstimatedSize, r.report.SampleSize)

	if err := r.write(); err != nil {
		return r.report, err
	}
	r.finishRun()
	return r.report, nil
}

// Probe issues the query of a rule (through the cache) and samples the documents it returns.
func (p *pass) Probe(ctx context.Context, rule taxonomy.Rule) (float64, error) {
	res, err := p.query(ctx, rule.Query.Text)
	if err != nil {
		if ctx.Err() == nil {
			p.fail(StageClassification, p.number, rule.Query.Text, err)
		}
		return 0, err
	}
	if res.Hits > p.maxHits {
		p.maxHits = res.Hits
	}

	filter := p.number == 2
	for _, doc := range res.Documents {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if p.seen[doc.Linkage] {
			continue
		}
		p.seen[doc.Linkage] = true

		tokens, err := p.tokenise(doc.Text)
		if err != nil {
			p.fail(StageDocument, p.number, doc.Linkage, err)
			continue
		}
		p.summary.AddDocument(tokens, filter)
		if filter {
			p.summary.Checkpoint()
		}
	}
	return float64(res.Hits), nil
}

// query answers a query from the cache, or issues it live and caches the result.
func (r *run) query(ctx context.Context, text string) (source.Result, error) {
	collection := r.source.Name()
	res, err := r.cache.Get(collection, text)
	if err == nil {
		r.report.CacheHits++
		return res.Truncate(r.maxDocuments), nil
	}
	if err != cache.ErrCacheMiss {
		log.Printf("cache lookup of %q failed: %v\n", text, err)
	}

	res, err = r.live(ctx, text)
	if err != nil {
		return source.Result{}, err
	}
	res = res.Truncate(r.maxDocuments)
	if err := r.cache.Set(collection, text, res); err != nil {
		log.Printf("could not cache %q: %v\n", text, err)
	}
	return res, nil
}

// live issues a query against the collection under the query timeout.
func (r *run) live(ctx context.Context, text string) (source.Result, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	r.report.LiveQueries++
	res, err := r.source.Query(ctx, text)
	if err != nil {
		return source.Result{}, errors.Wrapf(err, "query %q of %s", text, r.source.Name())
	}
	return res, nil
}

func (r *run) fail(stage string, number int, target string, err error) {
	f := Failure{Stage: stage, Pass: number, Target: target, Err: err}
	r.report.Failures = append(r.report.Failures, f)
	log.Println(f.Error())
	log.Println(goerrors.Wrap(err, 0).ErrorStack())
	if r.store != nil && len(r.report.RunID) > 0 {
		if err := r.store.AddFailure(r.report.RunID, stage, target, err); err != nil {
			log.Println(err)
		}
	}
}

func (r *run) startRun() {
	if r.store == nil {
		return
	}
	sr, err := r.store.StartRun(r.report.Collection)
	if err != nil {
		log.Println(err)
		return
	}
	r.report.RunID = sr.ID
}

func (r *run) finishRun() {
	if r.store == nil || len(r.report.RunID) == 0 {
		return
	}
	if err := r.store.AddCategories(r.report.RunID, r.report.Categories); err != nil {
		log.Println(err)
	}
	if err := r.store.FinishRun(r.report.RunID, r.report.EstimatedSize, r.report.SampleSize, r.report.SummaryPath); err != nil {
		log.Println(err)
	}
}

// expand replaces %s in a path with the escaped name of the collection.
func expand(path, collection string) string {
	if strings.Contains(path, "%s") {
		return strings.Replace(path, "%s", url.PathEscape(collection), -1)
	}
	return path
}

func (r *run) write() error {
	if len(r.summaryPath) > 0 {
		path := expand(r.summaryPath, r.report.Collection)
		if err := r.summary.Write(path, r.report.EstimatedSize); err != nil {
			return err
		}
		r.report.SummaryPath = path
	}
	if len(r.profilePath) > 0 {
		path := expand(r.profilePath, r.report.Collection)
		if err := r.summary.Profile().WriteFile(path); err != nil {
			return err
		}
		r.report.ProfilePath = path
	}
	return nil
}
