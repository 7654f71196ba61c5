package qprober_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/hscells/qprober"
	"github.com/hscells/qprober/cache"
	"github.com/hscells/qprober/pipeline"
	"github.com/hscells/qprober/source"
	"github.com/hscells/qprober/store"
	"github.com/hscells/qprober/taxonomy"
	"github.com/magiconair/properties"
	"github.com/pkg/errors"
)

// collection is mostly about cancer, a little about the heart and barely about football. Every document carries the
// same boilerplate word.
func collection(t *testing.T) *source.Memory {
	var docs []source.Document
	for i := 0; i < 6; i++ {
		docs = append(docs, source.Document{
			Linkage: fmt.Sprintf("cancer-%d", i),
			Text:    fmt.Sprintf("boilerplate cancer tumour patient treatment%s", string(rune('a'+i))),
		})
	}
	for i := 0; i < 2; i++ {
		docs = append(docs, source.Document{
			Linkage: fmt.Sprintf("heart-%d", i),
			Text:    "boilerplate heart cardiac surgery patient",
		})
	}
	docs = append(docs, source.Document{Linkage: "football-0", Text: "boilerplate football match goal"})

	m, err := source.NewMemory("medline", 10, docs, "Health", "Cancer")
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func hierarchy(t *testing.T) *taxonomy.Hierarchy {
	h, err := taxonomy.Load("taxonomy/testdata/taxonomy.xml")
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestBuilder_Build(t *testing.T) {
	m := collection(t)
	dir := t.TempDir()
	b := qprober.NewBuilder(hierarchy(t), m,
		qprober.WithSeed(1),
		qprober.WithSummaryPath(filepath.Join(dir, "%s.xml")),
		qprober.WithProfilePath(filepath.Join(dir, "%s.profile")))

	report, err := b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	t.Log(report.Categories, report.EstimatedSize, report.SampleSize)

	if !reflect.DeepEqual(report.Categories, []string{"Cancer"}) {
		t.Errorf("expected the collection to be classified into Cancer, got %v", report.Categories)
	}
	if !reflect.DeepEqual(report.CommonWords, []string{"boilerplate"}) {
		t.Errorf("expected boilerplate to be the only common word, got %v", report.CommonWords)
	}
	if _, ok := report.Summary.Term("boilerplate"); ok {
		t.Error("the second pass must not sample common words")
	}
	if _, ok := report.Summary.Term("tumour"); !ok {
		t.Error("expected tumour to be sampled")
	}
	// Four cancer documents, two heart documents and the football document.
	if report.SampleSize != 7 {
		t.Errorf("expected a sample of 7 documents, got %d", report.SampleSize)
	}
	if report.EstimatedSize < float64(report.SampleSize) {
		t.Errorf("estimated size %v is smaller than the sample", report.EstimatedSize)
	}
	if len(report.Failures) != 0 {
		t.Errorf("unexpected failures %v", report.Failures)
	}
	for _, path := range []string{report.SummaryPath, report.ProfilePath} {
		if _, err := os.Stat(path); err != nil {
			t.Error(err)
		}
	}
	if report.SummaryPath != filepath.Join(dir, "medline.xml") {
		t.Errorf("unexpected summary path %s", report.SummaryPath)
	}
}

func TestBuilder_CachedRun(t *testing.T) {
	m := collection(t)
	h := hierarchy(t)
	c := cache.NewMapQueryCache(4)

	first, err := qprober.NewBuilder(h, m, qprober.WithCache(c), qprober.WithSeed(1)).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// Pass two replays what pass one cached.
	if first.CacheHits == 0 {
		t.Error("expected the second pass to be answered by the cache")
	}

	before := m.Queries
	second, err := qprober.NewBuilder(h, m, qprober.WithCache(c), qprober.WithSeed(1)).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if m.Queries-before != second.LiveQueries {
		t.Errorf("source saw %d queries, report counted %d", m.Queries-before, second.LiveQueries)
	}
	size := qprober.DefaultSizeOptions
	if second.LiveQueries > size.Probes+size.Retries+1 {
		t.Errorf("a cached run should only issue size probes, issued %d queries", second.LiveQueries)
	}
	if second.CacheHits != 2*first.CacheHits {
		t.Errorf("expected every classification query to hit the cache, got %d hits", second.CacheHits)
	}
	if !reflect.DeepEqual(first.Categories, second.Categories) {
		t.Errorf("cached run classified differently: %v != %v", first.Categories, second.Categories)
	}
}

// failing fails every query for one text.
type failing struct {
	source.Source
	text string
}

func (f failing) Query(ctx context.Context, text string) (source.Result, error) {
	if text == f.text {
		return source.Result{}, errors.New("service unavailable")
	}
	return f.Source.Query(ctx, text)
}

func TestBuilder_Failures(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	s := failing{Source: collection(t), text: "football"}
	report, err := qprober.NewBuilder(hierarchy(t), s, qprober.WithStore(st), qprober.WithSeed(1)).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(report.Categories, []string{"Cancer"}) {
		t.Errorf("a failed rule should not stop the classification, got %v", report.Categories)
	}
	if len(report.Failures) != 2 {
		t.Fatalf("expected the football rule to fail in both passes, got %v", report.Failures)
	}
	for i, f := range report.Failures {
		if f.Stage != qprober.StageClassification || f.Target != "football" || f.Pass != i+1 {
			t.Errorf("unexpected failure %+v", f)
		}
	}

	run, err := st.Run(report.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if !run.Finished || run.SampleSize != report.SampleSize {
		t.Errorf("unexpected run %+v", run)
	}
	categories, err := st.Categories(report.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(categories, report.Categories) {
		t.Errorf("stored categories %v, expected %v", categories, report.Categories)
	}
	failures, err := st.Failures(report.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if len(failures) != 2 {
		t.Errorf("expected 2 stored failures, got %v", failures)
	}
}

func TestBuilder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := qprober.NewBuilder(hierarchy(t), collection(t)).Build(ctx)
	if err != context.Canceled {
		t.Fatalf("expected the build to be cancelled, got %v", err)
	}
}

func TestBuilder_SizeFallback(t *testing.T) {
	m := collection(t)
	report, err := qprober.NewBuilder(hierarchy(t), m, qprober.WithSize(qprober.SizeOptions{})).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// Without probes the estimate is the larger of the sample size and the largest hit count seen.
	if report.EstimatedSize != 7 {
		t.Errorf("expected the sample size of 7, got %v", report.EstimatedSize)
	}
}

func TestConfig(t *testing.T) {
	c, err := qprober.LoadConfig("testdata/qprober.properties")
	if err != nil {
		t.Fatal(err)
	}
	if c.MaxDocuments != 3 || c.Timeout.Seconds() != 5 || c.Seed != 7 {
		t.Errorf("unexpected configuration %+v", c)
	}
	if c.Classification.Method != taxonomy.Adjusted || c.Classification.Fallback != taxonomy.FallbackLevel {
		t.Errorf("unexpected classification options %+v", c.Classification)
	}
	if c.Size.Probes != 4 || c.Size.Retries != 10 || c.Size.Lower != 0.1 {
		t.Errorf("unexpected size options %+v", c.Size)
	}
	s, err := c.OpenSource(source.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	if s.Name() != "medline" || !reflect.DeepEqual(s.Categories(), []string{"Health", "Cancer"}) {
		t.Errorf("unexpected source %s %v", s.Name(), s.Categories())
	}
	if st, err := c.OpenStore(); err != nil || st != nil {
		t.Errorf("expected no store, got %v %v", st, err)
	}
	if _, err := c.Hierarchy(); err != nil {
		t.Error(err)
	}
}

func TestBatch_Execute(t *testing.T) {
	other, err := source.NewMemory("sports", 10, []source.Document{
		{Linkage: "1", Text: "football goal"},
		{Linkage: "2", Text: "football match"},
	})
	if err != nil {
		t.Fatal(err)
	}

	b := qprober.Batch{
		Hierarchy:   hierarchy(t),
		Options:     []qprober.Option{qprober.WithSeed(1)},
		Concurrency: 2,
	}
	c := make(chan pipeline.Result)
	go b.Execute(context.Background(), []source.Source{collection(t), other}, c)

	summaries := make(map[string][]string)
	var evaluations []pipeline.Result
	done := false
	for r := range c {
		switch r.Type {
		case pipeline.Summary:
			summaries[r.Collection] = r.Categories
		case pipeline.Evaluation:
			evaluations = append(evaluations, r)
		case pipeline.Error:
			t.Fatal(r.Error)
		case pipeline.Done:
			done = true
		}
	}
	if !done {
		t.Fatal("expected a done record")
	}
	if !reflect.DeepEqual(summaries["medline"], []string{"Cancer"}) {
		t.Errorf("unexpected medline categories %v", summaries["medline"])
	}
	if !reflect.DeepEqual(summaries["sports"], []string{"Sports"}) {
		t.Errorf("unexpected sports categories %v", summaries["sports"])
	}
	if len(evaluations) != 1 || evaluations[0].Collection != "medline" {
		t.Fatalf("expected only medline to be evaluated, got %v", evaluations)
	}
	t.Log(evaluations[0].Evaluations)
}

func TestBuilder_NoTimeout(t *testing.T) {
	report, err := qprober.NewBuilder(hierarchy(t), collection(t), qprober.WithTimeout(0), qprober.WithSeed(1)).
		Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Failures) != 0 {
		t.Errorf("a zero timeout should not expire queries, got %v", report.Failures)
	}
	if !reflect.DeepEqual(report.Categories, []string{"Cancer"}) {
		t.Errorf("unexpected categories %v", report.Categories)
	}
}

func TestConfig_Invalid(t *testing.T) {
	base := "classification.schema = taxonomy/testdata/taxonomy.xml\nsource.type = memory\n"
	for _, extra := range []string{
		"query.timeout = 0",
		"query.timeout = -5s",
		"sampling.maxdocs = -1",
		"size.band.lower = 0.8\nsize.band.upper = 0.2",
		"classification.method = voting",
		"classification.fallback = parent",
	} {
		if _, err := qprober.ParseConfig(properties.MustLoadString(base + extra)); err == nil {
			t.Errorf("expected %q to be rejected", extra)
		}
	}
	if _, err := qprober.ParseConfig(properties.MustLoadString("source.type = memory")); err == nil {
		t.Error("expected a missing schema to be rejected")
	}
}

func TestBatch_Headway(t *testing.T) {
	var mu sync.Mutex
	var notifications []url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if r.Method != http.MethodPut {
			t.Errorf("expected a PUT, got %s", r.Method)
		}
		notifications = append(notifications, r.URL.Query())
	}))
	defer srv.Close()

	other, err := source.NewMemory("sports", 10, []source.Document{{Linkage: "1", Text: "football goal"}})
	if err != nil {
		t.Fatal(err)
	}
	b := qprober.Batch{
		Hierarchy:     hierarchy(t),
		Options:       []qprober.Option{qprober.WithSeed(1)},
		Concurrency:   1,
		HeadwayServer: srv.URL,
		HeadwaySecret: "s3cret",
	}
	c := make(chan pipeline.Result)
	go b.Execute(context.Background(), []source.Source{collection(t), other}, c)
	for r := range c {
		if r.Type == pipeline.Error {
			t.Fatal(r.Error)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(notifications) != 2 {
		t.Fatalf("expected a notification per collection, got %d", len(notifications))
	}
	var comments []string
	for i, n := range notifications {
		if n.Get("Secret") != "s3cret" || !strings.HasPrefix(n.Get("name"), "qprober batch") {
			t.Errorf("unexpected notification %v", n)
		}
		if n.Get("total") != "2.000000" || n.Get("current") != fmt.Sprintf("%d.000000", i+1) {
			t.Errorf("unexpected progress %v", n)
		}
		comments = append(comments, n.Get("comment"))
	}
	sort.Strings(comments)
	if !reflect.DeepEqual(comments, []string{"completed medline", "completed sports"}) {
		t.Errorf("unexpected comments %v", comments)
	}
}
