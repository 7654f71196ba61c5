package summary_test

import (
	"bytes"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hscells/qprober/summary"
)

// zipfDocument generates the i-th document of a synthetic collection where the term tk appears in every k-th
// document, and "the" appears in every document.
func zipfDocument(i int) []string {
	tokens := []string{"the"}
	for k := 1; k <= 40; k++ {
		if i%k == 0 {
			for j := 0; j <= k%3; j++ {
				tokens = append(tokens, fmt.Sprintf("t%d", k))
			}
		}
	}
	return tokens
}

func TestContentSummary_CommonWords(t *testing.T) {
	cs := summary.New()
	cs.AddDocument([]string{"the", "whale", "the"}, false)
	cs.AddDocument([]string{"the", "ship"}, false)
	cs.AddDocument([]string{"the", "sea"}, false)

	if cs.SampleSize() != 3 {
		t.Fatalf("expected sample size 3, got %d", cs.SampleSize())
	}
	if info, _ := cs.Term("the"); info.SampleFrequency != 3 || info.TermFrequency != 4 {
		t.Errorf("unexpected statistics for the: %+v", info)
	}

	common := cs.DetectCommonWords()
	if len(common) != 1 || common[0] != "the" {
		t.Fatalf("expected only the to be common, got %v", common)
	}
	if cs.IsCommon("whale") {
		t.Error("whale appears in one document and is not common")
	}

	cs.ClearResults()
	if cs.SampleSize() != 0 || cs.Len() != 0 {
		t.Fatalf("clear should discard the sample")
	}
	if !cs.IsCommon("the") {
		t.Fatal("clear should keep the common words")
	}
	if cs.AddTerm("the", true) {
		t.Error("adding a common word with filtering should be a no-op")
	}
	if _, ok := cs.Term("the"); ok {
		t.Error("the should not be in the sample")
	}
	if !cs.AddTerm("the", false) {
		t.Error("adding a common word without filtering should be recorded")
	}
}

func TestContentSummary_CheckpointThrottle(t *testing.T) {
	cs := summary.New()
	for i := 1; i < summary.CheckpointInterval; i++ {
		cs.AddDocument(zipfDocument(i), true)
		if cs.Checkpoint() {
			t.Fatalf("checkpoint ran after only %d samples", i)
		}
	}
	cs.AddDocument(zipfDocument(summary.CheckpointInterval), true)
	if !cs.Checkpoint() {
		t.Fatal("expected a checkpoint after the interval")
	}
	cs.AddDocument(zipfDocument(summary.CheckpointInterval+1), true)
	if cs.Checkpoint() {
		t.Fatal("checkpoint should be throttled right after running")
	}
	checkpoints := cs.Checkpoints()
	if len(checkpoints) != 1 || checkpoints[0].SampleSize != summary.CheckpointInterval {
		t.Fatalf("unexpected checkpoints %+v", checkpoints)
	}
	if checkpoints[0].RankFrequency.A >= 0 {
		t.Errorf("frequency should fall with rank, got %+v", checkpoints[0].RankFrequency)
	}
	if !checkpoints[0].HasHistogram {
		t.Error("expected a histogram fit")
	}
}

func sampled(n int) *summary.ContentSummary {
	cs := summary.New()
	for i := 1; i <= n; i++ {
		cs.AddDocument(zipfDocument(i), false)
	}
	cs.DetectCommonWords()
	cs.ClearResults()
	for i := 1; i <= n; i++ {
		cs.AddDocument(zipfDocument(i), true)
		cs.Checkpoint()
	}
	return cs
}

func TestContentSummary_RealFrequencyMonotonic(t *testing.T) {
	cs := sampled(200)
	if len(cs.Checkpoints()) != 10 {
		t.Fatalf("expected 10 checkpoints, got %d", len(cs.Checkpoints()))
	}
	law, ok := cs.Extrapolate(20000)
	if !ok {
		t.Fatal("expected a law")
	}
	if law.A > 0 {
		t.Errorf("law exponent must not be positive, got %v", law.A)
	}

	prev := math.Inf(1)
	for sf := cs.SampleSize(); sf >= 1; sf-- {
		v := cs.RealFrequency(sf)
		if v > prev+1e-9 {
			t.Fatalf("real frequency increased as rank grew: sf=%d %v > %v", sf, v, prev)
		}
		if v > 20000 || v < 1 {
			t.Fatalf("real frequency %v out of range", v)
		}
		prev = v
	}
}

func TestContentSummary_ExtrapolateWithoutCheckpoints(t *testing.T) {
	cs := summary.New()
	for i := 1; i <= 5; i++ {
		cs.AddDocument(zipfDocument(i), false)
	}
	if _, ok := cs.Extrapolate(50); !ok {
		t.Fatal("expected a law fitted from the current sample")
	}
	if len(cs.Checkpoints()) != 1 {
		t.Errorf("expected the fit to be recorded as a checkpoint")
	}

	empty := summary.New()
	if _, ok := empty.Extrapolate(50); ok {
		t.Error("an empty sample has no law")
	}
	if v := empty.RealFrequency(1); v != 0 {
		t.Errorf("expected 0, got %v", v)
	}
}

func TestContentSummary_ProportionalFallback(t *testing.T) {
	cs := summary.New()
	cs.AddDocument([]string{"whale"}, false)
	cs.AddDocument([]string{"whale"}, false)
	// A single distinct frequency cannot be fitted.
	if _, ok := cs.Extrapolate(100); ok {
		t.Fatal("expected no law")
	}
	if v := cs.RealFrequency(2); v != 100 {
		t.Errorf("expected proportional scaling to 100, got %v", v)
	}
	if v := cs.RealFrequency(1); v != 50 {
		t.Errorf("expected proportional scaling to 50, got %v", v)
	}
}

func TestContentSummary_Profile(t *testing.T) {
	cs := sampled(60)
	cs.Extrapolate(600)
	p := cs.Profile()
	if p.Len() != cs.Len() {
		t.Fatalf("expected %d terms, got %d", cs.Len(), p.Len())
	}
	if _, ok := p.Get("t1"); ok {
		t.Error("t1 appears in every document and is a common word")
	}
	e, ok := p.Get("t2")
	if !ok || e.Observed != 30 || !e.HasReal || e.Real > 600 {
		t.Errorf("unexpected profile entry %+v", e)
	}
}

func TestContentSummary_Write(t *testing.T) {
	cs := sampled(40)

	var b bytes.Buffer
	if err := cs.WriteTo(&b, 400.4); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	if lines[0] != `<?xml version="1.0" encoding="UTF-8"?>` {
		t.Errorf("unexpected declaration %q", lines[0])
	}
	header := `<content-summary xmlns="http://sdarts.cs.columbia.edu/content-summary" stemming="false" stopwords="false" case-sensitive="true" fields="false" numdocs="400" sample_size="40">`
	if lines[1] != header {
		t.Errorf("unexpected header\n%s\n%s", lines[1], header)
	}
	if lines[2] != `  <field-freq field="body-of-text">` {
		t.Errorf("unexpected field block %q", lines[2])
	}
	if got := len(lines) - 5; got != cs.Len() {
		t.Errorf("expected %d term lines, got %d", cs.Len(), got)
	}
	stats := cs.Statistics()
	first := fmt.Sprintf("    <term><value>%s</value><term-freq>%d</term-freq><doc-freq>%d</doc-freq></term>",
		stats[0].Term, stats[0].TermFrequency, stats[0].DocumentFrequency)
	if lines[3] != first {
		t.Errorf("expected %q, got %q", first, lines[3])
	}
	for i := 1; i < len(stats); i++ {
		if stats[i].DocumentFrequency > stats[i-1].DocumentFrequency {
			t.Fatalf("terms are not ordered by document frequency")
		}
	}
	if strings.Contains(b.String(), "<value>the</value>") {
		t.Error("common words must not be written")
	}
	for _, s := range stats {
		if s.DocumentFrequency > 400 || s.DocumentFrequency < 1 {
			t.Errorf("document frequency out of range: %+v", s)
		}
	}

	path := filepath.Join(t.TempDir(), "summary.xml")
	if err := cs.Write(path, 400.4); err != nil {
		t.Fatal(err)
	}
}

// line fits y = intercept + slope*x by ordinary least squares.
func line(x, y []float64) (slope, intercept float64) {
	var mx, my float64
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= float64(len(x))
	my /= float64(len(y))
	var sxy, sxx float64
	for i := range x {
		sxy += (x[i] - mx) * (y[i] - my)
		sxx += (x[i] - mx) * (x[i] - mx)
	}
	slope = sxy / sxx
	return slope, my - slope*mx
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// small is a sample of four documents in which a appears in every document, b and c in two, and d, e, f and g in
// one each.
func small() *summary.ContentSummary {
	cs := summary.New()
	cs.AddDocument([]string{"a", "b", "c", "d"}, false)
	cs.AddDocument([]string{"a", "b", "c", "e"}, false)
	cs.AddDocument([]string{"a", "f"}, false)
	cs.AddDocument([]string{"a", "g"}, false)
	return cs
}

func TestContentSummary_Fits(t *testing.T) {
	cs := small()
	law, ok := cs.Extrapolate(1000)
	if !ok {
		t.Fatal("expected a law")
	}
	checkpoints := cs.Checkpoints()
	if len(checkpoints) != 1 {
		t.Fatalf("expected one checkpoint, got %d", len(checkpoints))
	}
	cp := checkpoints[0]

	// Buckets ceil(log2(sf)): 0 holds four terms, 1 holds two, 2 holds one.
	if !cp.HasHistogram || !near(cp.Histogram.A, -1) || !near(cp.Histogram.B, 2) {
		t.Errorf("expected histogram slope -1 and intercept 2, got %+v", cp.Histogram)
	}

	// Mid-ranks: a is 1, b and c share 2.5, d to g share 5.5.
	x := []float64{0, math.Log2(2.5), math.Log2(2.5), math.Log2(5.5), math.Log2(5.5), math.Log2(5.5), math.Log2(5.5)}
	y := []float64{2, 1, 1, 0, 0, 0, 0}
	a, b := line(x, y)
	if !near(cp.RankFrequency.A, a) || !near(cp.RankFrequency.B, b) {
		t.Errorf("expected rank-frequency slope %v and intercept %v, got %+v", a, b, cp.RankFrequency)
	}
	if !near(law.A, a) || !near(law.B, b) {
		t.Errorf("a single checkpoint should be used as the law, got %+v", law)
	}

	expected := math.Pow(2, b)*math.Pow(2.5, a) + 1
	if v := cs.RealFrequency(2); !near(v, expected) {
		t.Errorf("expected real frequency %v, got %v", expected, v)
	}
}

func TestContentSummary_ExtrapolateLine(t *testing.T) {
	cs := sampled(40)
	checkpoints := cs.Checkpoints()
	if len(checkpoints) != 2 || checkpoints[0].SampleSize != 20 || checkpoints[1].SampleSize != 40 {
		t.Fatalf("expected checkpoints at 20 and 40, got %+v", checkpoints)
	}
	first, second := checkpoints[0].RankFrequency, checkpoints[1].RankFrequency

	// log2(80) is as far beyond log2(40) as log2(40) is beyond log2(20), so the line through the two checkpoints
	// continues by one more step.
	law, ok := cs.Extrapolate(80)
	if !ok {
		t.Fatal("expected a law")
	}
	a := 2*second.A - first.A
	if a > 0 {
		a = 0
	}
	b := 2*second.B - first.B
	if !near(law.A, a) || !near(law.B, b) {
		t.Errorf("expected law A=%v B=%v, got %+v", a, b, law)
	}

	// At the size of the last checkpoint the law is that checkpoint's fit.
	law, _ = cs.Extrapolate(40)
	if second.A <= 0 && (!near(law.A, second.A) || !near(law.B, second.B)) {
		t.Errorf("expected %+v at the last checkpoint, got %+v", second, law)
	}
}
