package qprober

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hscells/headway"
	"github.com/hscells/qprober/eval"
	"github.com/hscells/qprober/pipeline"
	"github.com/hscells/qprober/source"
	"github.com/hscells/qprober/taxonomy"
)

// Batch classifies many collections against one hierarchy.
type Batch struct {
	Hierarchy *taxonomy.Hierarchy
	Options   []Option
	// Concurrency is the number of collections classified at once.
	Concurrency int
	// HeadwayServer receives a progress notification after every collection, authenticated with HeadwaySecret.
	HeadwayServer string
	HeadwaySecret string
}

// Execute builds the content summary of every source, sending a Summary record (and an Evaluation record for sources
// that know their categories) or an Error record for each through c, then a Done record. The channel is closed once
// the batch is complete.
func (b Batch) Execute(ctx context.Context, sources []source.Source, c chan pipeline.Result) {
	defer close(c)

	var hw *headway.Client
	progressName := fmt.Sprintf("qprober batch [#%d]", time.Now().Unix())
	if len(b.HeadwayServer) > 0 {
		hw = headway.NewClient(b.HeadwayServer, b.HeadwaySecret)
	}
	var mu sync.Mutex
	completed := 0
	notify := func(message string) {
		if hw == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		completed++
		if err := hw.Send(float64(completed), float64(len(sources)), progressName, message); err != nil {
			log.Println(err)
		}
	}

	concurrency := b.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan bool, concurrency)
	for _, s := range sources {
		sem <- true
		go func(s source.Source) {
			defer func() { <-sem }()
			if ctx.Err() != nil {
				c <- pipeline.Result{Collection: s.Name(), Error: ctx.Err(), Type: pipeline.Error}
				return
			}
			log.Printf("starting collection %s\n", s.Name())

			report, err := NewBuilder(b.Hierarchy, s, b.Options...).Build(ctx)
			if err != nil {
				notify(fmt.Sprintf("%s: %v", s.Name(), err))
				c <- pipeline.Result{Collection: s.Name(), Error: err, Type: pipeline.Error}
				return
			}

			c <- pipeline.Result{
				Collection:    report.Collection,
				Categories:    report.Categories,
				EstimatedSize: report.EstimatedSize,
				SampleSize:    report.SampleSize,
				SummaryPath:   report.SummaryPath,
				Failures:      len(report.Failures),
				Type:          pipeline.Summary,
			}
			if known := s.Categories(); len(known) > 0 {
				c <- pipeline.Result{
					Collection:  report.Collection,
					Categories:  report.Categories,
					Evaluations: eval.Categories(report.Categories, known),
					Type:        pipeline.Evaluation,
				}
			}
			notify(fmt.Sprintf("completed %s", s.Name()))
			log.Printf("completed collection %s\n", s.Name())
		}(s)
	}

	// Wait until the last goroutine has read from the semaphore.
	for i := 0; i < cap(sem); i++ {
		sem <- true
	}

	c <- pipeline.Result{Type: pipeline.Done}
}
