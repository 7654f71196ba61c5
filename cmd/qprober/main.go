package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/alexflint/go-arg"
	"github.com/hscells/qprober"
	"github.com/hscells/qprober/output"
	"github.com/hscells/qprober/pipeline"
	"github.com/hscells/qprober/source"
	"gopkg.in/cheggaaa/pb.v1"
)

var (
	name    = "qprober"
	version = "17.Oct.2026"
	author  = "qprober contributors"
)

type args struct {
	Config      string   `help:"path to the configuration file" arg:"-c,required"`
	Key         string   `help:"source setting each collection argument is assigned to" arg:"-k"`
	Concurrency int      `help:"number of collections classified at once" arg:"-j"`
	Format      string   `help:"format of the category evaluation (json/csv)" arg:"-f"`
	Collections []string `help:"collections to classify instead of the configured one" arg:"positional"`
}

func (args) Version() string {
	return version
}

func (args) Description() string {
	return fmt.Sprintf(`%s
@ %s
# %s`, name, author, version)
}

func main() {
	args := args{Key: "path", Concurrency: 1, Format: "json"}
	arg.MustParse(&args)

	c, err := qprober.LoadConfig(args.Config)
	if err != nil {
		log.Fatalln(err)
	}
	h, err := c.Hierarchy()
	if err != nil {
		log.Fatalln(err)
	}
	st, err := c.OpenStore()
	if err != nil {
		log.Fatalln(err)
	}
	if st != nil {
		defer st.Close()
	}
	formatter, err := output.Lookup(args.Format)
	if err != nil {
		log.Fatalln(err)
	}

	registry := source.NewRegistry()
	var sources []source.Source
	if len(args.Collections) == 0 {
		s, err := c.OpenSource(registry)
		if err != nil {
			log.Fatalln(err)
		}
		sources = append(sources, s)
	}
	for _, collection := range args.Collections {
		props := c.Source.FilterPrefix("")
		if _, _, err := props.Set(args.Key, collection); err != nil {
			log.Fatalln(err)
		}
		if _, _, err := props.Set("name", filepath.Base(collection)); err != nil {
			log.Fatalln(err)
		}
		s, err := registry.Open(c.SourceType, props)
		if err != nil {
			log.Fatalln(err)
		}
		sources = append(sources, s)
	}

	options := c.Options(st)
	var bar *pb.ProgressBar
	if len(sources) == 1 {
		bar = pb.New(c.Size.Probes)
		options = append(options, qprober.WithProgress(func(done, total int) {
			if done <= total {
				bar.Set(done)
			}
		}))
	} else {
		bar = pb.New(len(sources))
	}
	bar.Output = os.Stderr
	bar.Start()

	batch := qprober.Batch{
		Hierarchy:     h,
		Options:       options,
		Concurrency:   args.Concurrency,
		HeadwayServer: c.HeadwayServer,
		HeadwaySecret: c.HeadwaySecret,
	}
	results := make(chan pipeline.Result)
	go batch.Execute(context.Background(), sources, results)

	evaluations := make(map[string]map[string]float64)
	failed := false
	for r := range results {
		switch r.Type {
		case pipeline.Summary:
			if len(sources) > 1 {
				bar.Increment()
			}
			fmt.Printf("%s\t%v\t%.0f\t%d\t%s\n", r.Collection, r.Categories, r.EstimatedSize, r.SampleSize, r.SummaryPath)
			if r.Failures > 0 {
				log.Printf("%s: %d queries or documents failed and were skipped\n", r.Collection, r.Failures)
			}
		case pipeline.Evaluation:
			evaluations[r.Collection] = r.Evaluations
		case pipeline.Error:
			if len(sources) > 1 {
				bar.Increment()
			}
			log.Printf("%s: %v\n", r.Collection, r.Error)
			failed = true
		case pipeline.Done:
			bar.Finish()
		}
	}

	if len(evaluations) > 0 {
		s, err := formatter(evaluations)
		if err != nil {
			log.Fatalln(err)
		}
		fmt.Fprintln(os.Stderr, s)
	}
	if failed {
		os.Exit(1)
	}
}
