package main

import (
	"fmt"
	"log"
	"os"

	"github.com/alexflint/go-arg"
	"github.com/hscells/qprober/cmd"
	"github.com/hscells/qprober/eval"
	"github.com/hscells/qprober/output"
	"github.com/hscells/qprober/profile"
)

var (
	name    = "profileeval"
	version = "17.Oct.2026"
	author  = "qprober contributors"
)

type args struct {
	Measures  []string `help:"evaluation measures to use (all when empty)" arg:"-m,separate"`
	Format    string   `help:"output format (json/csv)" arg:"-f"`
	Output    string   `help:"file to write the evaluation to (stdout when empty)" arg:"-o"`
	Estimated string   `help:"directory of estimated profiles" arg:"required,positional"`
	Correct   string   `help:"directory of profiles of the full collections" arg:"required,positional"`
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
	args := args{Format: "json"}
	arg.MustParse(&args)

	evaluators, err := eval.Lookup(args.Measures...)
	if err != nil {
		log.Fatalln(err)
	}
	formatter, err := output.Lookup(args.Format)
	if err != nil {
		log.Fatalln(err)
	}

	estimated, err := cmd.ReadProfiles(args.Estimated)
	if err != nil {
		log.Fatalln(err)
	}
	correct, err := cmd.ReadProfiles(args.Correct)
	if err != nil {
		log.Fatalln(err)
	}
	matched := make(map[string]*profile.Profile)
	for collection, p := range estimated {
		if _, ok := correct[collection]; !ok {
			log.Printf("no correct profile for %s, skipping it\n", collection)
			continue
		}
		matched[collection] = p
	}

	s, err := formatter(eval.Evaluate(evaluators, matched, correct))
	if err != nil {
		log.Fatalln(err)
	}

	w := os.Stdout
	if len(args.Output) > 0 {
		w, err = os.OpenFile(args.Output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0664)
		if err != nil {
			log.Fatalln(err)
		}
		defer w.Close()
	}
	if _, err := fmt.Fprintln(w, s); err != nil {
		log.Fatalln(err)
	}
}
