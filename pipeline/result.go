// Package pipeline holds the records streamed by a batch of collection classifications.
package pipeline

// ResultType is the type of result being returned through a pipeline channel.
type ResultType uint8

const (
	// Summary is a completed content summary of a collection.
	Summary ResultType = iota
	// Evaluation is an evaluation of a classification against the known categories of a collection.
	Evaluation
	// Error indicates an error was raised.
	Error
	// Done indicates the pipeline has completed.
	Done
)

func (t ResultType) String() string {
	switch t {
	case Summary:
		return "summary"
	case Evaluation:
		return "evaluation"
	case Error:
		return "error"
	case Done:
		return "done"
	}
	return "unknown"
}

// Result is the output of a batch pipeline.
type Result struct {
	Collection    string
	Categories    []string
	EstimatedSize float64
	SampleSize    int
	SummaryPath   string
	// Failures is the number of probes and documents that failed and were skipped.
	Failures    int
	Evaluations map[string]float64
	Type        ResultType
	Error       error
}
