// Package output provides different formats of output for evaluations.
package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// EvaluationFormatter formats a map of collection->measure->score.
type EvaluationFormatter func(map[string]map[string]float64) (string, error)

// JsonEvaluationFormatter outputs results in a JSON format.
func JsonEvaluationFormatter(results map[string]map[string]float64) (string, error) {
	v, err := json.MarshalIndent(results, "", "    ")
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// CsvEvaluationFormatter outputs results in CSV format, one row per collection and one column per measure. Rows and
// columns are sorted; a measure missing for a collection is left empty.
func CsvEvaluationFormatter(results map[string]map[string]float64) (string, error) {
	collections := make([]string, 0, len(results))
	set := make(map[string]bool)
	for collection, scores := range results {
		collections = append(collections, collection)
		for measure := range scores {
			set[measure] = true
		}
	}
	sort.Strings(collections)
	measures := make([]string, 0, len(set))
	for measure := range set {
		measures = append(measures, measure)
	}
	sort.Strings(measures)

	b := bytes.NewBufferString("")
	w := csv.NewWriter(b)
	w.Write(append([]string{"Collection"}, measures...))
	for _, collection := range collections {
		record := make([]string, len(measures)+1)
		record[0] = collection
		for i, measure := range measures {
			if v, ok := results[collection][measure]; ok {
				record[i+1] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		w.Write(record)
	}
	w.Flush()
	return b.String(), w.Error()
}

// Formatters are the available formatters by name.
var Formatters = map[string]EvaluationFormatter{
	"json": JsonEvaluationFormatter,
	"csv":  CsvEvaluationFormatter,
}

// Lookup finds a formatter by name.
func Lookup(name string) (EvaluationFormatter, error) {
	f, ok := Formatters[name]
	if !ok {
		return nil, errors.Errorf("unknown output format %s", name)
	}
	return f, nil
}
