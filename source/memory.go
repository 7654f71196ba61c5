package source

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hscells/qprober/preprocess"
	"github.com/hscells/qprober/query"
	"github.com/magiconair/properties"
	"github.com/pkg/errors"
)

// Memory is a collection held in memory. Queries are evaluated against the set of terms of each document.
type Memory struct {
	name       string
	documents  []Document
	terms      []map[string]bool
	categories []string
	limit      int

	// Queries counts the queries issued.
	Queries int
}

// NewMemory creates an in-memory collection. limit is the number of documents returned per query.
func NewMemory(name string, limit int, documents []Document, categories ...string) (*Memory, error) {
	m := &Memory{
		name:       name,
		documents:  documents,
		terms:      make([]map[string]bool, len(documents)),
		categories: categories,
		limit:      limit,
	}
	for i, d := range documents {
		tokens, err := preprocess.Tokenise(d.Text)
		if err != nil {
			return nil, errors.Wrapf(err, "could not tokenise %s", d.Linkage)
		}
		m.terms[i] = make(map[string]bool, len(tokens))
		for _, token := range tokens {
			m.terms[i][token] = true
		}
	}
	return m, nil
}

// LoadMemory creates an in-memory collection from a directory where every regular file is a document, linked by its
// file name.
func LoadMemory(name, directory string, limit int, categories ...string) (*Memory, error) {
	files, err := ioutil.ReadDir(directory)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read collection %s", directory)
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Name() < files[j].Name()
	})
	var documents []Document
	for _, f := range files {
		if f.IsDir() || strings.HasPrefix(f.Name(), ".") {
			continue
		}
		b, err := ioutil.ReadFile(filepath.Join(directory, f.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "could not read document %s", f.Name())
		}
		documents = append(documents, Document{Linkage: f.Name(), Text: string(b)})
	}
	return NewMemory(name, limit, documents, categories...)
}

// MemoryFactory opens a directory of documents. The settings are "path", "name" (defaults to the base name of the
// path), "limit" and "categories".
func MemoryFactory(props *properties.Properties) (Source, error) {
	path := props.GetString("path", "")
	if len(path) == 0 {
		return nil, errors.New("memory source requires a path")
	}
	name := props.GetString("name", filepath.Base(path))
	return LoadMemory(name, path, props.GetInt("limit", 10), categories(props)...)
}

// Name of the collection.
func (m *Memory) Name() string {
	return m.name
}

// Categories the collection was created with.
func (m *Memory) Categories() []string {
	return m.categories
}

// Len is the number of documents in the collection.
func (m *Memory) Len() int {
	return len(m.documents)
}

// Query counts the documents matching the query, and returns the first of them in collection order.
func (m *Memory) Query(ctx context.Context, text string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	m.Queries++
	q := query.Parse(text)
	if q.IsEmpty() {
		return Result{}, errors.Errorf("query %q has no positive words", text)
	}
	var r Result
	for i, terms := range m.terms {
		if !q.Matches(terms) {
			continue
		}
		r.Hits++
		if len(r.Documents) < m.limit {
			r.Documents = append(r.Documents, m.documents[i])
		}
	}
	return r, nil
}
