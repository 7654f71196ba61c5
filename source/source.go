// Package source provides the remote collections that probe queries are issued against.
package source

import (
	"context"
	"sort"
	"strings"

	"github.com/magiconair/properties"
	"github.com/pkg/errors"
)

// ErrUnknownSource is returned when a source type has not been registered.
var ErrUnknownSource = errors.New("unknown source type")

// Document returned by a query.
type Document struct {
	// Linkage identifies the document within its source, e.g. a URL or an identifier.
	Linkage string
	Text    string
}

// Result of a query.
type Result struct {
	// Hits is the number of documents in the collection that match the query.
	Hits int64
	// Documents are the top documents that were returned.
	Documents []Document
}

// Truncate keeps at most n documents of the result.
func (r Result) Truncate(n int) Result {
	if n >= 0 && len(r.Documents) > n {
		r.Documents = r.Documents[:n]
	}
	return r
}

// Source is a collection that can only be queried.
type Source interface {
	// Name identifies the collection, e.g. in the query cache.
	Name() string
	// Query issues a probe query against the collection.
	Query(ctx context.Context, text string) (Result, error)
	// Categories the collection is known to belong to, if any.
	Categories() []string
}

// Factory creates a source from its configuration.
type Factory func(props *properties.Properties) (Source, error)

// Registry maps a source type to the factory creating it.
type Registry map[string]Factory

// NewRegistry creates a registry of every source in this package.
func NewRegistry() Registry {
	return Registry{
		"memory":        MemoryFactory,
		"entrez":        EntrezFactory,
		"elasticsearch": ElasticsearchFactory,
	}
}

// Register adds (or replaces) a factory.
func (r Registry) Register(kind string, f Factory) {
	r[strings.ToLower(kind)] = f
}

// Types lists the registered source types.
func (r Registry) Types() []string {
	kinds := make([]string, 0, len(r))
	for kind := range r {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Open creates a source of the given type. props are the settings of the source, without their "source." prefix.
func (r Registry) Open(kind string, props *properties.Properties) (Source, error) {
	f, ok := r[strings.ToLower(kind)]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSource, "%q (known types are %s)", kind, strings.Join(r.Types(), ", "))
	}
	if props == nil {
		props = properties.NewProperties()
	}
	s, err := f(props)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s source", kind)
	}
	return s, nil
}

// categories reads a comma separated list of categories.
func categories(props *properties.Properties) []string {
	var c []string
	for _, category := range strings.Split(props.GetString("categories", ""), ",") {
		if category = strings.TrimSpace(category); len(category) > 0 {
			c = append(c, category)
		}
	}
	return c
}
