package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hscells/qprober/query"
	"github.com/magiconair/properties"
	"github.com/olivere/elastic/v7"
	"github.com/pkg/errors"
)

// Elasticsearch queries an Elasticsearch index with query string queries.
type Elasticsearch struct {
	client     *elastic.Client
	hosts      []string
	name       string
	index      string
	field      string
	size       int
	categories []string
}

// ElasticsearchClient uses an existing client.
func ElasticsearchClient(client *elastic.Client) func(*Elasticsearch) {
	return func(es *Elasticsearch) {
		es.client = client
	}
}

// ElasticsearchHosts sets the hosts the client connects to.
func ElasticsearchHosts(hosts ...string) func(*Elasticsearch) {
	return func(es *Elasticsearch) {
		es.hosts = hosts
	}
}

// ElasticsearchIndex sets the index to search.
func ElasticsearchIndex(index string) func(*Elasticsearch) {
	return func(es *Elasticsearch) {
		es.index = index
	}
}

// ElasticsearchField sets the field that is searched and whose text is returned.
func ElasticsearchField(field string) func(*Elasticsearch) {
	return func(es *Elasticsearch) {
		es.field = field
	}
}

// ElasticsearchSize sets the number of documents returned per query.
func ElasticsearchSize(size int) func(*Elasticsearch) {
	return func(es *Elasticsearch) {
		es.size = size
	}
}

// ElasticsearchName sets the name of the collection, the index name by default.
func ElasticsearchName(name string) func(*Elasticsearch) {
	return func(es *Elasticsearch) {
		es.name = name
	}
}

// ElasticsearchCategories sets the categories the collection is known to belong to.
func ElasticsearchCategories(categories ...string) func(*Elasticsearch) {
	return func(es *Elasticsearch) {
		es.categories = categories
	}
}

// NewElasticsearch creates an Elasticsearch source using functional options. Without a client or hosts it connects to
// http://localhost:9200.
func NewElasticsearch(options ...func(*Elasticsearch)) (*Elasticsearch, error) {
	es := &Elasticsearch{
		field: "text",
		size:  10,
	}
	for _, option := range options {
		option(es)
	}
	if len(es.index) == 0 {
		return nil, errors.New("elasticsearch source requires an index")
	}
	if len(es.name) == 0 {
		es.name = es.index
	}

	if es.client == nil {
		if len(es.hosts) == 0 {
			es.hosts = []string{"http://localhost:9200"}
		}
		var err error
		es.client, err = elastic.NewClient(elastic.SetURL(es.hosts...), elastic.SetSniff(false))
		if err != nil {
			return nil, errors.Wrapf(err, "could not connect to %v", es.hosts)
		}
	}
	return es, nil
}

// ElasticsearchFactory creates an Elasticsearch source from the settings "hosts" (comma separated), "index", "field",
// "size", "name" and "categories".
func ElasticsearchFactory(props *properties.Properties) (Source, error) {
	var hosts []string
	for _, host := range strings.Split(props.GetString("hosts", ""), ",") {
		if host = strings.TrimSpace(host); len(host) > 0 {
			hosts = append(hosts, host)
		}
	}
	return NewElasticsearch(
		ElasticsearchHosts(hosts...),
		ElasticsearchIndex(props.GetString("index", "")),
		ElasticsearchField(props.GetString("field", "text")),
		ElasticsearchSize(props.GetInt("size", 10)),
		ElasticsearchName(props.GetString("name", "")),
		ElasticsearchCategories(categories(props)...),
	)
}

// Name of the collection.
func (es *Elasticsearch) Name() string {
	return es.name
}

// Categories the collection is known to belong to.
func (es *Elasticsearch) Categories() []string {
	return es.categories
}

// Query searches the field of the index with a query string query, tracking the exact number of hits.
func (es *Elasticsearch) Query(ctx context.Context, text string) (Result, error) {
	q := query.Parse(text)
	if q.IsEmpty() {
		return Result{}, errors.Errorf("query %q has no positive words", text)
	}

	res, err := es.client.Search(es.index).
		Query(elastic.NewQueryStringQuery(q.Lucene()).DefaultField(es.field).DefaultOperator("AND")).
		TrackTotalHits(true).
		Size(es.size).
		Do(ctx)
	if err != nil {
		return Result{}, errors.Wrapf(err, "search %s for %q", es.index, q.Lucene())
	}

	r := Result{Hits: res.TotalHits()}
	if res.Hits == nil {
		return r, nil
	}
	for _, hit := range res.Hits.Hits {
		d := Document{Linkage: hit.Id}
		if hit.Source != nil {
			var source map[string]interface{}
			if err := json.Unmarshal(hit.Source, &source); err != nil {
				return Result{}, errors.Wrapf(err, "could not decode document %s", hit.Id)
			}
			switch v := source[es.field].(type) {
			case nil:
			case string:
				d.Text = v
			default:
				d.Text = fmt.Sprint(v)
			}
		}
		r.Documents = append(r.Documents, d)
	}
	return r, nil
}
