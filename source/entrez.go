package source

import (
	"context"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/biogo/ncbi"
	"github.com/biogo/ncbi/entrez"
	"github.com/hscells/qprober/query"
	"github.com/magiconair/properties"
	"github.com/pkg/errors"
)

type pubmedArticleSet struct {
	PubmedArticle []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	MedlineCitation medlineCitation `xml:"MedlineCitation"`
}

type medlineCitation struct {
	PMID    string  `xml:"PMID"`
	Article article `xml:"Article"`
}

type article struct {
	ArticleTitle string   `xml:"ArticleTitle"`
	Abstract     abstract `xml:"Abstract"`
}

type abstract struct {
	AbstractText []string `xml:"AbstractText"`
}

// decodeArticles reads the title and abstract of every article in an EFetch response.
func decodeArticles(r io.Reader) ([]Document, error) {
	var set pubmedArticleSet
	if err := xml.NewDecoder(r).Decode(&set); err != nil {
		return nil, err
	}
	documents := make([]Document, 0, len(set.PubmedArticle))
	for _, a := range set.PubmedArticle {
		text := a.MedlineCitation.Article.ArticleTitle
		if abs := strings.Join(a.MedlineCitation.Article.Abstract.AbstractText, " "); len(abs) > 0 {
			text += "\n" + abs
		}
		documents = append(documents, Document{
			Linkage: strings.TrimSpace(a.MedlineCitation.PMID),
			Text:    text,
		})
	}
	return documents, nil
}

// Entrez queries PubMed (or another Entrez database) through the NCBI E-utilities.
type Entrez struct {
	name       string
	db         string
	tool       string
	email      string
	key        string
	retmax     int
	categories []string
}

// EntrezTool sets the tool name reported to NCBI.
func EntrezTool(tool string) func(*Entrez) {
	return func(e *Entrez) {
		e.tool = tool
	}
}

// EntrezEmail sets the contact email reported to NCBI.
func EntrezEmail(email string) func(*Entrez) {
	return func(e *Entrez) {
		e.email = email
	}
}

// EntrezAPIKey sets the API key, which raises the request rate limit.
func EntrezAPIKey(key string) func(*Entrez) {
	return func(e *Entrez) {
		e.key = key
	}
}

// EntrezDatabase sets the Entrez database, pubmed by default.
func EntrezDatabase(db string) func(*Entrez) {
	return func(e *Entrez) {
		e.db = db
	}
}

// EntrezRetMax sets the number of documents fetched per query.
func EntrezRetMax(n int) func(*Entrez) {
	return func(e *Entrez) {
		e.retmax = n
	}
}

// EntrezName sets the name of the collection.
func EntrezName(name string) func(*Entrez) {
	return func(e *Entrez) {
		e.name = name
	}
}

// EntrezCategories sets the categories the collection is known to belong to.
func EntrezCategories(categories ...string) func(*Entrez) {
	return func(e *Entrez) {
		e.categories = categories
	}
}

// NewEntrez creates an Entrez source.
func NewEntrez(options ...func(*Entrez)) *Entrez {
	e := &Entrez{
		db:     "pubmed",
		retmax: 10,
	}
	for _, option := range options {
		option(e)
	}
	if len(e.name) == 0 {
		e.name = e.db
	}

	if len(e.key) > 0 {
		entrez.Limit = ncbi.NewLimiter(time.Second / 10)
	}
	ncbi.SetTimeout(time.Minute)

	return e
}

// EntrezFactory creates an Entrez source from the settings "name", "db", "tool", "email", "key", "retmax" and
// "categories".
func EntrezFactory(props *properties.Properties) (Source, error) {
	return NewEntrez(
		EntrezName(props.GetString("name", "")),
		EntrezDatabase(props.GetString("db", "pubmed")),
		EntrezTool(props.GetString("tool", "qprober")),
		EntrezEmail(props.GetString("email", "")),
		EntrezAPIKey(props.GetString("key", "")),
		EntrezRetMax(props.GetInt("retmax", 10)),
		EntrezCategories(categories(props)...),
	), nil
}

// Name of the collection.
func (e *Entrez) Name() string {
	return e.name
}

// Categories the collection is known to belong to.
func (e *Entrez) Categories() []string {
	return e.categories
}

// Query searches the database and fetches the top documents. The E-utilities client cannot be cancelled, so the
// request runs in the background and is abandoned when the context is done.
func (e *Entrez) Query(ctx context.Context, text string) (Result, error) {
	s, err := query.Parse(text).PubMed()
	if err != nil {
		return Result{}, err
	}

	type response struct {
		r   Result
		err error
	}
	c := make(chan response, 1)
	go func() {
		r, err := e.query(s)
		c <- response{r: r, err: err}
	}()

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case resp := <-c:
		return resp.r, resp.err
	}
}

func (e *Entrez) query(q string) (Result, error) {
	search, err := entrez.DoSearch(e.db, q, &entrez.Parameters{RetMax: e.retmax, APIKey: e.key}, nil, e.tool, e.email)
	if err != nil {
		return Result{}, errors.Wrapf(err, "esearch %q", q)
	}
	r := Result{Hits: int64(search.Count)}
	if len(search.IdList) == 0 {
		return r, nil
	}

	body, err := entrez.Fetch(e.db, &entrez.Parameters{RetMode: "xml", APIKey: e.key}, e.tool, e.email, nil, search.IdList...)
	if err != nil {
		return Result{}, errors.Wrapf(err, "efetch %d documents", len(search.IdList))
	}
	defer body.Close()

	r.Documents, err = decodeArticles(body)
	if err != nil {
		return Result{}, errors.Wrap(err, "could not decode efetch response")
	}
	for i, d := range r.Documents {
		if len(d.Linkage) == 0 && i < len(search.IdList) {
			r.Documents[i].Linkage = strconv.Itoa(search.IdList[i])
		}
	}
	return r, nil
}
