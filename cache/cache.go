// Package cache stores the results of probe queries so that classifying a collection again does not need to query
// the collection again.
package cache

import (
	"bytes"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/golang-lru"
	"github.com/hscells/qprober/source"
	"github.com/peterbourgon/diskv"
	"github.com/pkg/errors"
)

// ErrCacheMiss is returned when a query has no (complete) cache entry.
var ErrCacheMiss = errors.New("cache miss")

const (
	infoKey = "info.result"
	// openStores is the number of diskv stores kept open.
	openStores = 256
)

// QueryCacher models a way to cache (either persistent or not) the hit count of a query and the documents it
// retrieved, per collection.
type QueryCacher interface {
	Get(collection, query string) (source.Result, error)
	Set(collection, query string, result source.Result) error
}

// QueryCache embeds a privately defined query cacher into a public struct.
type QueryCache struct {
	QueryCacher
}

// NewQueryCache creates an on-disk cache rooted at root that keeps at most maxDocuments documents per query. An empty
// root disables caching.
func NewQueryCache(root string, maxDocuments int) QueryCache {
	if len(root) == 0 {
		return NewNopQueryCache()
	}
	return NewDiskvQueryCache(root, maxDocuments)
}

type nopQueryCache struct{}

func (nopQueryCache) Get(collection, query string) (source.Result, error) {
	return source.Result{}, ErrCacheMiss
}

func (nopQueryCache) Set(collection, query string, result source.Result) error {
	return nil
}

// NewNopQueryCache creates a cache that never holds anything.
func NewNopQueryCache() QueryCache {
	return QueryCache{nopQueryCache{}}
}

type mapQueryCache struct {
	sync.RWMutex
	m            map[string]source.Result
	maxDocuments int
}

func mapKey(collection, query string) string {
	return collection + "\x00" + query
}

func (m *mapQueryCache) Get(collection, query string) (source.Result, error) {
	m.RLock()
	defer m.RUnlock()
	if r, ok := m.m[mapKey(collection, query)]; ok {
		return r, nil
	}
	return source.Result{}, ErrCacheMiss
}

func (m *mapQueryCache) Set(collection, query string, result source.Result) error {
	result = result.Truncate(m.maxDocuments)
	documents := make([]source.Document, len(result.Documents))
	copy(documents, result.Documents)
	result.Documents = documents

	m.Lock()
	defer m.Unlock()
	m.m[mapKey(collection, query)] = result
	return nil
}

// NewMapQueryCache creates a query cache out of a regular go map.
func NewMapQueryCache(maxDocuments int) QueryCache {
	return QueryCache{&mapQueryCache{m: make(map[string]source.Result), maxDocuments: maxDocuments}}
}

// diskvQueryCache keeps one diskv store per collection and query, in the directory
// <root>/<collection>/<query>/, holding info.result with the number of hits and 0.result, 1.result, ... with the
// documents. The first line of a document file is the linkage of the document.
type diskvQueryCache struct {
	root         string
	maxDocuments int
	stores       *lru.Cache

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDiskvQueryCache creates a new on-disk cache rooted at root.
func NewDiskvQueryCache(root string, maxDocuments int) QueryCache {
	stores, err := lru.New(openStores)
	if err != nil {
		panic(err)
	}
	return QueryCache{&diskvQueryCache{
		root:         root,
		maxDocuments: maxDocuments,
		stores:       stores,
		locks:        make(map[string]*sync.Mutex),
	}}
}

func (d *diskvQueryCache) path(collection, query string) (string, error) {
	if len(collection) == 0 || len(strings.TrimSpace(query)) == 0 {
		return "", errors.Errorf("cannot cache query %q of collection %q", query, collection)
	}
	return filepath.Join(d.root, url.PathEscape(collection), url.PathEscape(query)), nil
}

// lock serialises access to one cache entry.
func (d *diskvQueryCache) lock(path string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[path]
	if !ok {
		l = new(sync.Mutex)
		d.locks[path] = l
	}
	return l
}

func (d *diskvQueryCache) store(path string) *diskv.Diskv {
	if s, ok := d.stores.Get(path); ok {
		return s.(*diskv.Diskv)
	}
	s := diskv.New(diskv.Options{
		BasePath:     path,
		Transform:    func(s string) []string { return []string{} },
		CacheSizeMax: 0,
	})
	d.stores.Add(path, s)
	return s
}

func documentKey(i int) string {
	return fmt.Sprintf("%d.result", i)
}

func (d *diskvQueryCache) Get(collection, query string) (source.Result, error) {
	path, err := d.path(collection, query)
	if err != nil {
		return source.Result{}, ErrCacheMiss
	}
	l := d.lock(path)
	l.Lock()
	defer l.Unlock()

	s := d.store(path)
	b, err := s.Read(infoKey)
	if err != nil {
		return source.Result{}, ErrCacheMiss
	}
	hits, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil || hits < 0 {
		return source.Result{}, ErrCacheMiss
	}

	r := source.Result{Hits: hits}
	for i := 0; i < d.maxDocuments; i++ {
		b, err := s.Read(documentKey(i))
		if err != nil {
			break
		}
		r.Documents = append(r.Documents, decodeDocument(b))
	}
	return r, nil
}

func (d *diskvQueryCache) Set(collection, query string, result source.Result) error {
	path, err := d.path(collection, query)
	if err != nil {
		return err
	}
	l := d.lock(path)
	l.Lock()
	defer l.Unlock()

	s := d.store(path)
	if err := s.EraseAll(); err != nil {
		return errors.Wrapf(err, "could not clear cache entry %s", path)
	}
	// The documents are written before the hit count so that an interrupted write is a miss.
	for i, doc := range result.Truncate(d.maxDocuments).Documents {
		if err := s.Write(documentKey(i), encodeDocument(doc)); err != nil {
			return errors.Wrapf(err, "could not cache document %d of %s", i, path)
		}
	}
	if err := s.Write(infoKey, []byte(strconv.FormatInt(result.Hits, 10))); err != nil {
		return errors.Wrapf(err, "could not cache hits of %s", path)
	}
	return nil
}

func encodeDocument(doc source.Document) []byte {
	var b bytes.Buffer
	b.WriteString(strings.NewReplacer("\n", " ", "\r", " ").Replace(doc.Linkage))
	b.WriteByte('\n')
	b.WriteString(doc.Text)
	return b.Bytes()
}

func decodeDocument(b []byte) source.Document {
	i := bytes.IndexByte(b, '\n')
	if i < 0 {
		return source.Document{Linkage: string(b)}
	}
	return source.Document{
		Linkage: strings.TrimRight(string(b[:i]), "\r"),
		Text:    string(b[i+1:]),
	}
}
