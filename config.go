package qprober

import (
	"time"

	"github.com/hscells/qprober/cache"
	"github.com/hscells/qprober/source"
	"github.com/hscells/qprober/store"
	"github.com/hscells/qprober/taxonomy"
	"github.com/magiconair/properties"
	"github.com/pkg/errors"
)

// Config is the configuration of a run, read from a properties file.
type Config struct {
	Schema         string
	Classification taxonomy.Options
	MaxDocuments   int
	CachePath      string
	Timeout        time.Duration
	Size           SizeOptions
	Seed           int64
	SummaryPath    string
	ProfilePath    string
	StorePath      string
	HeadwayServer  string
	HeadwaySecret  string
	SourceType     string
	// Source holds the source.* properties with the prefix stripped.
	Source *properties.Properties
}

// LoadConfig reads a configuration file.
func LoadConfig(path string) (Config, error) {
	props, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return Config{}, errors.Wrapf(err, "could not load configuration %s", path)
	}
	return ParseConfig(props)
}

// ParseConfig reads a configuration from properties, filling in defaults.
func ParseConfig(props *properties.Properties) (Config, error) {
	c := Config{
		Schema:        props.GetString("classification.schema", ""),
		MaxDocuments:  props.GetInt("sampling.maxdocs", 4),
		CachePath:     props.GetString("cache.path", ""),
		Timeout:       props.GetParsedDuration("query.timeout", 30*time.Second),
		Seed:          props.GetInt64("size.seed", time.Now().UnixNano()),
		SummaryPath:   props.GetString("output.path", ""),
		ProfilePath:   props.GetString("output.profile", ""),
		StorePath:     props.GetString("store.path", ""),
		HeadwayServer: props.GetString("headway.server", ""),
		HeadwaySecret: props.GetString("headway.secret", ""),
		SourceType:    props.GetString("source.type", ""),
		Source:        props.FilterStripPrefix("source."),
		Size: SizeOptions{
			Probes:  props.GetInt("size.probes", DefaultSizeOptions.Probes),
			Retries: props.GetInt("size.retries", DefaultSizeOptions.Retries),
			Lower:   props.GetFloat64("size.band.lower", DefaultSizeOptions.Lower),
			Upper:   props.GetFloat64("size.band.upper", DefaultSizeOptions.Upper),
		},
	}
	if len(c.Schema) == 0 {
		return c, errors.New("classification.schema is required")
	}
	if len(c.SourceType) == 0 {
		return c, errors.New("source.type is required")
	}
	if c.Timeout <= 0 {
		return c, errors.Errorf("query.timeout must be positive, got %v", c.Timeout)
	}
	if c.MaxDocuments < 0 {
		return c, errors.Errorf("sampling.maxdocs must not be negative, got %d", c.MaxDocuments)
	}
	if c.Size.Lower < 0 || c.Size.Upper > 1 || c.Size.Lower > c.Size.Upper {
		return c, errors.Errorf("invalid size probe band [%v, %v]", c.Size.Lower, c.Size.Upper)
	}

	method, err := taxonomy.ParseMethod(props.GetString("classification.method", "probonly"))
	if err != nil {
		return c, err
	}
	fallback, err := taxonomy.ParseFallback(props.GetString("classification.fallback", "node"))
	if err != nil {
		return c, err
	}
	c.Classification = taxonomy.Options{
		Specificity: props.GetFloat64("classification.specificity", 0.4),
		Coverage:    props.GetFloat64("classification.coverage", 0),
		Method:      method,
		Fallback:    fallback,
	}
	return c, nil
}

// Hierarchy loads the taxonomy named by the configuration.
func (c Config) Hierarchy() (*taxonomy.Hierarchy, error) {
	h, err := taxonomy.Load(c.Schema)
	if err != nil {
		return nil, errors.Wrap(err, "invalid classification.schema")
	}
	return h, nil
}

// OpenSource opens the configured source through the registry.
func (c Config) OpenSource(registry source.Registry) (source.Source, error) {
	return registry.Open(c.SourceType, c.Source)
}

// OpenStore opens the run store, or returns nil when none is configured.
func (c Config) OpenStore() (*store.Store, error) {
	if len(c.StorePath) == 0 {
		return nil, nil
	}
	return store.Open(c.StorePath)
}

// Options are the builder options the configuration describes. The store may be nil.
func (c Config) Options(s *store.Store) []Option {
	options := []Option{
		WithClassification(c.Classification),
		WithMaxDocuments(c.MaxDocuments),
		WithCache(cache.NewQueryCache(c.CachePath, c.MaxDocuments)),
		WithTimeout(c.Timeout),
		WithSize(c.Size),
		WithSeed(c.Seed),
		WithSummaryPath(c.SummaryPath),
		WithProfilePath(c.ProfilePath),
	}
	if s != nil {
		options = append(options, WithStore(s))
	}
	return options
}
