package summary

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/pkg/errors"
)

const (
	// Namespace of the content summary document.
	Namespace = "http://sdarts.cs.columbia.edu/content-summary"
	// BodyField is the only field summaries are computed over.
	BodyField = "body-of-text"
)

// TermStatistics are the projected statistics of a term written to a content summary.
type TermStatistics struct {
	Term              string
	TermFrequency     int64
	DocumentFrequency int64
}

// Statistics projects the document frequency and term frequency of every sampled term onto the collection. Terms
// are ordered by decreasing document frequency, then alphabetically.
func (c *ContentSummary) Statistics() []TermStatistics {
	size := c.estimatedSize
	if size <= 0 {
		size = float64(c.sampleSize)
	}
	stats := make([]TermStatistics, 0, len(c.terms))
	for term, t := range c.terms {
		if t.SampleFrequency <= 0 {
			continue
		}
		df := math.Round(c.RealFrequency(t.SampleFrequency))
		if df > size {
			df = math.Round(size)
		}
		tf := math.Round(float64(t.TermFrequency) * df / float64(t.SampleFrequency))
		stats = append(stats, TermStatistics{
			Term:              term,
			TermFrequency:     int64(tf),
			DocumentFrequency: int64(df),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].DocumentFrequency == stats[j].DocumentFrequency {
			return stats[i].Term < stats[j].Term
		}
		return stats[i].DocumentFrequency > stats[j].DocumentFrequency
	})
	return stats
}

func escape(s string) (string, error) {
	var b bytes.Buffer
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return "", err
	}
	return b.String(), nil
}

// WriteTo extrapolates the summary to the estimated collection size and writes it as XML.
func (c *ContentSummary) WriteTo(w io.Writer, estimatedSize float64) error {
	c.Extrapolate(estimatedSize)

	bw := bufio.NewWriter(w)
	fmt.Fprint(bw, xml.Header)
	fmt.Fprintf(bw, `<content-summary xmlns="%s" stemming="false" stopwords="false" case-sensitive="true" fields="false" numdocs="%d" sample_size="%d">`+"\n",
		Namespace, int64(math.Round(c.estimatedSize)), c.sampleSize)
	fmt.Fprintf(bw, `  <field-freq field="%s">`+"\n", BodyField)
	for _, s := range c.Statistics() {
		term, err := escape(s.Term)
		if err != nil {
			return err
		}
		fmt.Fprintf(bw, "    <term><value>%s</value><term-freq>%d</term-freq><doc-freq>%d</doc-freq></term>\n",
			term, s.TermFrequency, s.DocumentFrequency)
	}
	fmt.Fprintln(bw, "  </field-freq>")
	fmt.Fprintln(bw, "</content-summary>")
	return bw.Flush()
}

// Write writes the content summary to a file.
func (c *ContentSummary) Write(path string, estimatedSize float64) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0664)
	if err != nil {
		return errors.Wrapf(err, "could not create content summary %s", path)
	}
	if err := c.WriteTo(f, estimatedSize); err != nil {
		f.Close()
		return errors.Wrapf(err, "could not write content summary %s", path)
	}
	return f.Close()
}
