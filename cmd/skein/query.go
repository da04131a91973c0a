package main

import (
	"sort"
	"strconv"
	"strings"

	"github.com/starkandwayne/goutils/ansi"
	yamlv2 "gopkg.in/yaml.v2"

	itree "github.com/wayneeseguin/skein/internal/utils/tree"
	"github.com/wayneeseguin/skein/pkg/skein"
	"github.com/wayneeseguin/skein/pkg/skein/document"
	"github.com/wayneeseguin/skein/pkg/skein/indexer"
)

// cliQuery is the minimal selection the CLI registers to drive the
// sub-index machinery.
type cliQuery struct {
	id     skein.QueryID
	pathID skein.PathID
	counts map[skein.ElementID]int
}

func newCLIQuery(id skein.QueryID, pathID skein.PathID) *cliQuery {
	return &cliQuery{id: id, pathID: pathID, counts: make(map[skein.ElementID]int)}
}

func (q *cliQuery) GetID() skein.QueryID    { return q.id }
func (q *cliQuery) GetPathID() skein.PathID { return q.pathID }
func (q *cliQuery) IsSelection() bool       { return true }
func (q *cliQuery) NoPathNodeTracing() bool { return false }
func (q *cliQuery) DoNotIndex() bool        { return false }

func (q *cliQuery) SetMatchPoints([]skein.PathID)        {}
func (q *cliQuery) AddToMatchPoints(skein.PathID)        {}
func (q *cliQuery) RemoveFromMatchPoints(skein.PathID)   {}
func (q *cliQuery) AddMatches([]skein.ElementID)         {}
func (q *cliQuery) RemoveMatches([]skein.ElementID)      {}
func (q *cliQuery) RemoveAllIndexerMatches()             {}
func (q *cliQuery) GetDisjointValueIDs() []skein.ValueID { return nil }
func (q *cliQuery) UpdateKeys([]skein.ElementID, []string, []interface{}, []string, []interface{}) {
}

func (q *cliQuery) UpdateMatchCount(deltas map[skein.ElementID]int) {
	for e, d := range deltas {
		q.counts[e] += d
		if q.counts[e] == 0 {
			delete(q.counts, e)
		}
	}
}

// typedValue guesses the value type of a command line literal.
func typedValue(s string) (string, interface{}) {
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return indexer.TypeNumber, n
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return indexer.TypeBool, b
	}
	return indexer.TypeString, s
}

type loadStats struct {
	Files        int `yaml:"files"`
	DataElements int `yaml:"data_elements"`
	Roots        int `yaml:"roots"`
}

func cmdLoad(options loadOpts) (string, error) {
	_, loader, _, err := loadDocuments(options.Files, options.OpsFile)
	if err != nil {
		return "", err
	}
	files := len(options.Files)
	if files == 0 {
		files = 1
	}
	stats := loadStats{
		Files:        files,
		DataElements: loaderElements(loader),
		Roots:        len(loader.Roots),
	}
	out, err := yamlv2.Marshal(stats)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func loaderElements(loader *document.Loader) int {
	// The loader's indexer is reachable through any registered root.
	return loader.Elements()
}

func cmdQuery(options queryOpts) ([]interface{}, error) {
	if options.At == "" {
		return nil, ansi.Errorf("@R{query requires} @m{--at} @R{to name an attribute path}")
	}
	if options.Where == "" && options.Min == "" && options.Max == "" {
		return nil, ansi.Errorf("@R{query requires} @m{--where} @R{or} @m{--min}@R{/}@m{--max}")
	}

	r, loader, docs, err := loadDocuments(options.Files, options.OpsFile)
	if err != nil {
		return nil, err
	}
	ix := r.Indexers()[0]

	paths, err := expandPaths(options.At, docs)
	if err != nil {
		return nil, err
	}

	var typ string
	var lookup indexer.Lookup
	if options.Where != "" {
		var val interface{}
		typ, val = typedValue(options.Where)
		lookup = indexer.ScalarLookup(typ, val)
	} else {
		var minVal, maxVal interface{}
		typ, minVal = typedValue(options.Min)
		maxTyp, mv := typedValue(options.Max)
		maxVal = mv
		if typ != maxTyp {
			return nil, ansi.Errorf("@R{range bounds} @m{%s}@R{..}@m{%s} @R{have mixed types}", options.Min, options.Max)
		}
		lookup = indexer.RangeLookup(typ, minVal, maxVal, false, false)
	}

	var results []interface{}
	for i, at := range paths {
		pathID, err := loader.PathID(at)
		if err != nil {
			return nil, err
		}

		q := newCLIQuery(skein.QueryID(i+1), pathID)
		ix.AddQueryCalc(q)
		ix.RegisterQueryValue(q, skein.ValueID(i+1), typ, lookup)
		ix.Flush()

		var matched []skein.ElementID
		for e, c := range q.counts {
			if c > 0 {
				matched = append(matched, e)
			}
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i] < matched[j] })

		for _, e := range matched {
			results = append(results, document.Snapshot(ix, pathID, e))
		}
	}
	if results == nil {
		results = []interface{}{}
	}
	return results, nil
}

// expandPaths resolves a possibly-globbed attribute path against the
// loaded documents into concrete cursor paths.
func expandPaths(at string, docs []interface{}) ([]string, error) {
	if !strings.Contains(at, "*") {
		return []string{at}, nil
	}
	c, err := itree.ParseCursor(at)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var paths []string
	for _, doc := range docs {
		cursors, err := c.Glob(doc)
		if err != nil {
			if _, notFound := err.(itree.NotFoundError); notFound {
				continue
			}
			return nil, err
		}
		for _, match := range cursors {
			s := match.String()
			if !seen[s] {
				seen[s] = true
				paths = append(paths, s)
			}
		}
	}
	if len(paths) == 0 {
		return nil, ansi.Errorf("@R{no paths match} @m{%s}", at)
	}
	return paths, nil
}

func cmdSnapshot(options snapshotOpts) (string, error) {
	if options.At == "" {
		return "", ansi.Errorf("@R{snapshot requires} @m{--at} @R{to name an attribute path}")
	}
	r, loader, _, err := loadDocuments(options.Files, "")
	if err != nil {
		return "", err
	}
	ix := r.Indexers()[0]

	pathID, err := loader.PathID(options.At)
	if err != nil {
		return "", err
	}
	pn := ix.PathNode(pathID)
	if pn == nil || pn.NumNodes() == 0 {
		return "", ansi.Errorf("@R{no nodes at path} @m{%s}", options.At)
	}

	monitor := &nullMonitor{id: 1}
	ix.AddSubTreeMonitor(pathID, monitor)

	out := []interface{}{}
	for _, e := range pn.ElementIDs() {
		if err := ix.RequestSubTreeRetrieval(pathID, e, monitor, options.Compress); err != nil {
			return "", err
		}
		ix.Flush()

		entry := map[string]interface{}{
			"value": document.Snapshot(ix, pathID, e),
		}
		if options.Compress {
			if st := ix.SubTreeOf(pathID, e); st != nil {
				entry["compression"] = st.QuickCompression()
				if st.NeedsFullCompression() {
					entry["full_compression"] = st.FullCompression()
				}
			}
		}
		out = append(out, entry)
	}

	data, err := yamlv2.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// nullMonitor satisfies the monitor contract for one-shot snapshots.
type nullMonitor struct {
	id int
}

func (m *nullMonitor) MonitorID() int { return m.id }
func (m *nullMonitor) SubTreeUpdate(pathID skein.PathID, elementIDs []skein.ElementID, monitorID int) {
}
func (m *nullMonitor) UpdateSimpleElement(pathID skein.PathID, elementID skein.ElementID, terminalType string, key interface{}, simpleCompression int) {
}
func (m *nullMonitor) RemoveSimpleElement(pathID skein.PathID, elementID skein.ElementID) {}
func (m *nullMonitor) CompleteUpdate(rootElementID skein.ElementID)                       {}
