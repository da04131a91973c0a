package document

import (
	"testing"

	"github.com/geofffranks/simpleyaml"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/wayneeseguin/skein/internal/config"
	"github.com/wayneeseguin/skein/pkg/skein"
	"github.com/wayneeseguin/skein/pkg/skein/indexer"
)

func yamlDoc(s string) map[interface{}]interface{} {
	y, err := simpleyaml.NewYaml([]byte(s))
	So(err, ShouldBeNil)
	doc, err := y.Map()
	So(err, ShouldBeNil)
	return doc
}

func TestDocumentLoading(t *testing.T) {
	Convey("Document loading", t, func() {
		ix := indexer.NewIndexer(nil, nil, config.DefaultConfig(), nil)
		l := NewLoader(ix)

		doc := yamlDoc(`
jobs:
  name: web
  port: 8080
meta:
  env: production
`)
		root := l.Load(doc)
		ix.Flush()

		Convey("attribute paths receive data elements", func() {
			portID, err := l.PathID("jobs.port")
			So(err, ShouldBeNil)
			pn := ix.PathNode(portID)
			So(pn, ShouldNotBeNil)
			So(pn.NumNodes(), ShouldEqual, 1)
		})

		Convey("terminal values are typed keys", func() {
			portID, err := l.PathID("jobs.port")
			So(err, ShouldBeNil)

			q := &snapshotQuery{id: 1, pathID: portID}
			ix.AddQueryCalc(q)
			ix.RegisterQueryValue(q, 1, indexer.TypeNumber, indexer.ScalarLookup(indexer.TypeNumber, 8080))
			ix.Flush()
			So(len(q.counts), ShouldEqual, 1)
		})

		Convey("snapshots round-trip the document", func() {
			snap := Snapshot(ix, ix.Paths().RootID(), root)
			m, ok := snap.(map[string]interface{})
			So(ok, ShouldBeTrue)
			jobs, ok := m["jobs"].(map[string]interface{})
			So(ok, ShouldBeTrue)
			So(jobs["port"], ShouldEqual, 8080)
			So(jobs["name"], ShouldEqual, "web")
		})

		Convey("lists load as ordered sets of siblings", func() {
			l2 := NewLoader(ix)
			l2.Load(yamlDoc(`
ports:
- 80
- 443
`))
			ix.Flush()
			portsID, err := l2.PathID("ports")
			So(err, ShouldBeNil)
			pn := ix.PathNode(portsID)
			// one untyped set holder plus two members
			So(pn.NumNodes(), ShouldEqual, 3)
			So(pn.OperandCount(), ShouldEqual, 2)
		})
	})
}

// snapshotQuery is a minimal selection recording net match counts.
type snapshotQuery struct {
	id     skein.QueryID
	pathID skein.PathID
	counts map[skein.ElementID]int
}

func (q *snapshotQuery) GetID() skein.QueryID    { return q.id }
func (q *snapshotQuery) GetPathID() skein.PathID { return q.pathID }
func (q *snapshotQuery) IsSelection() bool       { return true }
func (q *snapshotQuery) NoPathNodeTracing() bool { return false }
func (q *snapshotQuery) DoNotIndex() bool        { return false }

func (q *snapshotQuery) SetMatchPoints([]skein.PathID)        {}
func (q *snapshotQuery) AddToMatchPoints(skein.PathID)        {}
func (q *snapshotQuery) RemoveFromMatchPoints(skein.PathID)   {}
func (q *snapshotQuery) AddMatches([]skein.ElementID)         {}
func (q *snapshotQuery) RemoveMatches([]skein.ElementID)      {}
func (q *snapshotQuery) RemoveAllIndexerMatches()             {}
func (q *snapshotQuery) GetDisjointValueIDs() []skein.ValueID { return nil }
func (q *snapshotQuery) UpdateKeys([]skein.ElementID, []string, []interface{}, []string, []interface{}) {
}

func (q *snapshotQuery) UpdateMatchCount(deltas map[skein.ElementID]int) {
	if q.counts == nil {
		q.counts = make(map[skein.ElementID]int)
	}
	for e, d := range deltas {
		q.counts[e] += d
		if q.counts[e] == 0 {
			delete(q.counts, e)
		}
	}
}
