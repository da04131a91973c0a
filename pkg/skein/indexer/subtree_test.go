package indexer

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/wayneeseguin/skein/pkg/skein"
)

func TestSubTreeRegistration(t *testing.T) {
	Convey("Sub-tree monitor registration mid-cycle", t, func() {
		ix := testIndexer()
		jobsID := ix.Paths().Allocate([]string{"jobs"})
		portID := ix.Paths().Allocate([]string{"jobs", "port"})
		nameID := ix.Paths().Allocate([]string{"jobs", "name"})

		root := ix.AddDataElementNode(jobsID, skein.NoElement)
		ix.SetKeyValue(jobsID, root, TypeAttribute, true, false)

		port := ix.AddDataElementNode(portID, root)
		ix.SetKeyValue(portID, port, TypeNumber, 8080, false)
		name := ix.AddDataElementNode(nameID, root)
		ix.SetKeyValue(nameID, name, TypeString, "web", false)
		ix.Flush()

		monitor := newMockMonitor(1)
		ix.AddSubTreeMonitor(jobsID, monitor)
		So(ix.RequestSubTreeRetrieval(jobsID, root, monitor, true), ShouldBeNil)
		ix.Flush()

		Convey("completeUpdate fires exactly once with the initial set", func() {
			So(monitor.completes, ShouldResemble, []skein.ElementID{root})
			So(len(monitor.updates), ShouldEqual, 1)
			So(monitor.simple, ShouldContainKey, "2.2")
			So(monitor.simple, ShouldContainKey, "3.3")
		})

		Convey("terminal changes stream incrementally", func() {
			ix.SetKeyValue(portID, port, TypeNumber, 9090, false)
			ix.Flush()
			So(monitor.simple["2.2"], ShouldEqual, 9090)
			So(len(monitor.completes), ShouldEqual, 2)
			So(len(monitor.updates), ShouldEqual, 2)
		})

		Convey("a removed terminal is removed from the monitor", func() {
			ix.RemoveNode(portID, port)
			ix.Flush()
			So(monitor.removedSimple, ShouldContain, "2.2")
		})

		Convey("a new covered node joins the sub-tree", func() {
			extra := ix.AddDataElementNode(portID, root)
			ix.SetKeyValue(portID, extra, TypeNumber, 1234, false)
			ix.Flush()
			So(monitor.simple["2.4"], ShouldEqual, 1234)
		})

		Convey("nonAttrs excludes an attribute from coverage", func() {
			ix.SetKeyValue(jobsID, root, TypeNonAttribute, "port", false)
			ix.Flush()
			So(monitor.removedSimple, ShouldContain, "2.2")

			ix.SetKeyValue(jobsID, -root, TypeNonAttribute, "port", false)
			ix.Flush()
			So(monitor.simple, ShouldContainKey, "2.2")
		})

		Convey("turning hasAttrs off detaches the coverage", func() {
			ix.SetKeyValue(jobsID, root, TypeAttribute, false, false)
			ix.Flush()
			So(monitor.removedSimple, ShouldContain, "2.2")
			So(monitor.removedSimple, ShouldContain, "3.3")
		})

		Convey("an attribute child is covered through hasAttrs", func() {
			portPN := ix.PathNode(portID)
			entry := portPN.Entry(port)
			So(entry.subTreeRoots[jobsID], ShouldEqual, root)
		})

		Convey("release tears the sub-tree down", func() {
			ix.ReleaseSubTreeRetrieval(jobsID, root, monitor.MonitorID())
			So(ix.SubTreeOf(jobsID, root), ShouldBeNil)
			entry := ix.PathNode(portID).Entry(port)
			So(entry.subTreeRootCount, ShouldEqual, 0)
		})
	})
}

func TestSubTreeCompression(t *testing.T) {
	Convey("Sub-tree compression", t, func() {
		ix := testIndexer()
		rootID := ix.Paths().Allocate([]string{"doc"})
		leafID := ix.Paths().Allocate([]string{"doc", "v"})

		buildTree := func(values ...interface{}) *SubTree {
			root := ix.AddDataElementNode(rootID, skein.NoElement)
			ix.SetKeyValue(rootID, root, TypeAttribute, true, false)
			for _, v := range values {
				leaf := ix.AddDataElementNode(leafID, root)
				if s, ok := v.(string); ok {
					ix.SetKeyValue(leafID, leaf, TypeString, s, false)
				} else {
					ix.SetKeyValue(leafID, leaf, TypeNumber, v, false)
				}
			}
			monitor := newMockMonitor(100 + ix.DataElements().Size())
			ix.AddSubTreeMonitor(rootID, monitor)
			So(ix.RequestSubTreeRetrieval(rootID, root, monitor, false), ShouldBeNil)
			ix.Flush()
			return ix.SubTreeOf(rootID, root)
		}

		Convey("equal terminal sets compress equally regardless of order", func() {
			st1 := buildTree(1, 2, 3)
			st2 := buildTree(3, 1, 2)
			So(st1.QuickCompression(), ShouldEqual, st2.QuickCompression())
			So(st1.NeedsFullCompression(), ShouldBeFalse)
		})

		Convey("different terminal sets compress differently", func() {
			st1 := buildTree(1, 2)
			st2 := buildTree(1, 5)
			So(st1.QuickCompression(), ShouldNotEqual, st2.QuickCompression())
		})

		Convey("string terminals demand full compression", func() {
			st := buildTree("a", "b")
			So(st.NeedsFullCompression(), ShouldBeTrue)
			So(st.FullCompression(), ShouldNotEqual, 0)
		})
	})
}

func TestSubTreeOnlyAsRootHooks(t *testing.T) {
	Convey("Only-as-root transitions", t, func() {
		ix := testIndexer()
		jobsID := ix.Paths().Allocate([]string{"jobs"})
		subID := ix.Paths().Allocate([]string{"jobs", "sub"})

		var events []string
		ix.OnSubTreeOnlyAsRootActivated = func(pathID skein.PathID, elem skein.ElementID) {
			events = append(events, "activated")
		}
		ix.OnSubTreeOnlyAsRootDeactivated = func(pathID skein.PathID, elem skein.ElementID) {
			events = append(events, "deactivated")
		}

		outer := ix.AddDataElementNode(jobsID, skein.NoElement)
		ix.SetKeyValue(jobsID, outer, TypeAttribute, true, false)
		inner := ix.AddDataElementNode(subID, outer)
		ix.SetKeyValue(subID, inner, TypeAttribute, true, false)

		m1 := newMockMonitor(1)
		ix.AddSubTreeMonitor(subID, m1)
		So(ix.RequestSubTreeRetrieval(subID, inner, m1, false), ShouldBeNil)
		ix.Flush()

		Convey("becoming shared with a covering root fires the hook", func() {
			m2 := newMockMonitor(2)
			ix.AddSubTreeMonitor(jobsID, m2)
			So(ix.RequestSubTreeRetrieval(jobsID, outer, m2, false), ShouldBeNil)
			So(events, ShouldContain, "deactivated")

			Convey("and dropping the covering root fires the reverse", func() {
				ix.ReleaseSubTreeRetrieval(jobsID, outer, m2.MonitorID())
				So(events, ShouldContain, "activated")
			})
		})
	})
}
