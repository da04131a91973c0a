package indexer

import (
	"fmt"

	"github.com/wayneeseguin/skein/pkg/skein"
)

// mockQuery records every delivery from the indexer.
type mockQuery struct {
	id         skein.QueryID
	pathID     skein.PathID
	selection  bool
	noTracing  bool
	doNotIndex bool

	matchCounts map[skein.ElementID]int
	countCalls  int

	added   []skein.ElementID
	removed []skein.ElementID

	matchPoints map[skein.PathID]bool

	keyUpdates []string

	removedAll bool
	valueIDs   []skein.ValueID

	callLog *[]string
}

func newMockQuery(id skein.QueryID, pathID skein.PathID, selection bool) *mockQuery {
	return &mockQuery{
		id:          id,
		pathID:      pathID,
		selection:   selection,
		matchCounts: make(map[skein.ElementID]int),
		matchPoints: make(map[skein.PathID]bool),
	}
}

func (m *mockQuery) GetID() skein.QueryID      { return m.id }
func (m *mockQuery) GetPathID() skein.PathID   { return m.pathID }
func (m *mockQuery) IsSelection() bool         { return m.selection }
func (m *mockQuery) NoPathNodeTracing() bool   { return m.noTracing }
func (m *mockQuery) DoNotIndex() bool          { return m.doNotIndex }

func (m *mockQuery) SetMatchPoints(pathIDs []skein.PathID) {
	m.matchPoints = make(map[skein.PathID]bool)
	for _, p := range pathIDs {
		m.matchPoints[p] = true
	}
}

func (m *mockQuery) AddToMatchPoints(pathID skein.PathID) {
	m.matchPoints[pathID] = true
}

func (m *mockQuery) RemoveFromMatchPoints(pathID skein.PathID) {
	delete(m.matchPoints, pathID)
}

func (m *mockQuery) UpdateMatchCount(deltas map[skein.ElementID]int) {
	m.countCalls++
	for e, d := range deltas {
		m.matchCounts[e] += d
		if m.matchCounts[e] == 0 {
			delete(m.matchCounts, e)
		}
	}
	if m.callLog != nil {
		*m.callLog = append(*m.callLog, "updateMatchCount")
	}
}

func (m *mockQuery) AddMatches(ids []skein.ElementID) {
	m.added = append(m.added, ids...)
	if m.callLog != nil {
		*m.callLog = append(*m.callLog, "addMatches")
	}
}

func (m *mockQuery) RemoveMatches(ids []skein.ElementID) {
	m.removed = append(m.removed, ids...)
	if m.callLog != nil {
		*m.callLog = append(*m.callLog, "removeMatches")
	}
}

func (m *mockQuery) RemoveAllIndexerMatches() {
	m.removedAll = true
}

func (m *mockQuery) UpdateKeys(ids []skein.ElementID, types []string, keys []interface{}, prevTypes []string, prevKeys []interface{}) {
	for i := range ids {
		m.keyUpdates = append(m.keyUpdates, fmt.Sprintf("%d:%s=%v<-%s=%v", ids[i], types[i], keys[i], prevTypes[i], prevKeys[i]))
	}
	if m.callLog != nil {
		*m.callLog = append(*m.callLog, "updateKeys")
	}
}

func (m *mockQuery) GetDisjointValueIDs() []skein.ValueID {
	return m.valueIDs
}

// mockMonitor records sub-tree notifications.
type mockMonitor struct {
	id int

	simple        map[string]interface{}
	removedSimple []string
	completes     []skein.ElementID
	updates       []string
}

func newMockMonitor(id int) *mockMonitor {
	return &mockMonitor{
		id:     id,
		simple: make(map[string]interface{}),
	}
}

func (m *mockMonitor) MonitorID() int { return m.id }

func (m *mockMonitor) SubTreeUpdate(pathID skein.PathID, elementIDs []skein.ElementID, monitorID int) {
	m.updates = append(m.updates, fmt.Sprintf("path=%d roots=%v monitor=%d", pathID, elementIDs, monitorID))
}

func (m *mockMonitor) UpdateSimpleElement(pathID skein.PathID, elementID skein.ElementID, terminalType string, key interface{}, simpleCompression int) {
	m.simple[fmt.Sprintf("%d.%d", pathID, elementID)] = key
}

func (m *mockMonitor) RemoveSimpleElement(pathID skein.PathID, elementID skein.ElementID) {
	m.removedSimple = append(m.removedSimple, fmt.Sprintf("%d.%d", pathID, elementID))
	delete(m.simple, fmt.Sprintf("%d.%d", pathID, elementID))
}

func (m *mockMonitor) CompleteUpdate(rootElementID skein.ElementID) {
	m.completes = append(m.completes, rootElementID)
}

// mockPathListener records path activation transitions.
type mockPathListener struct {
	activated   map[skein.PathID]int
	deactivated map[skein.PathID]int
}

func newMockPathListener() *mockPathListener {
	return &mockPathListener{
		activated:   make(map[skein.PathID]int),
		deactivated: make(map[skein.PathID]int),
	}
}

func (m *mockPathListener) PathActivated(pathID skein.PathID) {
	m.activated[pathID]++
}

func (m *mockPathListener) PathDeactivated(pathID skein.PathID) {
	m.deactivated[pathID]++
}
