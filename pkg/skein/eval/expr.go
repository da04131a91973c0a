package eval

import (
	"github.com/Knetic/govaluate"

	"github.com/wayneeseguin/skein/log"
	"github.com/wayneeseguin/skein/pkg/skein"
)

// ExprNode is an evaluation node whose output is a govaluate expression
// over named inputs. Each input is bound to the watcher id of the
// evaluator producing it; the node recomputes when any input changes.
type ExprNode struct {
	BaseNode

	src  string
	expr *govaluate.EvaluableExpression

	inputNames map[skein.WatcherID]string
	inputs     map[string]*skein.Result

	result      *skein.Result
	subscribers map[skein.WatcherID]skein.Watcher
}

// NewExprNode compiles the expression and registers the node with the
// queue at the given scheduling class.
func NewExprNode(q *Queue, priority, step int, expression string) (*ExprNode, error) {
	expr, err := govaluate.NewEvaluableExpression(expression)
	if err != nil {
		return nil, skein.NewEvaluationError("", "unable to parse expression '"+expression+"'", err)
	}
	en := &ExprNode{
		src:         expression,
		expr:        expr,
		inputNames:  make(map[skein.WatcherID]string),
		inputs:      make(map[string]*skein.Result),
		subscribers: make(map[skein.WatcherID]skein.Watcher),
	}
	en.Init(q, en, priority, step)
	return en, nil
}

// BindInput associates an input name with the watcher id whose results
// will fill it.
func (en *ExprNode) BindInput(name string, id skein.WatcherID) {
	en.inputNames[id] = name
}

// SetInput sets a named input directly and schedules a recomputation.
func (en *ExprNode) SetInput(name string, result *skein.Result) {
	en.inputs[name] = result
	if en.IsActive() {
		en.Schedule()
	}
}

// UpdateInput receives a result from a watched evaluator, stores it
// under its bound name and re-schedules the node.
func (en *ExprNode) UpdateInput(id skein.WatcherID, result *skein.Result) {
	name, ok := en.inputNames[id]
	if !ok {
		log.TRACE("expr node %d: update from unbound watcher %d dropped", en.WatcherID(), id)
		return
	}
	en.inputs[name] = result
	if en.IsActive() {
		en.Schedule()
	}
}

// UpdateOutput recomputes the expression. Failures never escape: they
// are carried in the result's diagnostic field.
func (en *ExprNode) UpdateOutput() {
	params := make(map[string]interface{}, len(en.inputs))
	for name, r := range en.inputs {
		if r == nil {
			continue
		}
		if r.Failed() {
			en.publish(skein.NewErrorResult(r.Diagnostic))
			return
		}
		params[name] = r.Value
	}

	value, err := en.expr.Evaluate(params)
	if err != nil {
		log.DEBUG("expr node %d: '%s' failed: %s", en.WatcherID(), en.src, err)
		en.publish(skein.NewErrorResult(skein.NewEvaluationError(en.src, "expression evaluation failed", err)))
		return
	}
	en.publish(skein.NewResult(value))
}

func (en *ExprNode) publish(result *skein.Result) {
	if result.Equal(en.result) {
		return
	}
	en.result = result
	for _, w := range en.subscribers {
		w.UpdateInput(en.WatcherID(), result)
	}
}

// Result returns the last published result.
func (en *ExprNode) Result() *skein.Result {
	return en.result
}

// Subscribe registers a watcher for result changes.
func (en *ExprNode) Subscribe(w skein.Watcher) {
	en.subscribers[w.WatcherID()] = w
}

// Unsubscribe removes a watcher.
func (en *ExprNode) Unsubscribe(w skein.Watcher) {
	delete(en.subscribers, w.WatcherID())
}
