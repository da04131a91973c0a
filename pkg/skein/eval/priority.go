package eval

// SinglePriorityQueue holds the step-ordered evaluator lists of one
// scheduling priority, plus a parallel deferred queue of identical
// shape. low/high bracket the steps with scheduled work; low > high
// means the priority is empty.
type SinglePriorityQueue struct {
	prio int

	steps    []*EvaluatorList
	low      int
	high     int
	schedCnt int

	deferredSteps []*EvaluatorList
	deferredCnt   int

	interrupted bool

	// drainStep is the step currently being drained, or -1. Used to
	// detect low-watermark rewinds caused by in-flight evaluations.
	drainStep int
}

func newSinglePriorityQueue(prio int) *SinglePriorityQueue {
	return &SinglePriorityQueue{
		prio:      prio,
		low:       0,
		high:      -1,
		drainStep: -1,
	}
}

func (s *SinglePriorityQueue) stepList(steps []*EvaluatorList, step int) ([]*EvaluatorList, *EvaluatorList) {
	for len(steps) <= step {
		steps = append(steps, &EvaluatorList{})
	}
	return steps, steps[step]
}

// schedule queues the node at its step and returns whether the low
// watermark was rewound below the step currently being drained.
func (s *SinglePriorityQueue) schedule(en Node) (rewound bool) {
	step := en.GetScheduleStep()

	var lst *EvaluatorList
	s.steps, lst = s.stepList(s.steps, step)
	en.SetScheduledAtPosition(lst.Schedule(en))
	s.schedCnt++

	if s.schedCnt == 1 || step > s.high {
		s.high = step
	}
	if s.schedCnt == 1 {
		s.low = step
	} else if step < s.low {
		s.low = step
		rewound = s.drainStep != -1 && step < s.drainStep
	}
	return rewound
}

func (s *SinglePriorityQueue) unschedule(en Node) {
	step := en.GetScheduleStep()
	if step < len(s.steps) {
		s.steps[step].Unschedule(en.ScheduledAtPosition())
	}
	en.SetScheduledAtPosition(-1)
	s.schedCnt--
}

func (s *SinglePriorityQueue) scheduleDeferred(en Node) {
	var lst *EvaluatorList
	s.deferredSteps, lst = s.stepList(s.deferredSteps, en.GetScheduleStep())
	en.SetScheduledAtPosition(lst.Schedule(en))
	s.deferredCnt++
}

func (s *SinglePriorityQueue) unscheduleDeferred(en Node) {
	step := en.GetScheduleStep()
	if step < len(s.deferredSteps) {
		s.deferredSteps[step].Unschedule(en.ScheduledAtPosition())
	}
	en.SetScheduledAtPosition(-1)
	s.deferredCnt--
}

// empty reports whether no active work is scheduled at this priority.
func (s *SinglePriorityQueue) empty() bool {
	return s.schedCnt <= 0
}
