package skein

import (
	"bytes"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsRegistry(t *testing.T) {
	Convey("Metrics registry", t, func() {
		r := NewMetricsRegistry()

		Convey("counters accumulate and reset", func() {
			r.EvaluationsRun.Inc()
			r.EvaluationsRun.Add(4)
			So(r.EvaluationsRun.Get(), ShouldEqual, 5)

			r.ResetAll()
			So(r.EvaluationsRun.Get(), ShouldEqual, 0)
		})

		Convey("gauges move both ways", func() {
			r.NodesScheduled.Set(10)
			r.NodesScheduled.Dec()
			So(r.NodesScheduled.Get(), ShouldEqual, 9)
		})

		Convey("the export is stable Prometheus text", func() {
			r.CyclesCompleted.Inc()

			var buf bytes.Buffer
			So(r.WriteTo(&buf), ShouldBeNil)
			out := buf.String()
			So(out, ShouldContainSubstring, "# TYPE skein_cycles_completed_total counter")
			So(out, ShouldContainSubstring, "skein_cycles_completed_total 1")

			var buf2 bytes.Buffer
			So(r.WriteTo(&buf2), ShouldBeNil)
			So(buf2.String(), ShouldEqual, out)
		})

		Convey("metrics are resolvable by name", func() {
			m, ok := r.Get("skein_events_dispatched_total")
			So(ok, ShouldBeTrue)
			So(m.Type(), ShouldEqual, MetricTypeCounter)
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Error taxonomy", t, func() {
		Convey("typed errors carry their category", func() {
			err := NewInputError("area %q does not exist", "header")
			So(GetErrorType(err), ShouldEqual, InputError)
			So(err.Error(), ShouldContainSubstring, "header")

			So(GetErrorType(NewInvariantError("boom")), ShouldEqual, InvariantError)
			So(IsSkeinError(err), ShouldBeTrue)
		})

		Convey("evaluation errors unwrap their cause", func() {
			cause := NewConfigurationError("bad profile")
			err := NewEvaluationError("jobs.port", "recompute failed", cause)
			So(err.Unwrap(), ShouldEqual, cause)
			So(err.Error(), ShouldContainSubstring, "jobs.port")
		})

		Convey("MultiError flattens nested multi-errors", func() {
			var m MultiError
			m.Append(NewInputError("first"))

			var inner MultiError
			inner.Append(NewInputError("second"))
			inner.Append(NewInputError("third"))
			m.Append(inner)

			So(m.Count(), ShouldEqual, 3)
			So(strings.Count(m.Error(), " - "), ShouldEqual, 3)
		})
	})
}

func TestResult(t *testing.T) {
	Convey("Result", t, func() {
		Convey("diagnostics mark failure", func() {
			So(NewResult(42).Failed(), ShouldBeFalse)
			So(NewErrorResult(NewInputError("nope")).Failed(), ShouldBeTrue)
		})

		Convey("equality compares value and diagnostic", func() {
			So(NewResult(1).Equal(NewResult(1)), ShouldBeTrue)
			So(NewResult(1).Equal(NewResult(2)), ShouldBeFalse)
			So(NewResult(1).Equal(NewErrorResult(NewInputError("x"))), ShouldBeFalse)
		})
	})
}
