package extraction

import "math"

// Minimal returns the binding minimum of the tracked windows.
func (q QuotaState) Minimal() float64 {
	minimal := math.Min(q.DailyLeft, q.ByMinuteLeft)
	if q.HourlyLeft != nil {
		minimal = math.Min(minimal, *q.HourlyLeft)
	}
	return minimal
}

// Evaluate decides whether a task of the given weight may run against q.
//
// A weight up to and including the binding minimum proceeds and is deducted
// from DailyLeft only. Otherwise, when the per-minute window is the binding
// one the task is deferred; any other binding window (daily or hourly)
// rejects it. The returned quota is unchanged unless the task proceeds.
func Evaluate(weight float64, q QuotaState) (Outcome, QuotaState) {
	minimal := q.Minimal()
	out := Outcome{Weight: weight, Minimal: minimal}

	switch {
	case weight <= minimal:
		out.Decision = Proceed
		out.Deducted = weight
		q.DailyLeft -= weight
	case minimal == q.ByMinuteLeft:
		out.Decision = DeferMinuteExhausted
	default:
		out.Decision = RejectDailyOrHourlyExhausted
	}
	return out, q
}

// NoTasks is the outcome for a service section with an empty task list.
func NoTasks() Outcome {
	return Outcome{Decision: RejectNoTasks}
}
