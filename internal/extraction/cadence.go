package extraction

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
)

// CadenceMode selects how often activations are triggered.
type CadenceMode string

const (
	CadenceDefault  CadenceMode = "default"
	CadenceFrequent CadenceMode = "frequent"
)

var cadenceExpressions = map[CadenceMode]string{
	CadenceDefault:  "cron(5 0 * * ? *)",
	CadenceFrequent: "cron(0,30 * * * ? *)",
}

// ParseCadenceMode converts s into a CadenceMode, rejecting unknown values.
func ParseCadenceMode(s string) (CadenceMode, error) {
	mode := CadenceMode(s)
	if _, err := mode.Expression(); err != nil {
		return "", err
	}
	return mode, nil
}

// Expression returns the schedule expression for the mode.
func (m CadenceMode) Expression() (string, error) {
	expr, ok := cadenceExpressions[m]
	if !ok {
		return "", newError(KindUnknownCadence, nil, "%q is not one of default, frequent", string(m))
	}
	return expr, nil
}

// CadenceFor maps a governor decision to the cadence the scheduler should
// run at. ok is false when the decision does not call for a change.
func CadenceFor(d Decision) (mode CadenceMode, ok bool) {
	switch d {
	case Proceed:
		return CadenceFrequent, true
	case RejectNoTasks, RejectDailyOrHourlyExhausted:
		return CadenceDefault, true
	default:
		return "", false
	}
}

// CadenceResult is returned by SetCadence. On failure Message and ErrorType
// describe what the scheduler reported.
type CadenceResult struct {
	Status             int         `json:"status"`
	Mode               CadenceMode `json:"mode"`
	ScheduleExpression string      `json:"schedule_expression"`
	ProviderResult     RuleResult  `json:"provider_result"`
	Message            string      `json:"message,omitempty"`
	ErrorType          string      `json:"error_type,omitempty"`
}

// CadenceController requests cadence changes for one scheduling rule.
type CadenceController struct {
	rules    RuleScheduler
	reporter *FailureReporter
	ruleName string
	topic    string

	mu      sync.RWMutex
	current CadenceMode
}

// NewCadenceController creates a controller for ruleName. Scheduler
// failures are reported to topic.
func NewCadenceController(rules RuleScheduler, reporter *FailureReporter, ruleName, topic string) *CadenceController {
	return &CadenceController{
		rules:    rules,
		reporter: reporter,
		ruleName: ruleName,
		topic:    topic,
	}
}

// RuleName returns the scheduling rule the controller manages.
func (c *CadenceController) RuleName() string {
	return c.ruleName
}

// Current returns the last successfully applied mode, or "" if none.
func (c *CadenceController) Current() CadenceMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// SetCadence asks the scheduler to run the rule at mode's expression. The
// scheduler's status code is surfaced verbatim; a non-success status is
// reported and returned as an ErrProvider error alongside the result.
func (c *CadenceController) SetCadence(ctx context.Context, mode CadenceMode) (CadenceResult, error) {
	expr, err := mode.Expression()
	if err != nil {
		return CadenceResult{}, err
	}

	res := CadenceResult{Mode: mode, ScheduleExpression: expr}

	ruleRes, err := c.rules.PutRule(ctx, c.ruleName, expr, RuleEnabled)
	if err != nil {
		if ruleRes.StatusCode == 0 {
			ruleRes.StatusCode = http.StatusInternalServerError
		}
		if ruleRes.Message == "" {
			ruleRes.Message = err.Error()
		}
	}
	res.ProviderResult = ruleRes
	res.Status = ruleRes.StatusCode

	if res.Status >= 200 && res.Status < 300 {
		c.mu.Lock()
		c.current = mode
		c.mu.Unlock()
		log.Printf("INFO: cadence for rule %s set to %s (%s)", c.ruleName, mode, expr)
		return res, nil
	}

	res.Message = ruleRes.Message
	res.ErrorType = string(KindProvider)
	failure := &Error{
		Kind:   KindProvider,
		Detail: fmt.Sprintf("scheduler returned %d for rule %s: %s", res.Status, c.ruleName, res.Message),
		Err:    err,
	}

	if _, repErr := c.reporter.Report(ctx, c.topic, failure.Error()); repErr != nil {
		return res, errors.Join(failure, repErr)
	}
	return res, failure
}
