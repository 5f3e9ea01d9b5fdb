package evaluation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext is what the steps need from the suite context.
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	s := &evaluationSteps{tc: tc}

	ctx.Step(`^a transaction from user "([^"]*)" for "([^"]*)" ([A-Z]{3}) at merchant "([^"]*)"$`, s.aTransaction)
	ctx.Step(`^it comes from IP "([^"]*)" using "([^"]*)"$`, s.fromIPUsing)
	ctx.Step(`^I submit it for evaluation$`, s.submit)
	ctx.Step(`^I submit it for evaluation (\d+) times$`, s.submitTimes)
	ctx.Step(`^the response status should be (\d+)$`, s.statusShouldBe)
	ctx.Step(`^the decision should be "([^"]*)"$`, s.decisionShouldBe)
	ctx.Step(`^the final risk score should be between ([\d.]+) and ([\d.]+)$`, s.scoreBetween)
	ctx.Step(`^the error code should be "([^"]*)"$`, s.errorCodeShouldBe)
	ctx.Step(`^the service reports breaker "([^"]*)"$`, s.readinessReportsBreaker)
}

type evaluationSteps struct {
	tc   TestContext
	body map[string]any
}

func (s *evaluationSteps) aTransaction(_ context.Context, user, amount, currency, merchant string) error {
	s.body = map[string]any{
		"userId":     user,
		"amount":     amount,
		"currency":   currency,
		"merchantId": merchant,
		"ipAddress":  "8.8.8.8",
		"deviceInfo": map[string]string{"browser": "chrome"},
	}
	return nil
}

func (s *evaluationSteps) fromIPUsing(_ context.Context, ip, browser string) error {
	s.body["ipAddress"] = ip
	s.body["deviceInfo"] = map[string]string{"browser": browser}
	return nil
}

func (s *evaluationSteps) submit(_ context.Context) error {
	return s.tc.POST("/v1/transactions/evaluate", s.body)
}

func (s *evaluationSteps) submitTimes(ctx context.Context, n int) error {
	for range n {
		if err := s.submit(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *evaluationSteps) statusShouldBe(_ context.Context, want int) error {
	if got := s.tc.GetLastResponseStatus(); got != want {
		return fmt.Errorf("expected status %d, got %d", want, got)
	}
	return nil
}

func (s *evaluationSteps) decisionShouldBe(_ context.Context, want string) error {
	got, err := s.tc.GetResponseField("decision")
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("expected decision %s, got %v", want, got)
	}
	return nil
}

func (s *evaluationSteps) scoreBetween(_ context.Context, loRaw, hiRaw string) error {
	got, err := s.tc.GetResponseField("finalRiskScore")
	if err != nil {
		return err
	}
	score, ok := got.(float64)
	if !ok {
		return fmt.Errorf("finalRiskScore is %T", got)
	}
	lo, err := strconv.ParseFloat(loRaw, 64)
	if err != nil {
		return err
	}
	hi, err := strconv.ParseFloat(hiRaw, 64)
	if err != nil {
		return err
	}
	if score < lo || score > hi {
		return fmt.Errorf("finalRiskScore %v not within [%v, %v]", score, lo, hi)
	}
	return nil
}

func (s *evaluationSteps) errorCodeShouldBe(_ context.Context, want string) error {
	got, err := s.tc.GetResponseField("error")
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("expected error %s, got %v", want, got)
	}
	return nil
}

func (s *evaluationSteps) readinessReportsBreaker(_ context.Context, name string) error {
	if err := s.tc.GET("/readyz"); err != nil {
		return err
	}
	got, err := s.tc.GetResponseField("breakers")
	if err != nil {
		return err
	}
	list, _ := got.([]any)
	for _, b := range list {
		if m, ok := b.(map[string]any); ok && m["name"] == name {
			return nil
		}
	}
	return fmt.Errorf("breaker %q not reported", name)
}
