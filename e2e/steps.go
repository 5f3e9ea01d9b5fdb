package e2e

import (
	"github.com/cucumber/godog"

	"payguard/e2e/steps/evaluation"
)

// RegisterSteps registers all step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	evaluation.RegisterSteps(ctx, tc)
}
