package e2e

import (
	"github.com/cucumber/godog"

	"provenance/e2e/steps/common"
	"provenance/e2e/steps/registry"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Generic requests and assertions
	common.RegisterSteps(ctx, tc)

	// Registry fixtures
	registry.RegisterSteps(ctx, tc)
}
