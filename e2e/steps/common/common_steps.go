package common

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Do(method, path string, body any) error
	SetCaller(caller string)
	GetLastStatusCode() int
	GetLastBody() string
	GetResponseField(field string) (any, error)
	Remember(name, value string)
}

// RegisterSteps registers generic request and assertion steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^I am "([^"]*)"$`, steps.actAs)
	ctx.Step(`^I am anonymous$`, steps.anonymous)
	ctx.Step(`^I send a (GET|POST|PUT) request to "([^"]*)"$`, steps.send)
	ctx.Step(`^I send a (POST|PUT) request to "([^"]*)" with body:$`, steps.sendWithBody)

	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the registry error code should be (\d+)$`, steps.registryCodeShouldBe)
	ctx.Step(`^I remember the response field "([^"]*)" as "([^"]*)"$`, steps.rememberField)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) actAs(ctx context.Context, caller string) error {
	s.tc.SetCaller(caller)
	return nil
}

func (s *commonSteps) anonymous(ctx context.Context) error {
	s.tc.SetCaller("")
	return nil
}

func (s *commonSteps) send(ctx context.Context, method, path string) error {
	return s.tc.Do(method, path, nil)
}

func (s *commonSteps) sendWithBody(ctx context.Context, method, path string, body *godog.DocString) error {
	return s.tc.Do(method, path, body.Content)
}

func (s *commonSteps) statusShouldBe(ctx context.Context, expected int) error {
	if got := s.tc.GetLastStatusCode(); got != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, got, s.tc.GetLastBody())
	}
	return nil
}

func (s *commonSteps) fieldShouldBe(ctx context.Context, field, expected string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprintf("%v", v); got != expected {
		return fmt.Errorf("expected %s=%q, got %q", field, expected, got)
	}
	return nil
}

func (s *commonSteps) registryCodeShouldBe(ctx context.Context, expected int) error {
	return s.fieldShouldBe(ctx, "code", strconv.Itoa(expected))
}

func (s *commonSteps) rememberField(ctx context.Context, field, name string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	s.tc.Remember(name, fmt.Sprintf("%v", v))
	return nil
}
