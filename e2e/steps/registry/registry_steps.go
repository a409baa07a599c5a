package registry

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	PUT(path string, body any) error
	SetCaller(caller string)
	GetMintingAuthority() string
	GetLastStatusCode() int
	GetLastBody() string
	GetResponseField(field string) (any, error)
	Remember(name, value string)
}

// RegisterSteps registers registry fixture steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &registrySteps{tc: tc}

	ctx.Step(`^the minting authority has registered part "([^"]*)"$`, steps.registerPart)
	ctx.Step(`^I am the minting authority$`, steps.actAsMint)
	ctx.Step(`^"([^"]*)" has logged (\d+) events on the part$`, steps.logEvents)
	ctx.Step(`^"([^"]*)" restricts transfers of the part to "([^"]*)"$`, steps.restrictTransfers)
}

type registrySteps struct {
	tc TestContext
}

// registerPart mints a part and remembers its id as {asset}.
func (s *registrySteps) registerPart(ctx context.Context, serial string) error {
	s.tc.SetCaller(s.tc.GetMintingAuthority())
	err := s.tc.POST("/v1/assets", map[string]any{
		"serial":    serial,
		"auth_hash": "0x" + strings.Repeat("ab", 32),
		"model":     "E2E",
	})
	if err != nil {
		return err
	}
	if s.tc.GetLastStatusCode() != http.StatusCreated {
		return fmt.Errorf("register part: status %d: %s", s.tc.GetLastStatusCode(), s.tc.GetLastBody())
	}
	id, err := s.tc.GetResponseField("asset_id")
	if err != nil {
		return err
	}
	s.tc.Remember("asset", fmt.Sprintf("%v", id))
	return nil
}

func (s *registrySteps) actAsMint(ctx context.Context) error {
	s.tc.SetCaller(s.tc.GetMintingAuthority())
	return nil
}

func (s *registrySteps) logEvents(ctx context.Context, actor string, n int) error {
	s.tc.SetCaller(actor)
	for i := range n {
		if err := s.tc.POST("/v1/assets/{asset}/events", map[string]any{
			"action": fmt.Sprintf("step-%d", i+1),
		}); err != nil {
			return err
		}
		if s.tc.GetLastStatusCode() != http.StatusCreated {
			return fmt.Errorf("event %d: status %d: %s", i+1, s.tc.GetLastStatusCode(), s.tc.GetLastBody())
		}
	}
	return nil
}

func (s *registrySteps) restrictTransfers(ctx context.Context, owner, allowed string) error {
	s.tc.SetCaller(owner)
	if err := s.tc.PUT("/v1/assets/{asset}/transfer-policy", map[string]any{
		"restricted":          true,
		"allowed_transferees": strings.Split(allowed, ","),
	}); err != nil {
		return err
	}
	if s.tc.GetLastStatusCode() != http.StatusOK {
		return fmt.Errorf("set policy: status %d: %s", s.tc.GetLastStatusCode(), s.tc.GetLastBody())
	}
	return nil
}
