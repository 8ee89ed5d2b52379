package arcade_test

import (
	"fmt"
	"testing"

	arcade "github.com/goliatone/go-arcade"
)

func TestExtensionHooksRegistrationRules(t *testing.T) {
	hooks := arcade.NewExtensionHooks()

	if err := hooks.RegisterCommandBundle("", func(*arcade.App) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected empty bundle name to be rejected")
	}
	if err := hooks.RegisterCommandBundle("billing", nil); err == nil {
		t.Fatalf("expected nil factory to be rejected")
	}
	if err := hooks.RegisterCommandBundle("billing", func(*arcade.App) (any, error) { return "b", nil }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := hooks.RegisterCommandBundle("billing", func(*arcade.App) (any, error) { return "b2", nil }); err == nil {
		t.Fatalf("expected duplicate name to be rejected")
	}
}

func TestExtensionHooksBuildIsDeterministic(t *testing.T) {
	hooks := arcade.NewExtensionHooks()
	var built []string
	for _, name := range []string{"zeta", "alpha", "mid"} {
		name := name
		if err := hooks.RegisterCommandBundle(name, func(app *arcade.App) (any, error) {
			if app == nil {
				return nil, fmt.Errorf("nil app")
			}
			built = append(built, name)
			return name, nil
		}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	if got := hooks.BundleNames(); len(got) != 3 || got[0] != "alpha" || got[2] != "zeta" {
		t.Fatalf("expected sorted bundle names, got %v", got)
	}

	app, err := arcade.New(testAppConfig(), arcade.WithExtensionHooks(hooks))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	bundles, err := app.Hooks().BuildCommandBundles(app)
	if err != nil {
		t.Fatalf("build bundles: %v", err)
	}
	if len(bundles) != 3 || bundles["alpha"] != "alpha" {
		t.Fatalf("expected bundle outputs keyed by name, got %#v", bundles)
	}
	if len(built) != 3 || built[0] != "alpha" || built[1] != "mid" || built[2] != "zeta" {
		t.Fatalf("expected sorted build order, got %v", built)
	}

	if _, err := hooks.BuildCommandBundles(nil); err == nil {
		t.Fatalf("expected nil app to be rejected")
	}
}
