package catalog

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidationError names the path of the first (or only) validation failure
// found: a lowercased struct path such as
// "deployconfigs[foo].deploystacks[0].composespec.services[web].image" for a
// missing or empty field, or "deploy_configs[foo]: deploy_stacks" for a
// duplicate stack_name.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return e.Path
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// Validate checks a HikariCatalog against §3's structural rules and returns
// a *ValidationError naming the first offending field path. It collects the
// tag-driven checks via validator/v10, then runs the cross-field checks the
// tags can't express (duplicate stack_name within a deployment).
func (c *HikariCatalog) Validate() error {
	if err := validate.Struct(c); err != nil {
		return &ValidationError{Path: fieldPath(err), Reason: "required field missing or empty"}
	}

	for name, dep := range c.DeployConfigs {
		seen := make(map[string]bool, len(dep.DeployStacks))
		for _, s := range dep.DeployStacks {
			if seen[s.StackName] {
				return &ValidationError{
					Path:   fmt.Sprintf("deploy_configs[%s]: deploy_stacks", name),
					Reason: fmt.Sprintf("duplicate stack_name %q", s.StackName),
				}
			}
			seen[s.StackName] = true
		}
	}

	return nil
}

// fieldPath translates a validator.ValidationErrors into the first failure's
// validator Namespace (Go struct field names with map keys and slice indices
// in brackets), minus the leading "HikariCatalog." and lowercased as a whole.
func fieldPath(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	ns := strings.TrimPrefix(fe.Namespace(), "HikariCatalog.")
	return strings.ToLower(ns)
}
