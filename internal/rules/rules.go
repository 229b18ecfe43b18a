// Package rules decides whether platform-conditional artifacts apply to
// a given platform.
//
// Rules are evaluated in declaration order and the last matching rule
// wins. An artifact without rules is always included. An artifact with
// rules starts out excluded, so at least one matching allow rule is
// needed to include it.
package rules

import (
	"strings"

	"github.com/klauern/assetsync/internal/model"
)

// Evaluate reports whether an artifact carrying rules is included on p.
func Evaluate(rules []model.Rule, p model.Platform) bool {
	if len(rules) == 0 {
		return true
	}

	included := false
	for _, r := range rules {
		if Matches(r, p) {
			included = r.Action == model.Allow
		}
	}
	return included
}

// Matches reports whether every recognized condition of r holds on p.
// Unrecognized condition keys are ignored.
func Matches(r model.Rule, p model.Platform) bool {
	for key, want := range r.Conditions {
		switch key {
		case model.ConditionOS:
			if !matchOS(want, p.OS) {
				return false
			}
		case model.ConditionArch:
			if model.NormalizeArch(want) != model.NormalizeArch(p.Arch) {
				return false
			}
		}
	}
	return true
}

func matchOS(want string, got model.OSFamily) bool {
	family, err := model.ParseOS(want)
	if err != nil {
		return strings.EqualFold(want, got.String())
	}
	return family == got
}

// Filter returns the artifacts included on p, preserving order.
func Filter(artifacts []model.Artifact, p model.Platform) []model.Artifact {
	included := make([]model.Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		if Evaluate(a.Rules, p) {
			included = append(included, a)
		}
	}
	return included
}
