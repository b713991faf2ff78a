package notebooks

import "fmt"

// Rule names the repair that was applied to a document.
type Rule string

const (
	RuleNone            Rule = "none"
	RuleMetadataCreated Rule = "metadata-created"
	RuleWidgetsReplaced Rule = "widgets-replaced"
	RuleStateKeyAdded   Rule = "state-key-added"
	RuleWidgetsRemoved  Rule = "widgets-removed"
)

// Policy decides what to do with metadata.widgets. Policies are mutually
// exclusive; exactly one runs per repair.
type Policy string

const (
	// PolicyEnsureState keeps widget metadata and makes it well formed by
	// guaranteeing a "state" object.
	PolicyEnsureState Policy = "ensure-state"
	// PolicyStripWidgets drops metadata.widgets entirely.
	PolicyStripWidgets Policy = "strip-widgets"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyEnsureState, PolicyStripWidgets:
		return p, nil
	}
	return "", fmt.Errorf("unknown widget policy %q", s)
}

// Apply repairs doc in place and returns the rule that fired. At most one rule
// fires: a freshly created metadata object cannot hold widgets.
func (p Policy) Apply(doc *Value) (Rule, error) {
	if !doc.IsObject() {
		return RuleNone, fmt.Errorf("%w: root is not an object", ErrMalformedDocument)
	}
	meta, ok := doc.Get("metadata")
	if !ok || !meta.IsObject() {
		doc.Set("metadata", ObjectValue())
		return RuleMetadataCreated, nil
	}
	widgets, ok := meta.Get("widgets")
	if !ok {
		return RuleNone, nil
	}

	switch p {
	case PolicyStripWidgets:
		meta.Delete("widgets")
		return RuleWidgetsRemoved, nil
	case PolicyEnsureState:
		if !widgets.IsObject() {
			meta.Set("widgets", ObjectValue(Member{Key: "state", Value: ObjectValue()}))
			return RuleWidgetsReplaced, nil
		}
		if !widgets.Has("state") {
			widgets.Set("state", ObjectValue())
			return RuleStateKeyAdded, nil
		}
		return RuleNone, nil
	}
	return RuleNone, fmt.Errorf("unknown widget policy %q", string(p))
}
