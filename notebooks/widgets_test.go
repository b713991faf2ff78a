package notebooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyApply(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		in     string
		want   string
		rule   Rule
	}{
		{
			name:   "adds missing state",
			policy: PolicyEnsureState,
			in:     `{"metadata":{"widgets":{"abc123":{}}}}`,
			want:   `{"metadata":{"widgets":{"abc123":{},"state":{}}}}`,
			rule:   RuleStateKeyAdded,
		},
		{
			name:   "creates missing metadata",
			policy: PolicyEnsureState,
			in:     `{"cells":[],"nbformat":4}`,
			want:   `{"cells":[],"nbformat":4,"metadata":{}}`,
			rule:   RuleMetadataCreated,
		},
		{
			name:   "replaces non-object metadata in place",
			policy: PolicyEnsureState,
			in:     `{"metadata":null,"cells":[]}`,
			want:   `{"metadata":{},"cells":[]}`,
			rule:   RuleMetadataCreated,
		},
		{
			name:   "replaces non-object widgets",
			policy: PolicyEnsureState,
			in:     `{"metadata":{"kernelspec":{},"widgets":"broken"}}`,
			want:   `{"metadata":{"kernelspec":{},"widgets":{"state":{}}}}`,
			rule:   RuleWidgetsReplaced,
		},
		{
			name:   "replaces widgets array",
			policy: PolicyEnsureState,
			in:     `{"metadata":{"widgets":[1]}}`,
			want:   `{"metadata":{"widgets":{"state":{}}}}`,
			rule:   RuleWidgetsReplaced,
		},
		{
			name:   "leaves existing state alone",
			policy: PolicyEnsureState,
			in:     `{"metadata":{"widgets":{"state":{"k":1},"version":"2"}}}`,
			want:   `{"metadata":{"widgets":{"state":{"k":1},"version":"2"}}}`,
			rule:   RuleNone,
		},
		{
			name:   "null state still counts as present",
			policy: PolicyEnsureState,
			in:     `{"metadata":{"widgets":{"state":null}}}`,
			want:   `{"metadata":{"widgets":{"state":null}}}`,
			rule:   RuleNone,
		},
		{
			name:   "no widgets",
			policy: PolicyEnsureState,
			in:     `{"metadata":{"kernelspec":{"name":"python3"}}}`,
			want:   `{"metadata":{"kernelspec":{"name":"python3"}}}`,
			rule:   RuleNone,
		},
		{
			name:   "strip removes widgets",
			policy: PolicyStripWidgets,
			in:     `{"metadata":{"a":1,"widgets":{"abc123":{}},"b":2}}`,
			want:   `{"metadata":{"a":1,"b":2}}`,
			rule:   RuleWidgetsRemoved,
		},
		{
			name:   "strip removes widgets that already have state",
			policy: PolicyStripWidgets,
			in:     `{"metadata":{"widgets":{"state":{}}}}`,
			want:   `{"metadata":{}}`,
			rule:   RuleWidgetsRemoved,
		},
		{
			name:   "strip without widgets",
			policy: PolicyStripWidgets,
			in:     `{"metadata":{}}`,
			want:   `{"metadata":{}}`,
			rule:   RuleNone,
		},
		{
			name:   "strip creates missing metadata",
			policy: PolicyStripWidgets,
			in:     `{}`,
			want:   `{"metadata":{}}`,
			rule:   RuleMetadataCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.in))
			require.NoError(t, err)

			rule, err := tt.policy.Apply(doc)
			require.NoError(t, err)
			assert.Equal(t, tt.rule, rule)
			assert.Equal(t, tt.want, string(Marshal(doc)))

			// A second pass never fires.
			again, err := tt.policy.Apply(doc)
			require.NoError(t, err)
			assert.Equal(t, RuleNone, again)
		})
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("strip-widgets")
	require.NoError(t, err)
	assert.Equal(t, PolicyStripWidgets, p)

	_, err = ParsePolicy("both")
	assert.Error(t, err)

	doc, err := Parse([]byte(`{"metadata":{"widgets":{}}}`))
	require.NoError(t, err)
	_, err = Policy("both").Apply(doc)
	assert.Error(t, err)
}
