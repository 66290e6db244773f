package toolfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tool struct{ name string }

func toolName(t tool) string { return t.name }

func tools(names ...string) []tool {
	out := make([]tool, len(names))
	for i, n := range names {
		out[i] = tool{name: n}
	}
	return out
}

func TestParseToolList(t *testing.T) {
	assert.Equal(t, []string{"foo", "bar", "baz"}, ParseToolList("foo, bar, baz"))
	assert.Equal(t, []string{"foo", "bar"}, ParseToolList("foo,bar,foo"))
	assert.Equal(t, []string{"a", "b"}, ParseToolList("  a , b ,  "))
	assert.Nil(t, ParseToolList(""))
	assert.Nil(t, ParseToolList(" , ,"))
}

func TestSelect(t *testing.T) {
	all := tools("echo", "add", "fail", "slow")

	tests := []struct {
		name    string
		include []string
		exclude []string
		want    []tool
		wantErr string
	}{
		{name: "no filter", want: all},
		{name: "include keeps server order", include: []string{"slow", "echo"}, want: tools("echo", "slow")},
		{name: "exclude", exclude: []string{"fail", "slow", "missing"}, want: tools("echo", "add")},
		{name: "exclude everything", exclude: []string{"echo", "add", "fail", "slow"}, wantErr: "all tools excluded"},
		{name: "both", include: []string{"echo"}, exclude: []string{"add"}, wantErr: "cannot be used together"},
		{name: "include unknown", include: []string{"echo", "ad"}, wantErr: "tool 'ad' not found on server"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Select(all, toolName, tc.include, tc.exclude)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSelectUnknownIncludeSuggests(t *testing.T) {
	_, err := Select(tools("list_issues", "create_issue"), toolName, []string{"lisst_issues"}, nil)

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "lisst_issues", notFound.Name)
	assert.Equal(t, "list_issues", notFound.Suggestion)
	assert.Equal(t, []string{"list_issues", "create_issue"}, notFound.Available)
}

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"list_issues", "lisst_issues", 1},
		{"café", "cafe", 1},
		{"flaw", "lawn", 2},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, editDistance(tc.a, tc.b), "%q vs %q", tc.a, tc.b)
		assert.Equal(t, tc.want, editDistance(tc.b, tc.a), "%q vs %q", tc.b, tc.a)
	}
}

func TestSuggest(t *testing.T) {
	available := []string{"list_issues", "create_issue", "delete_repo"}
	assert.Equal(t, "list_issues", Suggest("lisst_issues", available))
	assert.Equal(t, "delete_repo", Suggest("delete-repo", available))
	assert.Empty(t, Suggest("zzzzzzzzzzzzz", available))
	assert.Empty(t, Suggest("echo", nil))
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("ecko", []string{"echo", "add"})
	assert.Equal(t, "echo", err.Suggestion)
	assert.EqualError(t, err, "tool 'ecko' not found on server. Available tools: echo, add. Did you mean 'echo'?")

	err = NewNotFoundError("completely_different", []string{"echo"})
	assert.NotContains(t, err.Error(), "Did you mean")
}
