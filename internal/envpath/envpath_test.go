package envpath

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sep = string(os.PathListSeparator)

func TestAppend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		initial []string
		want    string
	}{
		{
			name:    "unset variable becomes the segment",
			initial: []string{"HOME=/root"},
			want:    "/srv/app",
		},
		{
			name:    "empty variable becomes the segment",
			initial: []string{"PYTHONPATH="},
			want:    "/srv/app",
		},
		{
			name:    "existing value is preserved",
			initial: []string{"PYTHONPATH=/opt/lib"},
			want:    "/opt/lib" + sep + "/srv/app",
		},
		{
			name:    "multi-entry value is preserved",
			initial: []string{"PYTHONPATH=/a" + sep + "/b"},
			want:    "/a" + sep + "/b" + sep + "/srv/app",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			e := New(tc.initial)
			got := e.Append("PYTHONPATH", "/srv/app")

			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.want, e.Get("PYTHONPATH"))
		})
	}
}

func TestAppend_TwiceDoesNotDeduplicate(t *testing.T) {
	t.Parallel()

	e := New([]string{"PYTHONPATH=/opt/lib"})
	e.Append("PYTHONPATH", "/srv/app")
	got := e.Append("PYTHONPATH", "/srv/app")

	assert.Equal(t, "/opt/lib"+sep+"/srv/app"+sep+"/srv/app", got)
}

func TestNew_LaterDuplicateWins(t *testing.T) {
	t.Parallel()

	e := New([]string{"A=1", "B=2", "A=3", "malformed"})

	assert.Equal(t, "3", e.Get("A"))
	assert.Equal(t, []string{"A=3", "B=2"}, e.Slice())
}

func TestLookup(t *testing.T) {
	t.Parallel()

	e := New([]string{"EMPTY=", "PATHISH=x"})

	v, ok := e.Lookup("EMPTY")
	assert.True(t, ok)
	assert.Empty(t, v)

	_, ok = e.Lookup("MISSING")
	assert.False(t, ok)

	// A key that is a prefix of another must not match it.
	_, ok = e.Lookup("PATH")
	assert.False(t, ok)
}

func TestSlice_IsACopy(t *testing.T) {
	t.Parallel()

	e := New([]string{"A=1"})
	s := e.Slice()
	s[0] = "A=changed"

	assert.Equal(t, "1", e.Get("A"))
}

func TestFromOS(t *testing.T) {
	t.Setenv("ENVPATH_TEST_VAR", "present")

	e := FromOS()
	require.NotNil(t, e)
	assert.Equal(t, "present", e.Get("ENVPATH_TEST_VAR"))

	e.Append("ENVPATH_TEST_VAR", "more")
	assert.Equal(t, "present", os.Getenv("ENVPATH_TEST_VAR"), "process env must stay untouched")
}
