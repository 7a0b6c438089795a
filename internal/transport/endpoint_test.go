package transport_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uphera/adachat/internal/transport"
)

func candidateList(addrs ...string) transport.CandidateList {
	return transport.Candidates(transport.HostContext{Loopback: addrs})
}

func addresses(l transport.CandidateList) []string {
	var out []string
	for _, c := range l.All() {
		out = append(out, c.Address)
	}
	return out
}

func TestCandidates(t *testing.T) {
	tests := []struct {
		name string
		hc   transport.HostContext
		want []string
	}{
		{
			name: "Full order",
			hc: transport.HostContext{
				Origin:   "https://app.example.com",
				Remote:   "https://uphera.vercel.app",
				Loopback: transport.DefaultLoopback,
			},
			want: []string{
				"https://app.example.com",
				"https://uphera.vercel.app",
				"http://127.0.0.1:8000",
				"http://localhost:8000",
			},
		},
		{
			name: "Blanks, trailing slashes and duplicates dropped",
			hc: transport.HostContext{
				Origin:   "https://uphera.vercel.app/",
				Remote:   "https://uphera.vercel.app",
				Loopback: []string{"", "  ", "http://localhost:8000"},
			},
			want: []string{"https://uphera.vercel.app", "http://localhost:8000"},
		},
		{
			name: "Locked down keeps only origin",
			hc: transport.HostContext{
				Origin:     "https://uphera.vercel.app",
				LockedDown: true,
				Remote:     "https://api.example.com",
				Loopback:   transport.DefaultLoopback,
			},
			want: []string{"https://uphera.vercel.app"},
		},
		{
			name: "Locked down without origin keeps remote",
			hc: transport.HostContext{
				LockedDown: true,
				Remote:     "https://api.example.com",
				Loopback:   transport.DefaultLoopback,
			},
			want: []string{"https://api.example.com"},
		},
		{
			name: "Locked down without any address",
			hc: transport.HostContext{
				LockedDown: true,
				Loopback:   transport.DefaultLoopback,
			},
			want: nil,
		},
		{
			name: "Loopback list may be empty",
			hc:   transport.HostContext{Remote: "https://api.example.com"},
			want: []string{"https://api.example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := transport.Candidates(tt.hc)
			assert.Equal(t, tt.want, addresses(got))
			for i, c := range got.All() {
				assert.Equal(t, i, c.Rank)
			}
		})
	}
}

func TestCandidateListNext(t *testing.T) {
	l := candidateList("http://a", "http://b")

	c, ok := l.Next(-1)
	require.True(t, ok)
	assert.Equal(t, "http://a", c.Address)

	c, ok = l.Next(c.Rank)
	require.True(t, ok)
	assert.Equal(t, "http://b", c.Address)

	_, ok = l.Next(c.Rank)
	assert.False(t, ok)

	// Selection is pure: asking again gives the same answer.
	again, ok := l.Next(0)
	require.True(t, ok)
	assert.Equal(t, "http://b", again.Address)

	var empty transport.CandidateList
	_, ok = empty.First()
	assert.False(t, ok)
}

func TestCandidateListAllIsCopy(t *testing.T) {
	l := candidateList("http://a")
	all := l.All()
	all[0].Address = "http://changed"

	c, _ := l.First()
	assert.Equal(t, "http://a", c.Address)
}

func TestIsLoopback(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"localhost", true},
		{"LOCALHOST:8000", true},
		{"127.0.0.1", true},
		{"127.0.0.1:8000", true},
		{"[::1]:8000", true},
		{"::1", true},
		{"uphera.vercel.app", false},
		{"10.0.0.1", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, transport.IsLoopback(tt.host))
		})
	}
}

func TestCandidateLoopback(t *testing.T) {
	assert.True(t, transport.Candidate{Address: "http://127.0.0.1:8000"}.Loopback())
	assert.True(t, transport.Candidate{Address: "http://localhost:8000"}.Loopback())
	assert.False(t, transport.Candidate{Address: "https://uphera.vercel.app"}.Loopback())
}
