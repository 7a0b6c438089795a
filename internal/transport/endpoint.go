package transport

import (
	"net"
	"net/url"
	"slices"
	"strings"
)

// Candidate is one base address the client may reach the assistant through. Rank is its position in
// the ordered list, starting at zero.
type Candidate struct {
	Address string
	Rank    int
}

// Loopback reports whether the candidate points at the local machine.
func (c Candidate) Loopback() bool {
	u, err := url.Parse(c.Address)
	if err != nil {
		return false
	}
	return IsLoopback(u.Hostname())
}

// HostContext is the static context the candidate list is derived from.
type HostContext struct {
	// Origin is the same-origin deployment address, empty when unknown.
	Origin string
	// LockedDown is set when content is served from a single trusted origin without loopback access.
	LockedDown bool
	// Remote is the configured remote address.
	Remote string
	// Loopback lists local development addresses. Leave it empty in production deployments.
	Loopback []string
}

// DefaultLoopback are the development addresses tried last when no list is configured.
var DefaultLoopback = []string{"http://127.0.0.1:8000", "http://localhost:8000"}

// CandidateList is an immutable ordered list of candidates. The zero value is an empty list.
type CandidateList struct {
	items []Candidate
}

// Candidates derives the ordered candidate list from the host context. A locked-down host yields only
// its origin (or the remote address when the origin is unknown), and an empty list when it knows
// neither; loopback variants are never substituted there, so the caller answers offline right away.
// Otherwise the order is same-origin, remote, then loopback variants. Blank and duplicate addresses are
// dropped.
func Candidates(hc HostContext) CandidateList {
	var addrs []string
	if hc.LockedDown {
		switch {
		case hc.Origin != "":
			addrs = []string{hc.Origin}
		case hc.Remote != "":
			addrs = []string{hc.Remote}
		}
	} else {
		addrs = append(addrs, hc.Origin, hc.Remote)
		addrs = append(addrs, hc.Loopback...)
	}

	var list CandidateList
	for _, a := range addrs {
		a = strings.TrimRight(strings.TrimSpace(a), "/")
		if a == "" {
			continue
		}
		if slices.ContainsFunc(list.items, func(c Candidate) bool { return c.Address == a }) {
			continue
		}
		list.items = append(list.items, Candidate{Address: a, Rank: len(list.items)})
	}
	return list
}

// Len returns the number of candidates.
func (l CandidateList) Len() int {
	return len(l.items)
}

// At returns the candidate with the given rank.
func (l CandidateList) At(rank int) (Candidate, bool) {
	if rank < 0 || rank >= len(l.items) {
		return Candidate{}, false
	}
	return l.items[rank], true
}

// First returns the highest-ranked candidate.
func (l CandidateList) First() (Candidate, bool) {
	return l.At(0)
}

// Next returns the candidate ranked right after the given rank. Pass -1 to get the first one.
func (l CandidateList) Next(after int) (Candidate, bool) {
	return l.At(after + 1)
}

// All returns a copy of the candidates in rank order.
func (l CandidateList) All() []Candidate {
	return slices.Clone(l.items)
}

// IsLoopback reports whether host refers to the local machine. The port, if any, is ignored.
func IsLoopback(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
