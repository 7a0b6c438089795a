package transport

import (
	"net"
	"regexp"
	"strings"
)

var (
	mobileUA = regexp.MustCompile(`(?i)Mobi|Android|iPhone|iPad|iPod`)
	iosUA    = regexp.MustCompile(`(?i)iPhone|iPad|iPod`)
)

// DefaultLockedDownSuffixes are host suffixes of edge deployments that serve the app and the assistant
// from one origin.
var DefaultLockedDownSuffixes = []string{"vercel.app"}

// Environment describes the runtime the client session runs in.
type Environment struct {
	// Host is the hostname (optionally with port) the client was served from.
	Host string
	// UserAgent is the browser or client user agent string.
	UserAgent string
	// Platform is the reported platform, e.g. "MacIntel".
	Platform string
	// MaxTouchPoints is the number of touch points the device reports.
	MaxTouchPoints int

	// DisableStreaming is the operator-set override. It takes precedence over every other signal.
	DisableStreaming bool
	// LockedDownSuffixes are matched against Host. Nil means DefaultLockedDownSuffixes.
	LockedDownSuffixes []string
}

// Signals are the individual facts the capability decision is made from.
type Signals struct {
	DisableStreaming bool
	LockedDownHost   bool
	Mobile           bool
	IOS              bool
	Safari           bool
}

// SignalsFrom classifies the environment.
func SignalsFrom(env Environment) Signals {
	ua := env.UserAgent
	lower := strings.ToLower(ua)

	suffixes := env.LockedDownSuffixes
	if suffixes == nil {
		suffixes = DefaultLockedDownSuffixes
	}

	return Signals{
		DisableStreaming: env.DisableStreaming,
		LockedDownHost:   lockedDownHost(env.Host, suffixes),
		Mobile:           mobileUA.MatchString(ua),
		// iPadOS reports itself as a Mac with touch support.
		IOS: iosUA.MatchString(ua) || (env.Platform == "MacIntel" && env.MaxTouchPoints > 1),
		Safari: strings.Contains(lower, "safari") &&
			!strings.Contains(lower, "chrome") &&
			!strings.Contains(lower, "android"),
	}
}

// lockedDownHost matches host against domain suffixes on label boundaries, so "vercel.app" matches
// "uphera.vercel.app" and "vercel.app" but not "notvercel.app".
func lockedDownHost(host string, suffixes []string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return false
	}
	for _, s := range suffixes {
		s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")
		if s == "" {
			continue
		}
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}

// CapabilityProfile is the per-session transport preference. It is computed once when the session starts
// and handed to the orchestrator; nothing below reads the environment again.
type CapabilityProfile struct {
	// PreferStreaming is false when streaming must be skipped and only single-shot requests are used.
	PreferStreaming bool
	// PreferServerPush is meaningful only when PreferStreaming is true. It selects the server-push stream
	// over the chunked POST stream.
	PreferServerPush bool

	Signals Signals
}

// Profile derives the capability profile from signals. The disable flag wins over everything else;
// locked-down hosts, iOS, Safari engines and mobile devices prefer the server-push stream because they
// mishandle long-lived chunked POST bodies.
func Profile(s Signals) CapabilityProfile {
	if s.DisableStreaming {
		return CapabilityProfile{Signals: s}
	}
	return CapabilityProfile{
		PreferStreaming:  true,
		PreferServerPush: s.LockedDownHost || s.IOS || s.Safari || s.Mobile,
		Signals:          s,
	}
}

// Detect classifies the environment and derives its capability profile.
func Detect(env Environment) CapabilityProfile {
	return Profile(SignalsFrom(env))
}

// Mode returns the transport class the profile starts with, for logging.
func (p CapabilityProfile) Mode() Mode {
	switch {
	case !p.PreferStreaming:
		return ModeSingleShot
	case p.PreferServerPush:
		return ModeServerPush
	default:
		return ModeChunkedPost
	}
}
