package rtmp

import (
	"fmt"
	"net"
	"strings"

	"github.com/pkg/errors"

	"github.com/lumenstream/rtmppub/config"
)

// URI is a parsed "rtmp[s]://host[:port]/app[/app...]/streamKey" publish
// target. The last path element is always taken as the stream key; every
// element before it is joined back together as the application name, the
// same split the teacher library's Client.Connect performs.
type URI struct {
	Secure    bool
	Host      string
	Port      string
	App       string
	StreamKey string
}

// ParseURI parses a publish URI. Only the "rtmp" and "rtmps" schemes are
// recognized; anything else is ErrInvalidArgument.
func ParseURI(raw string, cfg *config.Config) (*URI, error) {
	if raw == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "empty URI")
	}

	scheme, rest, ok := cutScheme(raw)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidArgument, "URI %q has no rtmp:// or rtmps:// scheme", raw)
	}
	secure := scheme == "rtmps"

	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "URI %q has no path", raw)
	}
	hostport := rest[:slash]
	path := strings.Trim(rest[slash:], "/")

	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host = hostport
		port = cfg.DefaultPort
	}
	if host == "" {
		return nil, errors.Wrapf(ErrInvalidArgument, "URI %q has no host", raw)
	}

	segments := strings.Split(path, "/")
	if len(segments) < 2 || segments[len(segments)-1] == "" {
		return nil, errors.Wrapf(ErrInvalidArgument, "URI %q needs an app and a stream key", raw)
	}

	return &URI{
		Secure:    secure,
		Host:      host,
		Port:      port,
		App:       strings.Join(segments[:len(segments)-1], "/"),
		StreamKey: segments[len(segments)-1],
	}, nil
}

func cutScheme(raw string) (scheme, rest string, ok bool) {
	const sep = "://"
	i := strings.Index(raw, sep)
	if i < 0 {
		return "", "", false
	}
	scheme = strings.ToLower(raw[:i])
	if scheme != "rtmp" && scheme != "rtmps" {
		return "", "", false
	}
	return scheme, raw[i+len(sep):], true
}

// Addr returns the "host:port" dial target.
func (u *URI) Addr() string {
	return net.JoinHostPort(u.Host, u.Port)
}

// String rebuilds the URI without anonymizing anything.
func (u *URI) String() string {
	scheme := "rtmp"
	if u.Secure {
		scheme = "rtmps"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, u.Addr(), u.App, u.StreamKey)
}

// Anonymize returns a copy of the URI string with the application name and
// stream key obscured, suitable for logging a publish target without
// leaking the stream key it authenticates with.
func (u *URI) Anonymize() string {
	scheme := "rtmp"
	if u.Secure {
		scheme = "rtmps"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, u.Addr(), anonymizeStr(u.App), anonymizeStr(u.StreamKey))
}

// anonymizeStr keeps the first two and last two characters of s and replaces
// everything in between with '*', the same obfuscation scheme the original
// implementation's anonymize_str used for log-safe URIs. Strings of 4
// characters or fewer are replaced entirely.
func anonymizeStr(s string) string {
	n := len(s)
	if n <= 4 {
		return strings.Repeat("*", n)
	}
	return s[:2] + strings.Repeat("*", n-4) + s[n-2:]
}
