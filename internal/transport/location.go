package transport

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DefaultSFTPPort is the default SSH port.
const DefaultSFTPPort = 22

// Location identifies the remote end of a workspace.
type Location struct {
	Host string
	User string
	Path string
	Port int
}

// IsZero reports whether no remote is configured.
func (l Location) IsZero() bool {
	return l.Host == ""
}

// String returns a human-readable representation.
func (l Location) String() string {
	host := l.Host
	if l.Port != 0 && l.Port != DefaultSFTPPort {
		return (&url.URL{
			Scheme: "sftp",
			User:   userInfo(l.User),
			Host:   fmt.Sprintf("%s:%d", l.Host, l.Port),
			Path:   l.Path,
		}).String()
	}
	if l.User != "" {
		host = l.User + "@" + host
	}
	return fmt.Sprintf("%s:%s", host, l.Path)
}

// Identity is the key persisted state is stored under. The same server and
// root always map to the same identity regardless of user.
func (l Location) Identity() string {
	port := l.Port
	if port == 0 {
		port = DefaultSFTPPort
	}
	host := l.Host
	if port != DefaultSFTPPort {
		host = fmt.Sprintf("%s_%d", host, port)
	}
	return host
}

func userInfo(u string) *url.Userinfo {
	if u == "" {
		return nil
	}
	return url.User(u)
}

// ParseLocation parses a remote argument.
//
// Supported formats:
//   - host:path                       → current user, port 22
//   - user@host:path                  → port 22
//   - sftp://[user@]host[:port]/path
//
// A missing path means the login directory ("").
func ParseLocation(arg string) (Location, error) {
	if strings.HasPrefix(arg, "sftp://") {
		return parseSFTPURL(arg)
	}

	colonIdx := strings.IndexByte(arg, ':')
	if colonIdx < 0 {
		return Location{}, fmt.Errorf("invalid remote %q: expected [user@]host:path", arg)
	}

	hostPart := arg[:colonIdx]
	pathPart := arg[colonIdx+1:]

	if strings.ContainsRune(hostPart, '/') {
		return Location{}, fmt.Errorf("invalid remote %q: host contains '/'", arg)
	}

	var user, host string
	if atIdx := strings.LastIndexByte(hostPart, '@'); atIdx >= 0 {
		user = hostPart[:atIdx]
		host = hostPart[atIdx+1:]
	} else {
		host = hostPart
	}
	if host == "" {
		return Location{}, fmt.Errorf("invalid remote %q: empty host", arg)
	}

	return Location{Host: host, User: user, Path: pathPart}, nil
}

// parseSFTPURL parses a sftp://[user@]host[:port]/path URL.
func parseSFTPURL(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("invalid remote %q: %w", raw, err)
	}

	host := u.Hostname()
	if host == "" {
		return Location{}, fmt.Errorf("invalid remote %q: empty host", raw)
	}

	port := 0
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return Location{}, fmt.Errorf("invalid remote %q: bad port %q", raw, p)
		}
	}

	var user string
	if u.User != nil {
		user = u.User.Username()
	}

	return Location{Host: host, User: user, Port: port, Path: u.Path}, nil
}
