package probe

import (
	"net"
	"strconv"
	"strings"
)

// endpoint is a parsed host with the game port resolved.
type endpoint struct {
	Hostname string
	Port     int
}

// parseEndpoint splits "host[:port]". A missing or unparsable port falls
// back to defaultPort.
func parseEndpoint(host string, defaultPort int) endpoint {
	host = strings.TrimSpace(host)
	name, portStr, err := net.SplitHostPort(host)
	if err != nil {
		return endpoint{Hostname: strings.Trim(host, "[]"), Port: defaultPort}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		port = defaultPort
	}
	return endpoint{Hostname: name, Port: port}
}

// withOffset returns the address port+offset, used for protocols that
// answer queries on a port next to the game port.
func (e endpoint) withOffset(offset int) string {
	return net.JoinHostPort(e.Hostname, strconv.Itoa(e.Port+offset))
}

func (e endpoint) String() string { return e.withOffset(0) }
