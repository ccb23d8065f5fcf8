package netinfo

import (
	"bufio"
	"context"
	"net"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"time"
)

// Unknown is reported when an address cannot be determined.
const Unknown = "unknown"

const (
	commandTimeout = 10 * time.Second
	dialTimeout    = 3 * time.Second
)

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

type Resolver struct {
	goos string
	run  Runner
}

type Option func(*Resolver)

func WithGOOS(goos string) Option {
	return func(r *Resolver) {
		if goos != "" {
			r.goos = goos
		}
	}
}

func WithRunner(run Runner) Option {
	return func(r *Resolver) {
		if run != nil {
			r.run = run
		}
	}
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{goos: runtime.GOOS, run: execRunner}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// DefaultGateway detects the IPv4 default gateway with the host routing
// tools. It returns Unknown when no source yields an address.
func (r *Resolver) DefaultGateway(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if r.goos == "windows" {
		if out, err := r.run(ctx, "route", "print", "0.0.0.0"); err == nil {
			if gw := ParseRoutePrint(string(out)); gw != "" {
				return gw
			}
		}
		return Unknown
	}

	if out, err := r.run(ctx, "ip", "route", "show", "default"); err == nil {
		if gw := ParseIPRoute(string(out)); gw != "" {
			return gw
		}
	}
	if out, err := r.run(ctx, "route", "-n"); err == nil {
		if gw := ParseRouteTable(string(out)); gw != "" {
			return gw
		}
	}
	return Unknown
}

func DefaultGateway(ctx context.Context) string {
	return NewResolver().DefaultGateway(ctx)
}

var ipRouteDefault = regexp.MustCompile(`default via (\d+\.\d+\.\d+\.\d+)`)

// ParseIPRoute extracts the gateway from `ip route show default` output.
func ParseIPRoute(out string) string {
	m := ipRouteDefault.FindStringSubmatch(out)
	if m == nil {
		return ""
	}
	return m[1]
}

// ParseRouteTable extracts the gateway from the 0.0.0.0 destination row of
// `route -n` output.
func ParseRouteTable(out string) string {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 2 && fields[0] == "0.0.0.0" && isIPv4(fields[1]) && fields[1] != "0.0.0.0" {
			return fields[1]
		}
	}
	return ""
}

// ParseRoutePrint extracts the gateway from Windows `route print 0.0.0.0`
// output: the row whose destination and netmask are both 0.0.0.0.
func ParseRoutePrint(out string) string {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 3 && fields[0] == "0.0.0.0" && fields[1] == "0.0.0.0" && isIPv4(fields[2]) {
			return fields[2]
		}
	}
	return ""
}

func isIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}

// LocalAddress reports the source address the host would use to reach
// target. No packet is sent; resolving a hostname target is bounded by a
// short dial timeout.
func LocalAddress(target string) string {
	return localAddress(&net.Dialer{Timeout: dialTimeout}, target)
}

func localAddress(d *net.Dialer, target string) string {
	conn, err := d.Dial("udp", net.JoinHostPort(target, "80"))
	if err != nil {
		return Unknown
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil {
		return Unknown
	}
	return addr.IP.String()
}
