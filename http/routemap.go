package http

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/mark3labs/x402-go"
)

// RouteConfig describes the payment requirements for one logical route. It
// is the unit RouteMap compiles into a matcher at construction time. Method
// is matched case-insensitively; use "*" to match every method. Pattern
// follows the route-pattern surface: a literal path with `[name]` standing
// in for one path segment and `*` for a non-greedy wildcard, e.g.
// "/invoices/[id]" or "/files/*". Pattern is matched against the full,
// normalized request path.
type RouteConfig struct {
	Pattern      string
	Method       string
	Requirements []x402.PaymentRequirement
}

// compiledRoute is a RouteConfig with its pattern pre-compiled. index is its
// position in RouteMap.routes, kept alongside so callers that need a
// parallel slice (one gated handler per route) can recover it from a match.
type compiledRoute struct {
	index        int
	method       string
	source       string
	pattern      *regexp.Regexp
	requirements []x402.PaymentRequirement
}

// RouteMap matches incoming requests against a set of RouteConfig entries,
// letting one middleware instance gate many routes with distinct payment
// requirements instead of the single global requirements slice Config uses.
type RouteMap struct {
	routes []compiledRoute
}

// NewRouteMap compiles every RouteConfig's pattern eagerly, returning an
// error on the first invalid regexp or a route with no requirements, so a
// misconfigured RouteMap fails at startup rather than on the first request.
func NewRouteMap(configs []RouteConfig) (*RouteMap, error) {
	routes := make([]compiledRoute, 0, len(configs))
	for i, cfg := range configs {
		if len(cfg.Requirements) == 0 {
			return nil, fmt.Errorf("route %d (%s %s): no payment requirements", i, cfg.Method, cfg.Pattern)
		}
		source, err := compilePatternSource(cfg.Pattern)
		if err != nil {
			return nil, fmt.Errorf("route %d (%s %s): invalid pattern: %w", i, cfg.Method, cfg.Pattern, err)
		}
		pattern, err := regexp.Compile("(?i)^" + source + "$")
		if err != nil {
			return nil, fmt.Errorf("route %d (%s %s): invalid pattern: %w", i, cfg.Method, cfg.Pattern, err)
		}
		method := cfg.Method
		if method == "" {
			method = "*"
		}
		routes = append(routes, compiledRoute{
			index:        i,
			method:       method,
			source:       source,
			pattern:      pattern,
			requirements: cfg.Requirements,
		})
	}
	return &RouteMap{routes: routes}, nil
}

// compilePatternSource translates the route-pattern surface into a regexp
// source: `[name]` (a bracketed single-segment placeholder) becomes
// `[^/]+`, `*` becomes the non-greedy wildcard `.*?`, and every other rune
// is treated as a literal and escaped. An unterminated `[` is rejected
// rather than treated as a literal bracket.
func compilePatternSource(pattern string) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(pattern) {
		switch pattern[i] {
		case '[':
			end := strings.IndexByte(pattern[i:], ']')
			if end < 0 {
				return "", fmt.Errorf("unterminated '[' in pattern %q", pattern)
			}
			b.WriteString(`[^/]+`)
			i += end + 1
		case '*':
			b.WriteString(`.*?`)
			i++
		default:
			j := i
			for j < len(pattern) && pattern[j] != '[' && pattern[j] != '*' {
				j++
			}
			b.WriteString(regexp.QuoteMeta(pattern[i:j]))
			i = j
		}
	}
	return b.String(), nil
}

// normalizePath prepares a request path for route matching per the
// protocol's path-normalization rule: URL-decode (net/http's URL parsing
// already does this for Path), convert `\` to `/`, collapse runs of `/`,
// and strip a trailing slash. Case-folding is left to the compiled
// pattern's (?i) flag rather than done here.
func normalizePath(path string) string {
	if decoded, err := url.PathUnescape(path); err == nil {
		path = decoded
	}
	path = strings.ReplaceAll(path, `\`, "/")

	var b strings.Builder
	b.Grow(len(path))
	lastWasSlash := false
	for _, r := range path {
		if r == '/' {
			if lastWasSlash {
				continue
			}
			lastWasSlash = true
		} else {
			lastWasSlash = false
		}
		b.WriteRune(r)
	}
	normalized := b.String()
	if len(normalized) > 1 {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

// Match returns the payment requirements for the route matching r, or
// (nil, false) if no route matches. When several routes match the same
// normalized path and method, the route whose compiled pattern source is
// longest wins, per the protocol's ambiguity tie-break.
func (m *RouteMap) Match(r *http.Request) ([]x402.PaymentRequirement, bool) {
	route, ok := m.findRoute(r)
	if !ok {
		return nil, false
	}
	return route.requirements, true
}

func (m *RouteMap) findRoute(r *http.Request) (*compiledRoute, bool) {
	path := normalizePath(r.URL.Path)
	var best *compiledRoute
	for i := range m.routes {
		route := &m.routes[i]
		if route.method != "*" && !equalFoldMethod(route.method, r.Method) {
			continue
		}
		if !route.pattern.MatchString(path) {
			continue
		}
		if best == nil || len(route.source) > len(best.source) {
			best = route
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

func equalFoldMethod(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'a' <= ca && ca <= 'z' {
			ca -= 'a' - 'A'
		}
		if 'a' <= cb && cb <= 'z' {
			cb -= 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// NewX402RouteMiddleware is NewX402Middleware's per-route counterpart: instead
// of gating every request behind the same Config.PaymentRequirements, it
// builds one gated handler per RouteMap entry up front (each enriching its
// own requirements from the facilitator exactly once, same as
// NewX402Middleware) and dispatches each request to the handler for the
// route it matched, falling through to next unmodified for paths the
// RouteMap does not cover.
func NewX402RouteMiddleware(routeMap *RouteMap, config *Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		gatedByRoute := make([]http.Handler, len(routeMap.routes))
		for i, route := range routeMap.routes {
			routeConfig := *config
			routeConfig.PaymentRequirements = route.requirements
			gatedByRoute[i] = NewX402Middleware(&routeConfig)(next)
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, ok := routeMap.findRoute(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			gatedByRoute[route.index].ServeHTTP(w, r)
		})
	}
}
