package acl

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// compiledRule is one rule ready for matching: its address predicate, the
// protocol/port constraints, the resolved outbound, and the optional
// hijack address.
type compiledRule[O any] struct {
	outbound  O
	matcher   *addressMatcher
	protocol  Protocol
	startPort uint16
	endPort   uint16
	hijackIP  netip.Addr
}

func (r *compiledRule[O]) matches(host HostInfo, proto Protocol, port uint16) bool {
	if !r.protocol.matches(proto) {
		return false
	}
	if port < r.startPort || port > r.endPort {
		return false
	}
	return r.matcher.matches(host)
}

// cacheValue is a cached match outcome; misses are cached too, so matched
// distinguishes "no rule matched" from a cold key.
type cacheValue[O any] struct {
	matched  bool
	outbound O
	hijackIP netip.Addr
}

// CompiledRuleSet is an immutable, ordered rule list plus a bounded LRU of
// match results. It is safe for concurrent use: rules and matcher data are
// read-only after Compile, the cache is the only mutable state and sits
// behind a single mutex.
type CompiledRuleSet[O any] struct {
	rules []compiledRule[O]

	mu    sync.Mutex
	cache *simplelru.LRU[cacheKey, cacheValue[O]]
}

// Compile resolves parsed rules against an outbound map and builds the
// matchers. Outbound names are matched case-insensitively. cacheSize is
// the fixed capacity of the result cache and must be at least 1.
//
// The outbound type O is copied by value into the rule set and into every
// match result, so it must be a value (or shared-pointer-like handle) that
// tolerates copying across goroutines.
func Compile[O any](rules []TextRule, outbounds map[string]O, cacheSize int, loader GeoLoader) (*CompiledRuleSet[O], error) {
	if cacheSize < 1 {
		return nil, fmt.Errorf("invalid cache size: %d", cacheSize)
	}
	if len(outbounds) == 0 {
		return nil, fmt.Errorf("empty outbound map")
	}
	byName := make(map[string]O, len(outbounds))
	for name, outbound := range outbounds {
		byName[strings.ToLower(name)] = outbound
	}

	compiled := make([]compiledRule[O], 0, len(rules))
	for _, rule := range rules {
		c, err := compileRule(rule, byName, loader)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, c)
	}

	cache, err := simplelru.NewLRU[cacheKey, cacheValue[O]](cacheSize, nil)
	if err != nil {
		return nil, fmt.Errorf("init result cache: %w", err)
	}

	logutil.GetLogger(context.Background()).Debug("acl rules compiled",
		zap.Int("rule_count", len(compiled)), zap.Int("cache_size", cacheSize))
	return &CompiledRuleSet[O]{rules: compiled, cache: cache}, nil
}

func compileRule[O any](rule TextRule, outbounds map[string]O, loader GeoLoader) (compiledRule[O], error) {
	outbound, ok := outbounds[strings.ToLower(rule.Outbound)]
	if !ok {
		return compiledRule[O]{}, &CompileError{
			Line:    rule.LineNum,
			Message: fmt.Sprintf("outbound %s not found", rule.Outbound),
		}
	}

	matcher, err := compileAddressMatcher(rule.Address, loader)
	if err != nil {
		return compiledRule[O]{}, &CompileError{
			Line:    rule.LineNum,
			Message: fmt.Sprintf("invalid address %s", rule.Address),
			Err:     err,
		}
	}

	proto, startPort, endPort := ProtocolBoth, uint16(0), uint16(65535)
	if rule.ProtoPort != "" {
		proto, startPort, endPort, err = parseProtoPort(rule.ProtoPort)
		if err != nil {
			return compiledRule[O]{}, &CompileError{Line: rule.LineNum, Message: err.Error()}
		}
	}

	var hijackIP netip.Addr
	if rule.HijackAddress != "" {
		hijackIP, err = netip.ParseAddr(rule.HijackAddress)
		if err != nil {
			return compiledRule[O]{}, &CompileError{
				Line:    rule.LineNum,
				Message: fmt.Sprintf("invalid hijack address (must be an IP): %s", rule.HijackAddress),
			}
		}
	}

	return compiledRule[O]{
		outbound:  outbound,
		matcher:   matcher,
		protocol:  proto,
		startPort: startPort,
		endPort:   endPort,
		hijackIP:  hijackIP,
	}, nil
}

// MatchHost finds the routing decision for a query. The second return is
// false when no rule matched.
//
// The cache mutex is held across the whole lookup-compute-insert sequence.
// Releasing it between the miss and the insert would let concurrent
// queries for the same key all scan the rules and all store the value (a
// stampede on the expensive path); the scan is pure CPU and takes no other
// locks, so holding it is bounded and safe.
func (s *CompiledRuleSet[O]) MatchHost(host HostInfo, proto Protocol, port uint16) (MatchResult[O], bool) {
	// Constructors lowercase Name, but HostInfo can be built directly.
	// Normalize only when an upper-case byte is actually present.
	for i := 0; i < len(host.Name); i++ {
		if host.Name[i] >= 'A' && host.Name[i] <= 'Z' {
			host.Name = strings.ToLower(host.Name)
			break
		}
	}

	key := cacheKeyFromHost(host, proto, port)

	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.cache.Get(key); ok {
		cacheHitsTotal.Inc()
		if !cached.matched {
			return MatchResult[O]{}, false
		}
		return MatchResult[O]{Outbound: cached.outbound, HijackIP: cached.hijackIP}, true
	}
	cacheMissesTotal.Inc()

	start := time.Now()
	result, matched := s.findMatch(host, proto, port)
	matchDuration.Observe(time.Since(start).Seconds())

	if evicted := s.cache.Add(key, cacheValue[O]{
		matched:  matched,
		outbound: result.Outbound,
		hijackIP: result.HijackIP,
	}); evicted {
		cacheEvictionsTotal.Inc()
	}
	return result, matched
}

// findMatch is the uncached first-match-wins scan.
func (s *CompiledRuleSet[O]) findMatch(host HostInfo, proto Protocol, port uint16) (MatchResult[O], bool) {
	for i := range s.rules {
		rule := &s.rules[i]
		if rule.matches(host, proto, port) {
			return MatchResult[O]{Outbound: rule.outbound, HijackIP: rule.hijackIP}, true
		}
	}
	return MatchResult[O]{}, false
}

// RuleCount returns the number of compiled rules.
func (s *CompiledRuleSet[O]) RuleCount() int {
	return len(s.rules)
}

// ClearCache drops every cached result.
func (s *CompiledRuleSet[O]) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
}

// CacheLen returns the number of currently cached results.
func (s *CompiledRuleSet[O]) CacheLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}
