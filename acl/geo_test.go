package acl

import (
	"errors"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
)

func TestNilGeoLoader(t *testing.T) {
	var loader NilGeoLoader
	if _, err := loader.LoadGeoIP("cn"); !errors.Is(err, ErrGeoNotSupported) {
		t.Fatalf("expected ErrGeoNotSupported, got %v", err)
	}
	if _, err := loader.LoadGeoSite("google"); !errors.Is(err, ErrGeoNotSupported) {
		t.Fatalf("expected ErrGeoNotSupported, got %v", err)
	}
}

type countingGeoLoader struct {
	geoipCalls   atomic.Int32
	geositeCalls atomic.Int32
}

func (l *countingGeoLoader) LoadGeoIP(countryCode string) (*GeoIPMatcher, error) {
	l.geoipCalls.Add(1)
	return NewGeoIPMatcher(countryCode, mustPrefixes("1.2.3.0/24")), nil
}

func (l *countingGeoLoader) LoadGeoSite(siteName string) (*GeoSiteMatcher, error) {
	l.geositeCalls.Add(1)
	return NewGeoSiteMatcher(siteName, []*DomainEntry{NewRootEntry("example.com")}, nil), nil
}

func TestCachedGeoLoaderMemoizes(t *testing.T) {
	inner := &countingGeoLoader{}
	loader := NewCachedGeoLoader(inner)

	first, err := loader.LoadGeoIP("cn")
	if err != nil {
		t.Fatalf("LoadGeoIP error: %v", err)
	}
	second, err := loader.LoadGeoIP("cn")
	if err != nil {
		t.Fatalf("LoadGeoIP error: %v", err)
	}
	if first != second {
		t.Fatal("expected the memoized matcher instance")
	}
	if got := inner.geoipCalls.Load(); got != 1 {
		t.Fatalf("expected 1 inner call, got %d", got)
	}

	if _, err := loader.LoadGeoIP("us"); err != nil {
		t.Fatalf("LoadGeoIP error: %v", err)
	}
	if got := inner.geoipCalls.Load(); got != 2 {
		t.Fatalf("expected 2 inner calls after a new code, got %d", got)
	}
}

func TestCachedGeoLoaderConcurrent(t *testing.T) {
	inner := &countingGeoLoader{}
	loader := NewCachedGeoLoader(inner)

	// Warm the entry, then hammer it; the inner loader must not be hit
	// again.
	if _, err := loader.LoadGeoSite("google"); err != nil {
		t.Fatalf("LoadGeoSite error: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := loader.LoadGeoSite("google"); err != nil {
				t.Errorf("LoadGeoSite error: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := inner.geositeCalls.Load(); got != 1 {
		t.Fatalf("expected 1 inner call, got %d", got)
	}
}

func TestCachedGeoLoaderPropagatesErrors(t *testing.T) {
	loader := NewCachedGeoLoader(NilGeoLoader{})
	if _, err := loader.LoadGeoIP("cn"); !errors.Is(err, ErrGeoNotSupported) {
		t.Fatalf("expected ErrGeoNotSupported, got %v", err)
	}
	// Errors are not memoized; a later attempt asks the inner loader again.
	if _, err := loader.LoadGeoIP("cn"); !errors.Is(err, ErrGeoNotSupported) {
		t.Fatalf("expected ErrGeoNotSupported, got %v", err)
	}
}

func TestCachedGeoLoaderSharedAcrossRuleSets(t *testing.T) {
	inner := &countingGeoLoader{}
	loader := NewCachedGeoLoader(inner)
	rules, err := ParseRules("direct(geoip:cn)\nproxy(all)")
	if err != nil {
		t.Fatalf("ParseRules error: %v", err)
	}
	outbounds := map[string]string{"direct": "DIRECT", "proxy": "PROXY"}
	for i := 0; i < 3; i++ {
		if _, err := Compile(rules, outbounds, 16, loader); err != nil {
			t.Fatalf("Compile error: %v", err)
		}
	}
	if got := inner.geoipCalls.Load(); got != 1 {
		t.Fatalf("expected 1 inner call across 3 compiles, got %d", got)
	}

	// The memoized matcher still matches.
	ruleset, err := Compile(rules, outbounds, 16, loader)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	result, _ := ruleset.MatchHost(HostInfoFromIP(netip.MustParseAddr("1.2.3.4")), ProtocolTCP, 443)
	if result.Outbound != "DIRECT" {
		t.Fatalf("expected DIRECT, got %s", result.Outbound)
	}
}
