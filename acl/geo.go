package acl

import (
	"context"
	"fmt"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// GeoLoader supplies geo matchers on demand. Databases are loaded lazily:
// the compiler only calls the loader when a rule references geo data, so
// rule sets without geo rules never touch the files. File formats and
// download policy live entirely behind this interface.
type GeoLoader interface {
	LoadGeoIP(countryCode string) (*GeoIPMatcher, error)
	LoadGeoSite(siteName string) (*GeoSiteMatcher, error)
}

// NilGeoLoader fails every load. Compiling a rule set that references geo
// data against it is a compile error.
type NilGeoLoader struct{}

func (NilGeoLoader) LoadGeoIP(countryCode string) (*GeoIPMatcher, error) {
	return nil, fmt.Errorf("geoip %s: %w", countryCode, ErrGeoNotSupported)
}

func (NilGeoLoader) LoadGeoSite(siteName string) (*GeoSiteMatcher, error) {
	return nil, fmt.Errorf("geosite %s: %w", siteName, ErrGeoNotSupported)
}

// CachedGeoLoader memoizes a loader's results and collapses concurrent
// loads of the same key into one call, so rule sets compiled in parallel
// against a shared loader parse each database entry once.
type CachedGeoLoader struct {
	next GeoLoader

	sf      singleflight.Group
	mu      sync.Mutex
	geoip   map[string]*GeoIPMatcher
	geosite map[string]*GeoSiteMatcher
}

// NewCachedGeoLoader wraps a loader with memoization.
func NewCachedGeoLoader(next GeoLoader) *CachedGeoLoader {
	return &CachedGeoLoader{
		next:    next,
		geoip:   make(map[string]*GeoIPMatcher),
		geosite: make(map[string]*GeoSiteMatcher),
	}
}

func (c *CachedGeoLoader) LoadGeoIP(countryCode string) (*GeoIPMatcher, error) {
	v, err, _ := c.sf.Do("geoip:"+countryCode, func() (interface{}, error) {
		c.mu.Lock()
		cached, ok := c.geoip[countryCode]
		c.mu.Unlock()
		if ok {
			return cached, nil
		}
		m, err := c.next.LoadGeoIP(countryCode)
		if err != nil {
			return nil, err
		}
		logutil.GetLogger(context.Background()).Debug("geoip loaded",
			zap.String("country_code", countryCode))
		c.mu.Lock()
		c.geoip[countryCode] = m
		c.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*GeoIPMatcher), nil
}

func (c *CachedGeoLoader) LoadGeoSite(siteName string) (*GeoSiteMatcher, error) {
	v, err, _ := c.sf.Do("geosite:"+siteName, func() (interface{}, error) {
		c.mu.Lock()
		cached, ok := c.geosite[siteName]
		c.mu.Unlock()
		if ok {
			return cached, nil
		}
		m, err := c.next.LoadGeoSite(siteName)
		if err != nil {
			return nil, err
		}
		logutil.GetLogger(context.Background()).Debug("geosite loaded",
			zap.String("site", siteName))
		c.mu.Lock()
		c.geosite[siteName] = m
		c.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*GeoSiteMatcher), nil
}
