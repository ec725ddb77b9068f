package acl

import "testing"

func TestDomainEntryKinds(t *testing.T) {
	plain := NewPlainEntry("google")
	if !plain.matchName("google.com") || !plain.matchName("mail.google.co.uk") {
		t.Fatal("plain entry should match substrings")
	}
	if plain.matchName("example.com") {
		t.Fatal("plain entry should not match unrelated names")
	}

	full := NewFullEntry("google.com")
	if !full.matchName("google.com") || full.matchName("www.google.com") {
		t.Fatal("full entry matches only the exact name")
	}

	root := NewRootEntry("google.com")
	if !root.matchName("google.com") || !root.matchName("www.google.com") {
		t.Fatal("root entry matches base and subdomains")
	}
	if root.matchName("google.co.uk") {
		t.Fatal("root entry should not match different TLDs")
	}

	re, err := NewRegexEntry(`^[a-z]+\.google\.com$`)
	if err != nil {
		t.Fatalf("NewRegexEntry error: %v", err)
	}
	if !re.matchName("www.google.com") || re.matchName("www.sub.google.com") {
		t.Fatal("regex entry semantics broken")
	}
}

func TestNewRegexEntryInvalid(t *testing.T) {
	if _, err := NewRegexEntry("["); err == nil {
		t.Fatal("expected regex compile error")
	}
}

func TestGeoSiteMatcherHybrid(t *testing.T) {
	entries := []*DomainEntry{
		NewRootEntry("google.com"),
		NewRootEntry("youtube.com"),
		NewFullEntry("googleapis.com"),
		NewPlainEntry("facebook"),
	}
	re, err := NewRegexEntry(`.*\.twitter\.com$`)
	if err != nil {
		t.Fatalf("NewRegexEntry error: %v", err)
	}
	entries = append(entries, re)

	m := NewGeoSiteMatcher("social", entries, nil)
	if m.SiteName() != "social" {
		t.Fatalf("unexpected site name: %s", m.SiteName())
	}

	tests := []struct {
		name    string
		matched bool
	}{
		// Root/full entries through the trie.
		{"google.com", true},
		{"www.google.com", true},
		{"youtube.com", true},
		{"m.youtube.com", true},
		{"googleapis.com", true},
		{"www.googleapis.com", false},
		// Plain/regex entries through the fallback scan.
		{"facebook.com", true},
		{"www.facebook.com", true},
		{"api.twitter.com", true},
		{"twitter.com", false},
		{"example.com", false},
	}
	for _, tc := range tests {
		if got := m.Matches(HostInfoFromName(tc.name)); got != tc.matched {
			t.Errorf("Matches(%s) = %t, want %t", tc.name, got, tc.matched)
		}
	}

	if m.Matches(HostInfo{}) {
		t.Fatal("empty host name must not match")
	}
}

func TestGeoSiteMatcherAttributeFilter(t *testing.T) {
	entries := []*DomainEntry{
		NewRootEntry("google.com").WithAttribute("cn", ""),
		NewRootEntry("google.cn"),
		NewRootEntry("netflix.com").WithAttribute("region", "us"),
	}

	// Bare attribute: only entries carrying it survive.
	m := NewGeoSiteMatcher("google", entries, map[string]string{"cn": ""})
	if !m.Matches(HostInfoFromName("google.com")) {
		t.Fatal("attribute-tagged entry should survive the filter")
	}
	if m.Matches(HostInfoFromName("google.cn")) {
		t.Fatal("untagged entry should be filtered out")
	}

	// Valued attribute must match the value.
	m = NewGeoSiteMatcher("google", entries, map[string]string{"region": "us"})
	if !m.Matches(HostInfoFromName("netflix.com")) {
		t.Fatal("matching attribute value should survive")
	}
	m = NewGeoSiteMatcher("google", entries, map[string]string{"region": "eu"})
	if m.Matches(HostInfoFromName("netflix.com")) {
		t.Fatal("mismatched attribute value should be filtered out")
	}
}

func TestGeoSiteMatcherEmpty(t *testing.T) {
	m := NewGeoSiteMatcher("empty", nil, nil)
	if m.Matches(HostInfoFromName("google.com")) {
		t.Fatal("empty matcher should not match")
	}
}

func TestParseGeoSitePattern(t *testing.T) {
	name, attrs := ParseGeoSitePattern("google@cn")
	if name != "google" {
		t.Fatalf("unexpected name: %s", name)
	}
	if v, ok := attrs["cn"]; !ok || v != "" {
		t.Fatalf("expected bare cn attribute, got %+v", attrs)
	}

	name, attrs = ParseGeoSitePattern("Netflix@region=us@ads")
	if name != "netflix" {
		t.Fatalf("unexpected name: %s", name)
	}
	if attrs["region"] != "us" {
		t.Fatalf("expected region=us, got %+v", attrs)
	}
	if _, ok := attrs["ads"]; !ok {
		t.Fatalf("expected ads attribute, got %+v", attrs)
	}

	name, attrs = ParseGeoSitePattern("plain")
	if name != "plain" || len(attrs) != 0 {
		t.Fatalf("unexpected result: %s %+v", name, attrs)
	}
}
