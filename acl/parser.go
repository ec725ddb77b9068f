package acl

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Rule line shape: outbound(address[, protoPort][, hijackAddress])
var rulePattern = regexp.MustCompile(`^(\w+)\s*\(([^,]+)(?:,\s*([^,]+))?(?:,\s*([^,]+))?\)$`)

// ParseRules parses ACL rule text into TextRules. Comments start with '#'
// and run to end of line; blank lines are skipped. A `file: <path>`
// directive splices in rules parsed from an external file.
//
// Parsing keeps going past bad lines; the returned error is a ParseErrors
// carrying every failure, and any failure invalidates the whole set.
func ParseRules(text string) ([]TextRule, error) {
	var rules []TextRule
	var errs ParseErrors

	for lineIdx, line := range strings.Split(text, "\n") {
		lineNum := lineIdx + 1

		if pos := strings.IndexByte(line, '#'); pos >= 0 {
			line = line[:pos]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if path, ok := strings.CutPrefix(line, "file:"); ok {
			included, err := ParseRulesFromFile(strings.TrimSpace(path))
			if err != nil {
				errs = append(errs, &ParseError{Line: lineNum, Message: err.Error()})
				continue
			}
			rules = append(rules, included...)
			continue
		}

		rule, err := parseSingleRule(line, lineNum)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rules = append(rules, rule)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return rules, nil
}

// ParseRulesFromFile reads and parses a rule file.
func ParseRulesFromFile(path string) ([]TextRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file %s: %w", path, err)
	}
	return ParseRules(string(data))
}

func parseSingleRule(line string, lineNum int) (TextRule, *ParseError) {
	captures := rulePattern.FindStringSubmatch(line)
	if captures == nil {
		return TextRule{}, &ParseError{Line: lineNum, Message: fmt.Sprintf("invalid rule format: %s", line)}
	}
	rule := TextRule{
		Outbound:      captures[1],
		Address:       strings.TrimSpace(captures[2]),
		ProtoPort:     strings.TrimSpace(captures[3]),
		HijackAddress: strings.TrimSpace(captures[4]),
		LineNum:       lineNum,
	}
	// Validate the optional clauses here so the whole file reports at once.
	if rule.ProtoPort != "" {
		if _, _, _, err := parseProtoPort(rule.ProtoPort); err != nil {
			return TextRule{}, &ParseError{Line: lineNum, Message: err.Error()}
		}
	}
	return rule, nil
}

// parseProtoPort parses a protocol/port clause: "tcp/443", "udp/53",
// "*/80-90", "tcp/*".
func parseProtoPort(spec string) (Protocol, uint16, uint16, error) {
	spec = strings.ToLower(strings.TrimSpace(spec))

	parts := strings.Split(spec, "/")
	if len(parts) != 2 {
		return ProtocolBoth, 0, 0, fmt.Errorf("invalid protocol/port: %s", spec)
	}

	var proto Protocol
	switch parts[0] {
	case "tcp":
		proto = ProtocolTCP
	case "udp":
		proto = ProtocolUDP
	case "*":
		proto = ProtocolBoth
	default:
		return ProtocolBoth, 0, 0, fmt.Errorf("unknown protocol: %s", parts[0])
	}

	portSpec := parts[1]
	if portSpec == "*" {
		return proto, 0, 65535, nil
	}
	if dash := strings.IndexByte(portSpec, '-'); dash >= 0 {
		start, err := parsePort(portSpec[:dash])
		if err != nil {
			return ProtocolBoth, 0, 0, fmt.Errorf("invalid port: %s", portSpec)
		}
		end, err := parsePort(portSpec[dash+1:])
		if err != nil {
			return ProtocolBoth, 0, 0, fmt.Errorf("invalid port: %s", portSpec)
		}
		if start > end {
			return ProtocolBoth, 0, 0, fmt.Errorf("invalid port range: %d > %d", start, end)
		}
		return proto, start, end, nil
	}
	port, err := parsePort(portSpec)
	if err != nil {
		return ProtocolBoth, 0, 0, fmt.Errorf("invalid port: %s", portSpec)
	}
	return proto, port, port, nil
}

func parsePort(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}
