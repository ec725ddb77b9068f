package main

import (
	"flag"
	"fmt"
	"log"
	"net/netip"
	"os"
	"strings"

	"github.com/xxxsen/aclengine/acl"
	"github.com/xxxsen/aclengine/internal/config"
	"github.com/xxxsen/common/logger"
	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", "", "path to YAML configuration file")
	host := flag.String("host", "", "domain name to match")
	ipStr := flag.String("ip", "", "resolved IP to match")
	protoStr := flag.String("proto", "tcp", "protocol: tcp or udp")
	port := flag.Uint("port", 443, "destination port")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		// logger not initialised yet, fallback to stderr
		log.Fatalf("init config failed, err:%v", err)
	}
	logkit := logger.Init(cfg.Log.File, cfg.Log.Level, int(cfg.Log.FileCount),
		int(cfg.Log.FileSize), int(cfg.Log.KeepDays), cfg.Log.Console)
	defer logkit.Sync() //nolint:errcheck

	ruleset, err := buildRuleSet(cfg)
	if err != nil {
		logkit.Fatal("build rule set failed", zap.Error(err))
	}
	logkit.Info("rule set compiled", zap.Int("rule_count", ruleset.RuleCount()))

	query, err := buildQuery(*host, *ipStr)
	if err != nil {
		logkit.Fatal("build query failed", zap.Error(err))
	}
	proto, err := parseProto(*protoStr)
	if err != nil {
		logkit.Fatal("bad protocol", zap.Error(err))
	}
	if *port > 65535 {
		logkit.Fatal("bad port", zap.Uint("port", *port))
	}

	result, matched := ruleset.MatchHost(query, proto, uint16(*port))
	if !matched {
		fmt.Println("no rule matched")
		os.Exit(1)
	}
	if result.HijackIP.IsValid() {
		fmt.Printf("%s (hijack %s)\n", result.Outbound, result.HijackIP)
		return
	}
	fmt.Println(result.Outbound)
}

func buildRuleSet(cfg *config.Config) (*acl.CompiledRuleSet[string], error) {
	var rules []acl.TextRule
	if cfg.RuleFile != "" {
		fileRules, err := acl.ParseRulesFromFile(cfg.RuleFile)
		if err != nil {
			return nil, fmt.Errorf("parse rule file %s: %w", cfg.RuleFile, err)
		}
		rules = append(rules, fileRules...)
	}
	if len(cfg.Rules) > 0 {
		inline, err := acl.ParseRules(strings.Join(cfg.Rules, "\n"))
		if err != nil {
			return nil, fmt.Errorf("parse inline rules: %w", err)
		}
		rules = append(rules, inline...)
	}

	outbounds := make(map[string]string, len(cfg.Outbounds))
	for _, name := range cfg.Outbounds {
		outbounds[name] = name
	}
	return acl.Compile(rules, outbounds, cfg.CacheSize, acl.NilGeoLoader{})
}

func buildQuery(host string, ipStr string) (acl.HostInfo, error) {
	var ipv4, ipv6 netip.Addr
	if ipStr != "" {
		ip, err := netip.ParseAddr(ipStr)
		if err != nil {
			return acl.HostInfo{}, fmt.Errorf("invalid ip %s: %w", ipStr, err)
		}
		if ip.Unmap().Is4() {
			ipv4 = ip.Unmap()
		} else {
			ipv6 = ip
		}
	}
	return acl.NewHostInfo(host, ipv4, ipv6), nil
}

func parseProto(s string) (acl.Protocol, error) {
	switch strings.ToLower(s) {
	case "tcp":
		return acl.ProtocolTCP, nil
	case "udp":
		return acl.ProtocolUDP, nil
	default:
		return acl.ProtocolBoth, fmt.Errorf("unknown protocol: %s", s)
	}
}
