package ratelimit

import "strings"

// Match returns the first rule covering the request, or nil.
func Match(path, method string, rules []Rule) *Rule {
	for i := range rules {
		rule := &rules[i]
		if rule.Method != method {
			continue
		}
		if rule.Path == path || (strings.HasSuffix(rule.Path, "/") && strings.HasPrefix(path, rule.Path)) {
			if rule.Suffix == "" || strings.HasSuffix(path, rule.Suffix) {
				return rule
			}
		}
	}
	return nil
}

// bucketKey is one bucket per client and rule, so /markers/1/goto and
// /markers/2/goto draw on the same tokens.
func bucketKey(clientID string, rule *Rule) string {
	if rule == nil {
		return clientID + ":default"
	}
	return clientID + ":" + rule.Method + " " + rule.Path + "*" + rule.Suffix
}
