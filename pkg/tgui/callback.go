package tgui

import "strings"

// Data formats inline callback data as "ns:action".
// Payloads are short enumerated tokens; no escaping is performed.
func Data(ns, action string) string {
	return strings.TrimSpace(ns) + ":" + strings.TrimSpace(action)
}

// Split parses "ns:action" callback data. It returns ok=false when the
// data does not contain a namespace separator.
func Split(data string) (ns, action string, ok bool) {
	data = strings.TrimSpace(data)
	// Telegram may prefix callback data with \f.
	data = strings.TrimPrefix(data, "\f")
	i := strings.IndexByte(data, ':')
	if i <= 0 {
		return "", "", false
	}
	return data[:i], data[i+1:], true
}
