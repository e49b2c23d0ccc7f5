package eventbus

import (
	"fmt"
	"strings"
)

func streamNameFor(prefix, eventType string) string {
	return nameFor(prefix, "events", eventType)
}

func dlqStreamName(prefix, eventType string) string {
	return nameFor(prefix, "dlq", eventType)
}

func groupNameFor(prefix, eventType string) string {
	return nameFor(prefix, "group", eventType)
}

func nameFor(prefix, kind, eventType string) string {
	name := fmt.Sprintf("%s:%s", kind, strings.ToLower(eventType))
	if prefix == "" {
		return name
	}
	return prefix + ":" + name
}
