package events

import "strings"

// serviceTagPrefix marks free-form tags that carry a service identifier.
const serviceTagPrefix = "service:"

// Extract returns the service identifiers carried by one event record.
// The nested structured service field wins outright when present; only
// when it is absent or empty are the tags scanned, and then every matching
// tag contributes. Empty extracted values are discarded.
func Extract(record Event) []string {
	if svc := record.Attributes.Attributes.Service; svc != "" {
		return []string{svc}
	}

	var services []string
	for _, tag := range record.Attributes.Tags {
		if !strings.HasPrefix(tag, serviceTagPrefix) {
			continue
		}
		if name := tag[len(serviceTagPrefix):]; name != "" {
			services = append(services, name)
		}
	}
	return services
}
