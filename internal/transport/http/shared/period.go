package shared

import (
	"fmt"
	"strconv"
	"strings"

	"transparencia/internal/domain/registry"
)

// ParsePeriod accepts "YYYY-MM" or "YYYY/MM".
func ParsePeriod(value string) (registry.Period, error) {
	if value == "" {
		return registry.Period{}, nil
	}
	normalized := strings.ReplaceAll(value, "/", "-")
	parts := strings.SplitN(normalized, "-", 2)
	if len(parts) != 2 {
		return registry.Period{}, fmt.Errorf("invalid period %q, expected YYYY-MM", value)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return registry.Period{}, fmt.Errorf("invalid period year %q", parts[0])
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return registry.Period{}, fmt.Errorf("invalid period month %q", parts[1])
	}
	p := registry.Period{Year: year, Month: month}
	if !p.Valid() {
		return registry.Period{}, fmt.Errorf("period %q out of range", value)
	}
	return p, nil
}

// ParseScope reads the from, to, org and roleId query parameters.
func ParseScope(get func(string) string) (registry.Scope, error) {
	from, err := ParsePeriod(get("from"))
	if err != nil {
		return registry.Scope{}, err
	}
	to, err := ParsePeriod(get("to"))
	if err != nil {
		return registry.Scope{}, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return registry.Scope{}, fmt.Errorf("to period precedes from period")
	}
	return registry.Scope{From: from, To: to, Org: get("org"), RoleID: get("roleId")}, nil
}
