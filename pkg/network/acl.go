package network

import (
	"fmt"
	"strconv"
	"strings"
)

// ACLAction is the verdict applied to IDs that match an ACL's ranges
type ACLAction int

const (
	ACLPermit ACLAction = iota
	ACLDeny
)

func (a ACLAction) String() string {
	if a == ACLDeny {
		return "DENY"
	}
	return "PERMIT"
}

// IDRange is an inclusive range of 16-bit DIS identifiers
type IDRange struct {
	Start uint16
	End   uint16
}

func (r IDRange) String() string {
	switch {
	case r.Start == 0 && r.End == 0xFFFF:
		return "ALL"
	case r.Start == r.End:
		return strconv.Itoa(int(r.Start))
	default:
		return fmt.Sprintf("%d-%d", r.Start, r.End)
	}
}

// Contains reports whether id falls inside the range
func (r IDRange) Contains(id uint16) bool {
	return id >= r.Start && id <= r.End
}

// ACL filters sources by site (or application) number
type ACL struct {
	Action ACLAction
	Ranges []IDRange
}

func (a *ACL) String() string {
	parts := make([]string, 0, len(a.Ranges))
	for _, r := range a.Ranges {
		parts = append(parts, r.String())
	}
	return a.Action.String() + ":" + strings.Join(parts, ",")
}

// Allows reports whether id passes the ACL. A nil ACL allows everything.
func (a *ACL) Allows(id uint16) bool {
	if a == nil {
		return true
	}
	matched := false
	for _, r := range a.Ranges {
		if r.Contains(id) {
			matched = true
			break
		}
	}
	if a.Action == ACLPermit {
		return matched
	}
	return !matched
}

// ParseACL parses "ACTION:RANGE[,RANGE]...", e.g. "PERMIT:ALL", "DENY:7",
// "PERMIT:1-10,42". An empty string yields a nil ACL.
func ParseACL(s string) (*ACL, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	actionStr, rangesStr, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("invalid ACL %q: missing colon", s)
	}

	acl := &ACL{}
	switch strings.ToUpper(strings.TrimSpace(actionStr)) {
	case "PERMIT":
		acl.Action = ACLPermit
	case "DENY":
		acl.Action = ACLDeny
	default:
		return nil, fmt.Errorf("invalid ACL action %q", actionStr)
	}

	for _, part := range strings.Split(rangesStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		r, err := parseIDRange(part)
		if err != nil {
			return nil, err
		}
		acl.Ranges = append(acl.Ranges, r)
	}

	if len(acl.Ranges) == 0 {
		return nil, fmt.Errorf("invalid ACL %q: no ranges", s)
	}
	return acl, nil
}

func parseIDRange(s string) (IDRange, error) {
	if strings.EqualFold(s, "ALL") {
		return IDRange{Start: 0, End: 0xFFFF}, nil
	}

	startStr, endStr, isRange := strings.Cut(s, "-")
	start, err := strconv.ParseUint(strings.TrimSpace(startStr), 10, 16)
	if err != nil {
		return IDRange{}, fmt.Errorf("invalid ACL id %q", startStr)
	}
	if !isRange {
		return IDRange{Start: uint16(start), End: uint16(start)}, nil
	}

	end, err := strconv.ParseUint(strings.TrimSpace(endStr), 10, 16)
	if err != nil {
		return IDRange{}, fmt.Errorf("invalid ACL range end %q", endStr)
	}
	if start > end {
		return IDRange{}, fmt.Errorf("invalid ACL range %q: start > end", s)
	}
	return IDRange{Start: uint16(start), End: uint16(end)}, nil
}
