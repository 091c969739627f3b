package domain

// Status is a lead's position in the qualification funnel.
type Status string

const (
	StatusNew       Status = "new"
	StatusEnriched  Status = "enriched"
	StatusQualified Status = "qualified"
	StatusContacted Status = "contacted"
	StatusConverted Status = "converted"
	StatusRejected  Status = "rejected"
)

var funnelRank = map[Status]int{
	StatusNew:       0,
	StatusEnriched:  1,
	StatusQualified: 2,
	StatusContacted: 3,
	StatusConverted: 4,
}

// OpenStatuses are the statuses that count towards a user's workload.
var OpenStatuses = []Status{StatusNew, StatusEnriched, StatusQualified, StatusContacted}

func IsKnownStatus(s Status) bool {
	if s == StatusRejected {
		return true
	}
	_, ok := funnelRank[s]
	return ok
}

// IsOpen reports whether the lead is still being worked.
func (s Status) IsOpen() bool {
	for _, open := range OpenStatuses {
		if s == open {
			return true
		}
	}
	return false
}

// CanTransition enforces the funnel order. Moves only go forward; rejected is
// reachable from every other status and is terminal.
func CanTransition(from, to Status) bool {
	if from == StatusRejected || from == to {
		return false
	}
	if to == StatusRejected {
		return IsKnownStatus(from)
	}
	fromRank, okFrom := funnelRank[from]
	toRank, okTo := funnelRank[to]
	if !okFrom || !okTo {
		return false
	}
	return toRank > fromRank
}
