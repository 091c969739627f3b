package scoring

// Tier names.
const (
	TierHot  = "hot"
	TierWarm = "warm"
	TierCold = "cold"
)

// Tier is the priority class a score falls into.
type Tier struct {
	Name       string `json:"tier"`
	Priority   string `json:"priority"`
	SLAMinutes int    `json:"slaMinutes"`
}

// Classify maps a score to its tier. Thresholds are inclusive lower bounds.
func Classify(score int) Tier {
	switch {
	case score >= 80:
		return Tier{Name: TierHot, Priority: "high", SLAMinutes: 5}
	case score >= 60:
		return Tier{Name: TierWarm, Priority: "medium", SLAMinutes: 30}
	default:
		return Tier{Name: TierCold, Priority: "low", SLAMinutes: 120}
	}
}
