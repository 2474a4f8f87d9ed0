package recommend

const (
	highImpactThreshold   = 25.0
	mediumImpactThreshold = 10.0
)

/*
ImpactBand maps an estimated improvement percentage to its presentation
band. It is a pure function of the percentage and nothing else.
*/
func ImpactBand(improvementPct float64) string {
	switch {
	case improvementPct >= highImpactThreshold:
		return "High"
	case improvementPct >= mediumImpactThreshold:
		return "Medium"
	default:
		return "Low"
	}
}
