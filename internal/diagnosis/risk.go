package diagnosis

// RiskLevel is the discretized malignant-class probability.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Tier thresholds on the class-1 probability. LowRiskMax is inclusive;
// HighRiskMin belongs to High.
const (
	LowRiskMax  = 0.30
	HighRiskMin = 0.70
)

// RiskTier carries the level and the guidance shown with it.
type RiskTier struct {
	Level            RiskLevel `json:"risk_level_en"`
	LabelFR          string    `json:"risk_level_fr"`
	RecommendationFR string    `json:"recommendation_fr"`
	Color            string    `json:"color"`
}

var tiers = map[RiskLevel]RiskTier{
	RiskLow: {
		Level:            RiskLow,
		LabelFR:          "Faible risque",
		RecommendationFR: "Pas d'urgence – suivi standard recommandé",
		Color:            "green",
	},
	RiskMedium: {
		Level:            RiskMedium,
		LabelFR:          "Risque intermédiaire",
		RecommendationFR: "Évaluation complémentaire conseillée rapidement",
		Color:            "orange",
	},
	RiskHigh: {
		Level:            RiskHigh,
		LabelFR:          "Risque élevé",
		RecommendationFR: "Urgence – prise en charge rapide recommandée",
		Color:            "red",
	},
}

// TierFor classifies a malignant-class probability.
func TierFor(r float64) RiskTier {
	switch {
	case r <= LowRiskMax:
		return tiers[RiskLow]
	case r < HighRiskMin:
		return tiers[RiskMedium]
	default:
		return tiers[RiskHigh]
	}
}
