package domain

// PlanFeature is one line of a plan's feature list.
type PlanFeature struct {
	Text     string `json:"text"`
	Included bool   `json:"included"`
}

// Plan is a subscription tier. Plans are informational only; there is no
// billing behind them.
type Plan struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Price       string        `json:"price"`
	Period      string        `json:"period"`
	Description string        `json:"description"`
	Features    []PlanFeature `json:"features"`
	Popular     bool          `json:"popular,omitempty"`
}

// DefaultPlanID is the plan preselected for new visitors.
const DefaultPlanID = "pro"

// Plans returns the plan catalog. Each call returns a fresh copy.
func Plans() []Plan {
	return []Plan{
		{
			ID:          "free",
			Name:        "Free",
			Price:       "$0",
			Period:      "forever",
			Description: "Perfect for getting started",
			Features: []PlanFeature{
				{Text: "100 AI interactions per month", Included: true},
				{Text: "Basic chat functionality", Included: true},
				{Text: "Standard response time", Included: true},
				{Text: "Email support", Included: true},
				{Text: "Advanced analytics", Included: false},
				{Text: "Custom integrations", Included: false},
				{Text: "Priority support", Included: false},
			},
		},
		{
			ID:          "pro",
			Name:        "Pro",
			Price:       "$19",
			Period:      "per month",
			Description: "For power users and professionals",
			Popular:     true,
			Features: []PlanFeature{
				{Text: "Unlimited AI interactions", Included: true},
				{Text: "Advanced chat features", Included: true},
				{Text: "Priority response time", Included: true},
				{Text: "Priority email support", Included: true},
				{Text: "Advanced analytics", Included: true},
				{Text: "API access", Included: true},
				{Text: "Custom integrations", Included: false},
			},
		},
		{
			ID:          "team",
			Name:        "Team",
			Price:       "$49",
			Period:      "per month",
			Description: "For teams and organizations",
			Features: []PlanFeature{
				{Text: "Everything in Pro", Included: true},
				{Text: "Team collaboration tools", Included: true},
				{Text: "Admin dashboard", Included: true},
				{Text: "Custom integrations", Included: true},
				{Text: "Dedicated support", Included: true},
				{Text: "Custom training", Included: true},
				{Text: "SLA guarantee", Included: true},
			},
		},
	}
}

// FindPlan looks a plan up by ID.
func FindPlan(id string) (Plan, bool) {
	for _, p := range Plans() {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}
