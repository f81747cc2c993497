package domain

// Agent personas. A persona scopes both the document tags searched during
// retrieval and the tool subset the responding loop may invoke.
const (
	AgentMenu     = "menu"
	AgentRecipe   = "recipe"
	AgentHaccp    = "haccp"
	AgentPurchase = "purchase"
	AgentDemand   = "demand"
	AgentGeneral  = "general"
)

const IntentGeneral = "general"

// ClarificationThreshold is the confidence floor below which a classified
// intent should be treated as ambiguous.
const ClarificationThreshold = 0.7

// UserContext carries the contextual fields handed to intent classification.
type UserContext struct {
	CurrentScreen string
	UserRole      Role
	SiteName      string
	SiteID        string
}

type IntentResult struct {
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Entities   map[string]any `json:"entities"`
	Agent      string         `json:"agent"`
}

func (r IntentResult) NeedsClarification() bool {
	return r.Confidence < ClarificationThreshold
}

// intentAgents is the fixed total intent→persona mapping; anything it does
// not know about resolves to the general persona.
var intentAgents = map[string]string{
	"menu_generate":     AgentMenu,
	"menu_validate":     AgentMenu,
	"recipe_search":     AgentRecipe,
	"recipe_scale":      AgentRecipe,
	"work_order":        AgentRecipe,
	"haccp_checklist":   AgentHaccp,
	"haccp_record":      AgentHaccp,
	"haccp_incident":    AgentHaccp,
	"dashboard":         AgentGeneral,
	"settings":          AgentGeneral,
	"general":           AgentGeneral,
	"purchase_bom":      AgentPurchase,
	"purchase_order":    AgentPurchase,
	"purchase_risk":     AgentPurchase,
	"inventory_check":   AgentPurchase,
	"inventory_receive": AgentPurchase,
	"forecast_demand":   AgentDemand,
	"record_actual":     AgentDemand,
	"optimize_cost":     AgentDemand,
}

func AgentForIntent(intent string) string {
	if agent, ok := intentAgents[intent]; ok {
		return agent
	}
	return AgentGeneral
}

// DefaultIntentResult is the soft-fail value: classification is advisory, so
// a wrong-but-present default keeps the pipeline live.
func DefaultIntentResult() IntentResult {
	return IntentResult{
		Intent:     IntentGeneral,
		Confidence: 0.3,
		Entities:   map[string]any{},
		Agent:      AgentGeneral,
	}
}
