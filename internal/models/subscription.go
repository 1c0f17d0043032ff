package models

import "time"

const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// Plan describes a subscription tier. Zero limits mean unlimited.
type Plan struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Price            float64  `json:"price"`
	AppointmentLimit int      `json:"appointment_limit"`
	StaffLimit       int      `json:"staff_limit"`
	CanReplyReviews  bool     `json:"can_reply_reviews"`
	CanExportReports bool     `json:"can_export_reports"`
	Features         []string `json:"features"`
}

type Subscription struct {
	ShopID          string     `json:"shop_id"`
	PlanID          string     `json:"plan_id"`
	Status          string     `json:"status"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	NextBillingDate *time.Time `json:"next_billing_date,omitempty"`
}

func Plans() []Plan {
	return []Plan{
		{
			ID:               PlanFree,
			Name:             "Plano Grátis",
			Price:            0,
			AppointmentLimit: 20,
			StaffLimit:       1,
			Features: []string{
				"Funcionalidades essenciais para começar",
				"Página online da barbearia",
				"Gestão de agendamentos e clientes",
			},
		},
		{
			ID:               PlanPro,
			Name:             "Plano Pro",
			Price:            49.90,
			AppointmentLimit: 0,
			StaffLimit:       5,
			CanReplyReviews:  true,
			CanExportReports: true,
			Features: []string{
				"Tudo do plano Grátis, e mais:",
				"Destaque PRO nas buscas",
				"Relatórios e análises avançadas",
				"Suporte prioritário via WhatsApp",
			},
		},
	}
}

func PlanByID(id string) (Plan, bool) {
	for _, p := range Plans() {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// PlanFor resolves the effective plan of a subscription; inactive or missing subscriptions fall back to free.
func PlanFor(sub *Subscription) Plan {
	free, _ := PlanByID(PlanFree)
	if sub == nil || sub.Status != SubscriptionActive {
		return free
	}
	if p, ok := PlanByID(sub.PlanID); ok {
		return p
	}
	return free
}

// ShopSearchResult is a shop card in the public listing.
type ShopSearchResult struct {
	Shop
	AverageRating    float64          `json:"average_rating"`
	ReviewCount      int              `json:"review_count"`
	SampleServices   []ServiceSummary `json:"sample_services"`
	SubscriptionTier string           `json:"subscription_tier"`
}
