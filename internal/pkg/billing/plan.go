package billing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/wandernook/wandernook/internal/pkg/config"
)

type Cycle string

const (
	CycleMonthly Cycle = "monthly"
	CycleYearly  Cycle = "yearly"
)

// PlanConfig is a fully resolved autopay plan: static pricing plus the
// deployment's gateway plan and commerce variant.
type PlanConfig struct {
	ID               string `json:"id"`
	DisplayName      string `json:"displayName"`
	AmountInr        int64  `json:"amountInr"`
	AmountPaise      int64  `json:"amountPaise"`
	TotalCount       int    `json:"totalCount"`
	Cycle            Cycle  `json:"cycle"`
	RazorpayPlanID   string `json:"razorpayPlanId"`
	ShopifyVariantID string `json:"shopifyVariantId"`
}

// planDefinitions is ordered; reverse lookups return the first match.
var planDefinitions = []PlanConfig{
	{
		ID:          config.PlanMonthlyAutopay,
		DisplayName: "Monthly Autopay",
		AmountInr:   200,
		AmountPaise: 20000,
		TotalCount:  36,
		Cycle:       CycleMonthly,
	},
	{
		ID:          config.PlanAnnualAutopay,
		DisplayName: "Annual Autopay",
		AmountInr:   2300,
		AmountPaise: 230000,
		TotalCount:  5,
		Cycle:       CycleYearly,
	},
}

var variantGIDPattern = regexp.MustCompile(`^gid://shopify/ProductVariant/(\d+)$`)

type PlanRegistry struct {
	mappings map[string]config.PlanMapping
}

func NewPlanRegistry(mappings map[string]config.PlanMapping) *PlanRegistry {
	m := make(map[string]config.PlanMapping, len(mappings))
	for id, mapping := range mappings {
		m[id] = config.PlanMapping{
			RazorpayPlanID:   strings.TrimSpace(mapping.RazorpayPlanID),
			ShopifyVariantID: strings.TrimSpace(mapping.ShopifyVariantID),
		}
	}
	return &PlanRegistry{mappings: m}
}

// IDs returns the supported plan ids in lookup order.
func (r *PlanRegistry) IDs() []string {
	ids := make([]string, 0, len(planDefinitions))
	for _, def := range planDefinitions {
		ids = append(ids, def.ID)
	}
	return ids
}

// Resolve returns the plan for id. An unknown id yields (nil, nil); a known
// plan without its gateway plan or commerce variant mapping is a
// *ConfigurationError.
func (r *PlanRegistry) Resolve(id string) (*PlanConfig, error) {
	for _, def := range planDefinitions {
		if def.ID != id {
			continue
		}
		mapping := r.mappings[id]
		envKey := envKeyFor(id)
		if mapping.RazorpayPlanID == "" {
			return nil, &ConfigurationError{
				Message: fmt.Sprintf("Missing Razorpay plan mapping for %s. Set RAZORPAY_%s_PLAN_ID in env.", id, envKey),
			}
		}
		if mapping.ShopifyVariantID == "" {
			return nil, &ConfigurationError{
				Message: fmt.Sprintf("Missing Shopify variant mapping for %s. Set SHOPIFY_%s_VARIANT_ID in env.", id, envKey),
			}
		}
		plan := def
		plan.RazorpayPlanID = mapping.RazorpayPlanID
		plan.ShopifyVariantID = mapping.ShopifyVariantID
		return &plan, nil
	}
	return nil, nil
}

// ResolveByRazorpayPlanID finds the configured plan whose gateway plan id
// matches. Unconfigured plans are skipped.
func (r *PlanRegistry) ResolveByRazorpayPlanID(razorpayPlanID string) *PlanConfig {
	target := strings.TrimSpace(razorpayPlanID)
	if target == "" {
		return nil
	}
	for _, def := range planDefinitions {
		plan, err := r.Resolve(def.ID)
		if err != nil || plan == nil {
			continue
		}
		if plan.RazorpayPlanID == target {
			return plan
		}
	}
	return nil
}

// ParseShopifyVariantID accepts either a GraphQL gid or a bare numeric id.
func ParseShopifyVariantID(variant string) (int64, bool) {
	v := strings.TrimSpace(variant)
	if m := variantGIDPattern.FindStringSubmatch(v); m != nil {
		v = m[1]
	}
	if v == "" || strings.TrimLeft(v, "0123456789") != "" {
		return 0, false
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func envKeyFor(planID string) string {
	if planID == config.PlanMonthlyAutopay {
		return "MONTHLY"
	}
	return "ANNUAL"
}
