package trip

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

// DateLayout is the calendar date format used for preferences and day plans.
const DateLayout = "2006-01-02"

type TravelStyle string

const (
	StyleCultural   TravelStyle = "cultural"
	StyleAdventure  TravelStyle = "adventure"
	StyleRelaxing   TravelStyle = "relaxing"
	StyleFoodie     TravelStyle = "foodie"
	StyleHistorical TravelStyle = "historical"
	StyleNature     TravelStyle = "nature"
	StyleLuxury     TravelStyle = "luxury"
	StyleBudget     TravelStyle = "budget"
	StyleFamily     TravelStyle = "family"
	StyleCouple     TravelStyle = "couple"
	StyleSolo       TravelStyle = "solo"
	StyleShopping   TravelStyle = "shopping"
	StyleNightlife  TravelStyle = "nightlife"
)

var TravelStyles = []TravelStyle{
	StyleCultural, StyleAdventure, StyleRelaxing, StyleFoodie, StyleHistorical,
	StyleNature, StyleLuxury, StyleBudget, StyleFamily, StyleCouple,
	StyleSolo, StyleShopping, StyleNightlife,
}

// BudgetTier is ordered from cheapest to most expensive.
type BudgetTier int

const (
	BudgetEconomy BudgetTier = iota
	BudgetModerate
	BudgetPremium
	BudgetLuxury
)

var budgetTiers = []struct {
	name        string
	description string
}{
	{"Economy", "Cost-conscious travel"},
	{"Moderate", "Balanced comfort"},
	{"Premium", "Upscale experiences"},
	{"Luxury", "Luxury everything"},
}

func (b BudgetTier) String() string {
	if b < BudgetEconomy || b > BudgetLuxury {
		return fmt.Sprintf("BudgetTier(%d)", int(b))
	}
	return budgetTiers[b].name
}

func (b BudgetTier) Description() string {
	if b < BudgetEconomy || b > BudgetLuxury {
		return ""
	}
	return budgetTiers[b].description
}

// ParseBudgetTier accepts a tier name in any case.
func ParseBudgetTier(s string) (BudgetTier, error) {
	for i, t := range budgetTiers {
		if strings.EqualFold(strings.TrimSpace(s), t.name) {
			return BudgetTier(i), nil
		}
	}
	return BudgetModerate, fmt.Errorf("unknown budget tier %q", s)
}

// Currencies accepted for an exact budget.
var Currencies = []string{"USD", "EUR", "JPY", "VND", "GBP", "AUD"}

type PartySize struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
}

type UserPreferences struct {
	Destination string        `json:"destination"`
	StartDate   string        `json:"startDate"`
	EndDate     string        `json:"endDate"`
	Styles      []TravelStyle `json:"style"`
	Prompt      string        `json:"prompt"`
	PartySize   PartySize     `json:"partySize"`
	Budget      *BudgetTier   `json:"budget,omitempty"`
	ExactBudget float64       `json:"exactBudget,omitempty"`
	Currency    string        `json:"currency,omitempty"`
}

// ValidationError lists every preference field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	parts := lo.Map(e.Fields, func(f FieldError, _ int) string {
		return f.Field + ": " + f.Message
	})
	return "invalid preferences: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

// Validate checks the required fields. It returns a *ValidationError
// or nil.
func (p UserPreferences) Validate() error {
	verr := &ValidationError{}

	if strings.TrimSpace(p.Destination) == "" {
		verr.add("destination", "is required")
	}

	start, startErr := parseDate(p.StartDate)
	end, endErr := parseDate(p.EndDate)
	switch {
	case strings.TrimSpace(p.StartDate) == "":
		verr.add("startDate", "is required")
	case startErr != nil:
		verr.add("startDate", "must be a YYYY-MM-DD date")
	}
	switch {
	case strings.TrimSpace(p.EndDate) == "":
		verr.add("endDate", "is required")
	case endErr != nil:
		verr.add("endDate", "must be a YYYY-MM-DD date")
	}
	if startErr == nil && endErr == nil && end.Before(start) {
		verr.add("endDate", "must not be before startDate")
	}

	if p.PartySize.Adults < 1 {
		verr.add("partySize.adults", "must be at least 1")
	}
	if p.PartySize.Children < 0 {
		verr.add("partySize.children", "must not be negative")
	}

	for _, s := range p.Styles {
		if !lo.Contains(TravelStyles, s) {
			verr.add("style", fmt.Sprintf("unknown travel style %q", s))
		}
	}

	if p.Budget != nil && (*p.Budget < BudgetEconomy || *p.Budget > BudgetLuxury) {
		verr.add("budget", "unknown budget tier")
	}
	if p.ExactBudget < 0 {
		verr.add("exactBudget", "must not be negative")
	}
	if p.ExactBudget > 0 && !lo.Contains(Currencies, strings.ToUpper(p.Currency)) {
		verr.add("currency", "must be one of "+strings.Join(Currencies, ", "))
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// Days returns the inclusive number of days between start and end, or 0
// when either date is invalid.
func (p UserPreferences) Days() int {
	start, err := parseDate(p.StartDate)
	if err != nil {
		return 0
	}
	end, err := parseDate(p.EndDate)
	if err != nil || end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// BudgetTierOrDefault returns the selected tier, Moderate when unset.
func (p UserPreferences) BudgetTierOrDefault() BudgetTier {
	if p.Budget == nil {
		return BudgetModerate
	}
	return *p.Budget
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}
