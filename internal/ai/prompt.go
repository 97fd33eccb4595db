package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/christopherklint97/travelpal/internal/trip"
)

// UpdateItineraryTool is the only tool the chat model may call.
const UpdateItineraryTool = "update_itinerary"

const generationSystemPrompt = `You are an expert travel agent. You plan realistic, detailed trips with real places that exist today.`

const chatSystemPrompt = `You are a smart travel assistant.
Context: the user is viewing a travel plan you created.
Goal: help refine the plan.

Conversation rules:
1. Be concise in text responses.
2. When the user asks for a change to the schedule, do not explain what you are doing. Call the update_itinerary tool immediately with the FULL updated plan.
3. Only reply with text when the user asks a question (for example "Is it cold?").

Data rules:
1. Always send valid JSON to the tool.
2. Keep addresses and contact info accurate when updating.
3. Keep the ids of events you do not change.`

// PromptOptions tunes the generation request. The zero value is usable.
type PromptOptions struct {
	Language string
	Search   bool
}

// BuildGenerationRequest turns validated preferences into a generation
// request. Validation errors are returned unchanged.
func BuildGenerationRequest(prefs trip.UserPreferences, opts PromptOptions) (Request, error) {
	if err := prefs.Validate(); err != nil {
		return Request{}, err
	}

	req := Request{
		System: generationSystemPrompt,
		Prompt: buildTripPrompt(prefs, opts),
		Search: opts.Search,
	}
	if opts.Search {
		schemaJSON, err := json.MarshalIndent(TripPlanSchema(), "", "  ")
		if err != nil {
			return Request{}, fmt.Errorf("marshaling trip schema: %w", err)
		}
		req.Prompt += fmt.Sprintf("\nReturn ONLY a JSON object matching this schema, with no prose:\n%s\n", schemaJSON)
	} else {
		req.Schema = TripPlanSchema()
	}
	return req, nil
}

func buildTripPrompt(prefs trip.UserPreferences, opts PromptOptions) string {
	lang := opts.Language
	if lang == "" {
		lang = "English"
	}

	styles := "no particular style"
	if len(prefs.Styles) > 0 {
		styles = strings.Join(lo.Map(prefs.Styles, func(s trip.TravelStyle, _ int) string {
			return string(s)
		}), ", ")
	}

	note := strings.TrimSpace(prefs.Prompt)
	if note == "" {
		note = "none"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Plan a detailed trip to %s.\n", strings.TrimSpace(prefs.Destination))
	fmt.Fprintf(&b, "Dates: %s to %s (%d days).\n", prefs.StartDate, prefs.EndDate, prefs.Days())
	fmt.Fprintf(&b, "Styles: %s.\n", styles)
	fmt.Fprintf(&b, "Travelers: %s.\n", partyText(prefs.PartySize))
	fmt.Fprintf(&b, "Budget: %s.\n", budgetText(prefs))
	fmt.Fprintf(&b, "User note: %s.\n", note)
	fmt.Fprintf(&b, "Write all text in %s.\n", lang)
	b.WriteString(`
Requirements:
1. Provide REAL specific addresses for every location.
2. Give every day a complete schedule: breakfast, lunch, dinner and a place to stay.
3. Estimate costs per person in the local currency or USD.
4. Include official websites or phone numbers where possible.
5. Use realistic transport methods and times between consecutive addresses.
6. Generate a unique id for every event.
7. Set every event status to "accepted".
`)
	return b.String()
}

func partyText(p trip.PartySize) string {
	s := fmt.Sprintf("%d adult%s", p.Adults, plural(p.Adults))
	if p.Children > 0 {
		s += fmt.Sprintf(", %d child%s", p.Children, lo.Ternary(p.Children == 1, "", "ren"))
	}
	return s
}

func budgetText(prefs trip.UserPreferences) string {
	if prefs.ExactBudget > 0 {
		return fmt.Sprintf("%.2f %s in total", prefs.ExactBudget, strings.ToUpper(prefs.Currency))
	}
	tier := prefs.BudgetTierOrDefault()
	return fmt.Sprintf("%s (%s)", tier, tier.Description())
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// ChatSystemInstruction is the system prompt of every plan chat.
func ChatSystemInstruction() string {
	return chatSystemPrompt
}

// SeedHistory is the synthetic transcript a chat starts from: the original
// request and a model turn holding the plan it produced.
func SeedHistory(prompt string, plan *trip.TripPlan) ([]trip.ChatMessage, error) {
	data, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("marshaling plan: %w", err)
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = "Plan a trip for me."
	}
	return []trip.ChatMessage{
		{Role: trip.RoleUser, Text: prompt},
		{Role: trip.RoleModel, Text: "Here is the plan I just generated for you:\n" + string(data)},
	}, nil
}

// RegeneratePrompt asks the model to replace the rejected events.
func RegeneratePrompt(rejectedIDs []string) string {
	return fmt.Sprintf(`The user rejected the events with ids: %s.
Replace them with new activities of a similar kind at a similar time.
Keep every other event exactly as it is.
Include a specific address, price and contact details for the new events.
Call %s with the full updated plan.`, strings.Join(rejectedIDs, ", "), UpdateItineraryTool)
}

// UpdateItinerary declares the tool the model calls with a full new plan.
func UpdateItinerary() Tool {
	return Tool{
		Name:        UpdateItineraryTool,
		Description: "Call this ONLY to modify, add or remove events in the travel plan. Pass the FULL updated trip plan.",
		Parameters:  TripPlanSchema(),
	}
}
