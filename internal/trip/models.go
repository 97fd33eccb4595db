package trip

// EventType classifies an itinerary event.
type EventType string

const (
	TypeActivity  EventType = "activity"
	TypeFood      EventType = "food"
	TypeLodging   EventType = "lodging"
	TypeTransport EventType = "transport"
)

// EventTypes lists every valid EventType.
var EventTypes = []EventType{TypeActivity, TypeFood, TypeLodging, TypeTransport}

// EventStatus is set by the user after generation, independent of the model.
type EventStatus string

const (
	StatusAccepted EventStatus = "accepted"
	StatusRejected EventStatus = "rejected"
	StatusPending  EventStatus = "pending"
)

// EventStatuses lists every valid EventStatus.
var EventStatuses = []EventStatus{StatusAccepted, StatusRejected, StatusPending}

type ItineraryEvent struct {
	ID                string      `json:"id" jsonschema:"description=Unique identifier for the event"`
	Time              string      `json:"time" jsonschema:"description=Start time of day in HH:mm (24h)"`
	EndTime           string      `json:"endTime,omitempty" jsonschema:"description=Optional end time in HH:mm (24h)"`
	Activity          string      `json:"activity" jsonschema:"description=Short title of the activity"`
	LocationName      string      `json:"locationName" jsonschema:"description=Name of the place or venue"`
	Address           string      `json:"address,omitempty" jsonschema:"description=Real specific street address usable for map navigation"`
	PhoneNumber       string      `json:"phoneNumber,omitempty" jsonschema:"description=Contact phone number if available"`
	Website           string      `json:"website,omitempty" jsonschema:"description=Official website URL if available"`
	BookingLink       string      `json:"bookingLink,omitempty" jsonschema:"description=Link where the place can be booked"`
	Description       string      `json:"description" jsonschema:"description=Two sentences on why this place was chosen"`
	CostEstimate      float64     `json:"costEstimate" jsonschema:"description=Estimated cost per person (numeric only),minimum=0"`
	Currency          string      `json:"currency" jsonschema:"description=Currency code such as USD or VND"`
	TransportMethod   string      `json:"transportMethod" jsonschema:"description=How to get here from the previous location"`
	TransportDuration string      `json:"transportDuration" jsonschema:"description=Estimated travel time from the previous location"`
	Type              EventType   `json:"type" jsonschema:"enum=activity,enum=food,enum=lodging,enum=transport"`
	Status            EventStatus `json:"status" jsonschema:"enum=accepted,enum=rejected,enum=pending"`
}

type DayPlan struct {
	Day    int              `json:"day" jsonschema:"description=Day ordinal starting at 1"`
	Date   string           `json:"date" jsonschema:"description=Calendar date in YYYY-MM-DD"`
	Theme  string           `json:"theme" jsonschema:"description=Theme of the day"`
	Events []ItineraryEvent `json:"events"`
}

type TripStats struct {
	TotalCost      float64 `json:"totalCost" jsonschema:"minimum=0"`
	Currency       string  `json:"currency"`
	TotalEvents    int     `json:"totalEvents"`
	WeatherSummary string  `json:"weatherSummary" jsonschema:"description=Expected weather for the travel dates"`
	DurationDays   int     `json:"durationDays" jsonschema:"minimum=1"`
}

// TripPlan is the canonical itinerary. It is the single source of truth
// on the client; every edit replaces it wholesale.
type TripPlan struct {
	Summary   string    `json:"summary" jsonschema:"description=A short engaging summary of the trip"`
	Tips      string    `json:"tips" jsonschema:"description=Three essential tips for this trip as sentences separated by periods"`
	Stats     TripStats `json:"stats"`
	Itinerary []DayPlan `json:"itinerary"`
}

// IsEmpty reports whether the plan has no days at all.
func (p *TripPlan) IsEmpty() bool {
	return p == nil || len(p.Itinerary) == 0
}

type ChatRole string

const (
	RoleUser  ChatRole = "user"
	RoleModel ChatRole = "model"
)

type ChatMessage struct {
	Role         ChatRole `json:"role"`
	Text         string   `json:"text"`
	IsToolOutput bool     `json:"isToolOutput,omitempty"`
}
