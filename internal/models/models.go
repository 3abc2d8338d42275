package models

import (
	"encoding/json"
	"time"
)

type Category string

const (
	CategoryVilla     Category = "villa"
	CategoryApartment Category = "apartment"
	CategoryLand      Category = "land"
	CategoryOffice    Category = "office"
	CategoryWarehouse Category = "warehouse"
	CategoryShop      Category = "shop"
	CategoryBuilding  Category = "building"
)

type CategoryGroup string

const (
	GroupResidential CategoryGroup = "residential"
	GroupCommercial  CategoryGroup = "commercial"
	GroupLand        CategoryGroup = "land"
)

// categoryGroups is the single place a category is registered. A category
// missing from this table is not valid.
var categoryGroups = map[Category]CategoryGroup{
	CategoryVilla:     GroupResidential,
	CategoryApartment: GroupResidential,
	CategoryBuilding:  GroupResidential,
	CategoryOffice:    GroupCommercial,
	CategoryWarehouse: GroupCommercial,
	CategoryShop:      GroupCommercial,
	CategoryLand:      GroupLand,
}

var categoryLabels = map[Category]string{
	CategoryVilla:     "Villas",
	CategoryApartment: "Apartments",
	CategoryLand:      "Land plots",
	CategoryOffice:    "Offices",
	CategoryWarehouse: "Warehouses",
	CategoryShop:      "Shops",
	CategoryBuilding:  "Buildings",
}

func (c Category) Valid() bool {
	_, ok := categoryGroups[c]
	return ok
}

func (c Category) Group() CategoryGroup {
	return categoryGroups[c]
}

func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

type PropertyStatus string

const (
	PropertyAvailable     PropertyStatus = "available"
	PropertySold          PropertyStatus = "sold"
	PropertyRented        PropertyStatus = "rented"
	PropertyUnderContract PropertyStatus = "under_contract"
)

type ClientStatus string

const (
	ClientActive    ClientStatus = "active"
	ClientInactive  ClientStatus = "inactive"
	ClientConverted ClientStatus = "converted"
	ClientLost      ClientStatus = "lost"
)

type Client struct {
	ID               string       `json:"id" validate:"required"`
	Name             string       `json:"name"`
	Phone            string       `json:"phone,omitempty"`
	BudgetMin        *float64     `json:"budget_min,omitempty"`
	BudgetMax        *float64     `json:"budget_max,omitempty"`
	PreferredAreas   []string     `json:"preferred_areas"`
	Categories       []Category   `json:"categories"`
	AreaMin          *float64     `json:"area_min,omitempty"`
	AreaMax          *float64     `json:"area_max,omitempty"`
	BedroomsMin      *int         `json:"bedrooms_min,omitempty"`
	BathroomsMin     *int         `json:"bathrooms_min,omitempty"`
	UrgencyLevel     int          `json:"urgency_level" validate:"min=1,max=5"`
	LastContactAt    *time.Time   `json:"last_contact_at,omitempty"`
	ContactFrequency int          `json:"contact_frequency" validate:"min=0"`
	InteractionScore float64      `json:"interaction_score" validate:"min=0,max=1"`
	Status           ClientStatus `json:"status" validate:"required,oneof=active inactive converted lost"`
	AssignedBrokerID *string      `json:"assigned_broker_id,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// PrimaryArea is the first preferred area, or "" when the client has none.
func (c Client) PrimaryArea() string {
	if len(c.PreferredAreas) == 0 {
		return ""
	}
	return c.PreferredAreas[0]
}

type Property struct {
	ID        string         `json:"id" validate:"required"`
	Title     string         `json:"title"`
	Price     float64        `json:"price" validate:"gt=0"`
	Size      float64        `json:"size" validate:"min=0"`
	Bedrooms  int            `json:"bedrooms" validate:"min=0"`
	Bathrooms int            `json:"bathrooms" validate:"min=0"`
	Category  Category       `json:"category" validate:"required"`
	AreaName  string         `json:"area_name"`
	District  string         `json:"district"`
	City      string         `json:"city"`
	ListedAt  time.Time      `json:"listed_at"`
	Status    PropertyStatus `json:"status" validate:"required,oneof=available sold rented under_contract"`
	Views     int            `json:"views"`
	Inquiries int            `json:"inquiries"`
}

type Broker struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone,omitempty"`
	Areas       []string  `json:"areas"`
	CurrentLoad int       `json:"current_load"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SentProperty records a property that was already sent to a client. SentAt
// is nil when the data source does not track the delivery time.
type SentProperty struct {
	ClientID   string     `json:"client_id"`
	PropertyID string     `json:"property_id"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
}

type PropertyMatch struct {
	ClientID       string     `json:"client_id"`
	PropertyID     string     `json:"property_id"`
	Score          int        `json:"score"`
	Reasons        []string   `json:"reasons"`
	PreviouslySent bool       `json:"previously_sent"`
	LastSentAt     *time.Time `json:"last_sent_at,omitempty"`
}

type ClientIntentScore struct {
	ClientID         string    `json:"client_id"`
	ContactFrequency int       `json:"contact_frequency_score"`
	Urgency          int       `json:"urgency_score"`
	Clarity          int       `json:"clarity_score"`
	Interaction      int       `json:"interaction_score"`
	Overall          int       `json:"overall_score"`
	PositiveFactors  []string  `json:"positive_factors"`
	NegativeFactors  []string  `json:"negative_factors"`
	ComputedAt       time.Time `json:"computed_at"`
}

type InsightKind string

const (
	InsightOpportunity InsightKind = "opportunity"
	InsightWarning     InsightKind = "warning"
	InsightTrend       InsightKind = "trend"
	InsightAnalysis    InsightKind = "analysis"
)

type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

type PriceTrend string

const (
	TrendIncreasing PriceTrend = "increasing"
	TrendDecreasing PriceTrend = "decreasing"
	TrendStable     PriceTrend = "stable"
)

type MarketInsight struct {
	ID              string      `json:"id"`
	AreaName        string      `json:"area_name"`
	Category        Category    `json:"category"`
	Kind            InsightKind `json:"kind"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	AvgPrice        float64     `json:"avg_price"`
	AvgSize         float64     `json:"avg_size"`
	SupplyLevel     Level       `json:"supply_level"`
	DemandLevel     Level       `json:"demand_level"`
	PriceTrend      PriceTrend  `json:"price_trend"`
	AvgDaysOnMarket float64     `json:"avg_days_on_market"`
	TotalCount      int         `json:"total_count"`
	AvailableCount  int         `json:"available_count"`
	Confidence      int         `json:"confidence"`
	CreatedAt       time.Time   `json:"created_at"`
	ExpiresAt       time.Time   `json:"expires_at"`
}

type RecommendationKind string

const (
	RecommendFollowUp         RecommendationKind = "follow_up"
	RecommendPropertyMatch    RecommendationKind = "property_match"
	RecommendBrokerAssignment RecommendationKind = "broker_assignment"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var priorityWeights = map[Priority]int{
	PriorityLow:    1,
	PriorityMedium: 2,
	PriorityHigh:   3,
	PriorityUrgent: 4,
}

// Weight orders priorities for sorting; unknown values weigh 0.
func (p Priority) Weight() int {
	return priorityWeights[p]
}

type BrokerRecommendation struct {
	ID             string             `json:"id"`
	Kind           RecommendationKind `json:"kind"`
	Priority       Priority           `json:"priority"`
	Title          string             `json:"title"`
	Message        string             `json:"message"`
	ClientID       *string            `json:"client_id,omitempty"`
	PropertyID     *string            `json:"property_id,omitempty"`
	BrokerID       *string            `json:"broker_id,omitempty"`
	Read           bool               `json:"read"`
	ActionRequired bool               `json:"action_required"`
	Deadline       *time.Time         `json:"deadline,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

type AIAnalysisResult struct {
	ClientID        string                 `json:"client_id"`
	Matches         []PropertyMatch        `json:"matches"`
	Intent          ClientIntentScore      `json:"intent"`
	Recommendations []BrokerRecommendation `json:"recommendations"`
	Insights        []MarketInsight        `json:"insights"`
	NextBestActions []string               `json:"next_best_actions"`
	Skipped         []SkippedItem          `json:"skipped,omitempty"`
	GeneratedAt     time.Time              `json:"generated_at"`
}

// SkippedItem reports a record that a collection operation left out because
// it failed validation.
type SkippedItem struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Run is one recorded store-backed processing run.
type Run struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Status     string          `json:"status"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Summary    json.RawMessage `json:"summary,omitempty"`
}
