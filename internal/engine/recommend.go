package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/propintel/backend/internal/models"
)

const followUpDeadline = 24 * time.Hour

// Recommend produces broker action items for active clients: follow-ups after
// followUpDays of silence, the best strong property match, and broker
// assignment for unassigned clients. The result is ordered by priority, most
// urgent first, and is stable for equal priorities.
func Recommend(clients []models.Client, props []models.Property, followUpDays int, cfg Config, now time.Time) ([]models.BrokerRecommendation, []models.SkippedItem) {
	available, skipped := validProperties(props)
	available = filterAvailable(available)

	recs := []models.BrokerRecommendation{}
	for _, c := range clients {
		if err := ValidateClient(c); err != nil {
			skipped = append(skipped, skippedFrom(c.ID, err))
			continue
		}
		if c.Status != models.ClientActive {
			continue
		}
		recs = append(recs, clientRecommendations(c, available, followUpDays, cfg.Weights, now)...)
	}
	sortByPriority(recs)
	return recs, skipped
}

func clientRecommendations(c models.Client, available []models.Property, followUpDays int, w Weights, now time.Time) []models.BrokerRecommendation {
	var out []models.BrokerRecommendation
	if rec, ok := followUp(c, followUpDays, now); ok {
		out = append(out, rec)
	}
	if rec, ok := propertyMatch(c, available, w, now); ok {
		out = append(out, rec)
	}
	if c.AssignedBrokerID == nil || strings.TrimSpace(*c.AssignedBrokerID) == "" {
		out = append(out, newRecommendation(models.RecommendBrokerAssignment, models.PriorityMedium, c.ID, "", now,
			"Assign a broker to "+clientName(c),
			fmt.Sprintf("%s has no assigned broker.", clientName(c))))
	}
	return out
}

func followUp(c models.Client, followUpDays int, now time.Time) (models.BrokerRecommendation, bool) {
	if followUpDays < 1 {
		return models.BrokerRecommendation{}, false
	}
	last := c.CreatedAt
	if c.LastContactAt != nil {
		last = *c.LastContactAt
	}
	gap := daysSince(last, now)
	if gap < followUpDays {
		return models.BrokerRecommendation{}, false
	}
	priority := models.PriorityHigh
	if gap >= 2*followUpDays {
		priority = models.PriorityUrgent
	}
	rec := newRecommendation(models.RecommendFollowUp, priority, c.ID, "", now,
		"Follow up with "+clientName(c),
		fmt.Sprintf("No contact with %s for %d days.", clientName(c), gap))
	deadline := now.Add(followUpDeadline)
	rec.Deadline = &deadline
	return rec, true
}

func propertyMatch(c models.Client, available []models.Property, w Weights, now time.Time) (models.BrokerRecommendation, bool) {
	best, bestScore := -1, -1
	for i, p := range available {
		score, _ := scoreMatch(c, p, w)
		if score >= strongMatchScore && score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return models.BrokerRecommendation{}, false
	}
	p := available[best]
	return newRecommendation(models.RecommendPropertyMatch, models.PriorityMedium, c.ID, p.ID, now,
		"Strong property match for "+clientName(c),
		fmt.Sprintf("%s scores %d%% for %s.", describeMatch(p), bestScore, clientName(c))), true
}

func newRecommendation(kind models.RecommendationKind, priority models.Priority, clientID, propertyID string, now time.Time, title, message string) models.BrokerRecommendation {
	rec := models.BrokerRecommendation{
		ID:             recommendationID(kind, clientID, propertyID, now),
		Kind:           kind,
		Priority:       priority,
		Title:          title,
		Message:        message,
		ActionRequired: true,
		CreatedAt:      now,
	}
	if clientID != "" {
		id := clientID
		rec.ClientID = &id
	}
	if propertyID != "" {
		id := propertyID
		rec.PropertyID = &id
	}
	return rec
}

func recommendationID(kind models.RecommendationKind, clientID, propertyID string, now time.Time) string {
	name := fmt.Sprintf("recommendation|%s|%s|%s|%d", kind, clientID, propertyID, now.UnixNano())
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func sortByPriority(recs []models.BrokerRecommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority.Weight() > recs[j].Priority.Weight()
	})
}

func filterAvailable(props []models.Property) []models.Property {
	out := make([]models.Property, 0, len(props))
	for _, p := range props {
		if p.Status == models.PropertyAvailable {
			out = append(out, p)
		}
	}
	return out
}

// daysSince counts whole elapsed days; a timestamp in the future counts as 0.
func daysSince(t, now time.Time) int {
	d := now.Sub(t)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

func clientName(c models.Client) string {
	if n := strings.TrimSpace(c.Name); n != "" {
		return n
	}
	return "client " + c.ID
}
