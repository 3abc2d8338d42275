package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/propintel/backend/internal/models"
)

const (
	// noPreferenceScore is used for a factor the client left unspecified.
	noPreferenceScore = 70.0

	highMatchScore     = 90
	goodMatchScore     = 80
	strongMatchScore   = 85
	locationPrefixRune = 3
)

type factorScores struct {
	budget   float64
	area     float64
	category float64
	location float64
	features float64
	urgency  float64
}

func (f factorScores) composite(w Weights) int {
	sum := f.budget*w.Budget +
		f.area*w.Area +
		f.category*w.PropertyType +
		f.location*w.Location +
		f.features*w.Features +
		f.urgency*w.Urgency
	ceiling := 100 * w.Sum()
	if ceiling <= 0 {
		return 0
	}
	return clampInt(int(math.Round(sum/ceiling*100)), 0, 100)
}

// ScoreMatch returns the 0..100 composite score of one property for one client
// together with the reasons that support it.
func ScoreMatch(c models.Client, p models.Property, cfg Config) (int, []string, error) {
	if err := ValidateClient(c); err != nil {
		return 0, nil, err
	}
	if err := ValidateProperty(p); err != nil {
		return 0, nil, err
	}
	score, reasons := scoreMatch(c, p, cfg.Weights)
	return score, reasons, nil
}

func scoreMatch(c models.Client, p models.Property, w Weights) (int, []string) {
	loc, matchedArea := locationScore(c, p)
	f := factorScores{
		budget:   budgetScore(c, p.Price),
		area:     areaScore(c, p.Size),
		category: categoryScore(c, p.Category),
		location: loc,
		features: featureScore(c, p),
		urgency:  urgencyScore(c),
	}
	score := f.composite(w)

	var reasons []string
	if withinBudget(c, p.Price) {
		reasons = append(reasons, "Price within budget")
	}
	if withinArea(c, p.Size) {
		reasons = append(reasons, "Size within requested range")
	}
	if matchedArea != "" {
		reasons = append(reasons, "Located in preferred area: "+matchedArea)
	}
	if wantsCategory(c, p.Category) {
		reasons = append(reasons, "Matches desired property type: "+string(p.Category))
	}
	if (c.BedroomsMin != nil || c.BathroomsMin != nil) && f.features >= 100 {
		reasons = append(reasons, "Meets bedroom and bathroom requirements")
	}
	switch {
	case score >= highMatchScore:
		reasons = append(reasons, "High match")
	case score >= goodMatchScore:
		reasons = append(reasons, "Good match")
	}
	if reasons == nil {
		reasons = []string{}
	}
	return score, reasons
}

func budgetScore(c models.Client, price float64) float64 {
	lo, hi := c.BudgetMin, c.BudgetMax
	switch {
	case lo == nil && hi == nil:
		return noPreferenceScore
	case lo != nil && hi != nil:
		if price >= *lo && price <= *hi {
			return 100
		}
		rng := *hi - *lo
		mid := (*lo + *hi) / 2
		diff := math.Abs(price - mid)
		if rng > 0 && diff <= rng*0.2 {
			return 80
		}
		if rng > 0 && diff <= rng*0.5 {
			return 60
		}
		return distanceScore(diff, mid)
	case lo != nil:
		if price >= *lo {
			return 100
		}
		return distanceScore(*lo-price, *lo)
	default:
		if price <= *hi {
			return 100
		}
		return distanceScore(price-*hi, *hi)
	}
}

// distanceScore falls to 0 when the reference point is 0 instead of dividing.
func distanceScore(diff, ref float64) float64 {
	if ref <= 0 {
		return 0
	}
	return math.Max(0, 100-diff/ref*100)
}

func withinBudget(c models.Client, price float64) bool {
	if c.BudgetMin == nil && c.BudgetMax == nil {
		return false
	}
	return within(price, c.BudgetMin, c.BudgetMax)
}

func areaScore(c models.Client, size float64) float64 {
	lo, hi := c.AreaMin, c.AreaMax
	if lo == nil && hi == nil {
		return noPreferenceScore
	}
	if within(size, lo, hi) {
		return 100
	}
	floor, ceil := 0.0, math.Inf(1)
	if lo != nil {
		floor = *lo
	}
	if hi != nil {
		ceil = *hi
	}
	if size >= floor*0.8 && size <= ceil*1.2 {
		return 80
	}
	var mid float64
	switch {
	case lo != nil && hi != nil:
		mid = (*lo + *hi) / 2
	case lo != nil:
		mid = *lo
	default:
		mid = *hi
	}
	return math.Max(0, 100-math.Abs(size-mid)/100)
}

func withinArea(c models.Client, size float64) bool {
	if c.AreaMin == nil && c.AreaMax == nil {
		return false
	}
	return within(size, c.AreaMin, c.AreaMax)
}

func within(v float64, lo, hi *float64) bool {
	if lo != nil && v < *lo {
		return false
	}
	if hi != nil && v > *hi {
		return false
	}
	return true
}

func categoryScore(c models.Client, cat models.Category) float64 {
	if wantsCategory(c, cat) {
		return 100
	}
	group := cat.Group()
	for _, want := range c.Categories {
		if want.Group() == group {
			return 70
		}
	}
	return 30
}

func wantsCategory(c models.Client, cat models.Category) bool {
	for _, want := range c.Categories {
		if want == cat {
			return true
		}
	}
	return false
}

// locationScore also returns the preferred area that matched exactly, if any.
func locationScore(c models.Client, p models.Property) (float64, string) {
	fields := make([]string, 0, 3)
	for _, f := range []string{p.AreaName, p.District, p.City} {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			fields = append(fields, f)
		}
	}
	for _, pref := range c.PreferredAreas {
		needle := strings.ToLower(strings.TrimSpace(pref))
		if needle == "" {
			continue
		}
		for _, f := range fields {
			if strings.Contains(f, needle) {
				return 100, strings.TrimSpace(pref)
			}
		}
	}
	for _, pref := range c.PreferredAreas {
		runes := []rune(strings.ToLower(strings.TrimSpace(pref)))
		if len(runes) < locationPrefixRune {
			continue
		}
		prefix := string(runes[:locationPrefixRune])
		for _, f := range fields {
			if strings.Contains(f, prefix) {
				return 70, ""
			}
		}
	}
	return 40, ""
}

func featureScore(c models.Client, p models.Property) float64 {
	if c.BedroomsMin == nil && c.BathroomsMin == nil {
		return noPreferenceScore
	}
	var total float64
	var n int
	if c.BedroomsMin != nil {
		total += featureRatio(p.Bedrooms, *c.BedroomsMin)
		n++
	}
	if c.BathroomsMin != nil {
		total += featureRatio(p.Bathrooms, *c.BathroomsMin)
		n++
	}
	return total / float64(n)
}

func featureRatio(have, want int) float64 {
	if want <= 0 || have >= want {
		return 100
	}
	return float64(have) / float64(want) * 100
}

func urgencyScore(c models.Client) float64 {
	return 70 + float64(c.UrgencyLevel)/5*30
}

// FindMatches scores every available property for the client and returns the
// ones at or above the configured minimum, best first. Equal scores keep their
// input order. Properties that fail validation are skipped and reported.
func FindMatches(c models.Client, props []models.Property, sent []models.SentProperty, cfg Config) ([]models.PropertyMatch, []models.SkippedItem, error) {
	if err := ValidateClient(c); err != nil {
		return nil, nil, err
	}
	sentIdx := indexSent(c.ID, sent)

	matches := []models.PropertyMatch{}
	var skipped []models.SkippedItem
	for _, p := range props {
		if p.Status != models.PropertyAvailable {
			continue
		}
		if err := ValidateProperty(p); err != nil {
			skipped = append(skipped, skippedFrom(p.ID, err))
			continue
		}
		score, reasons := scoreMatch(c, p, cfg.Weights)
		if score < cfg.Thresholds.MinMatchScore {
			continue
		}
		m := models.PropertyMatch{
			ClientID:   c.ID,
			PropertyID: p.ID,
			Score:      score,
			Reasons:    reasons,
		}
		if s, ok := sentIdx[p.ID]; ok {
			m.PreviouslySent = true
			m.LastSentAt = s.SentAt
		}
		matches = append(matches, m)
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches, skipped, nil
}

// indexSent keeps the latest known send per property. Records for other
// clients are ignored; records without a client id are taken as this client's.
func indexSent(clientID string, sent []models.SentProperty) map[string]models.SentProperty {
	idx := make(map[string]models.SentProperty, len(sent))
	for _, s := range sent {
		if s.ClientID != "" && s.ClientID != clientID {
			continue
		}
		prev, ok := idx[s.PropertyID]
		if !ok || later(s.SentAt, prev.SentAt) {
			idx[s.PropertyID] = s
		}
	}
	return idx
}

func later(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	return b == nil || a.After(*b)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func countAtLeast(matches []models.PropertyMatch, score int) int {
	n := 0
	for _, m := range matches {
		if m.Score >= score {
			n++
		}
	}
	return n
}

func describeMatch(p models.Property) string {
	if strings.TrimSpace(p.Title) != "" {
		return fmt.Sprintf("%s (%s)", p.Title, p.ID)
	}
	return p.ID
}
