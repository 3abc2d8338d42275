package service

import (
	"sort"
	"strings"

	"github.com/propintel/backend/internal/models"
	"github.com/propintel/backend/internal/utils"
)

type BrokerEligibility struct {
	Eligible   []models.Broker
	Area       string
	ReasonCode string
	Fallback   bool
	Stages     []EligibilityStage
}

type EligibilityStage struct {
	Name       string
	Candidates []models.Broker
}

// FilterBrokersForClient keeps the brokers covering the client's primary
// area. When none does, every broker stays eligible and Fallback is set.
func FilterBrokersForClient(brokers []models.Broker, client models.Client) BrokerEligibility {
	area := strings.TrimSpace(client.PrimaryArea())
	result := BrokerEligibility{Area: area}
	result.Stages = append(result.Stages, EligibilityStage{
		Name:       "all_brokers",
		Candidates: brokers,
	})

	if len(brokers) == 0 {
		result.ReasonCode = "NO_BROKERS"
		return result
	}

	covering := brokers
	if area != "" {
		covering = filterBrokers(brokers, func(b models.Broker) bool {
			return coversArea(b.Areas, area)
		})
	}
	result.Stages = append(result.Stages, EligibilityStage{
		Name:       "area_rule",
		Candidates: covering,
	})
	if len(covering) == 0 {
		result.ReasonCode = "NO_BROKER_FOR_AREA"
		result.Fallback = true
		result.Eligible = brokers
		return result
	}

	result.Eligible = covering
	return result
}

// PickBroker orders brokers by load and picks one of the two least loaded by
// hashing the client id, so the same client always lands on the same broker
// for a given load picture.
func PickBroker(clientID string, eligible []models.Broker) (models.Broker, []models.Broker) {
	sorted := make([]models.Broker, len(eligible))
	copy(sorted, eligible)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CurrentLoad == sorted[j].CurrentLoad {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].CurrentLoad < sorted[j].CurrentLoad
	})

	if len(sorted) <= 2 {
		idx := int(utils.Hash64(clientID) % uint64(len(sorted)))
		return sorted[idx], sorted
	}

	top2 := sorted[:2]
	idx := int(utils.Hash64(clientID) % 2)
	return top2[idx], top2
}

func coversArea(areas []string, target string) bool {
	for _, a := range areas {
		if strings.EqualFold(strings.TrimSpace(a), target) {
			return true
		}
	}
	return false
}

func filterBrokers(brokers []models.Broker, keep func(models.Broker) bool) []models.Broker {
	out := make([]models.Broker, 0, len(brokers))
	for _, b := range brokers {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}
