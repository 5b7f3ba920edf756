package repository

import (
	"sort"

	"wellness-analytics/internal/models"
)

func sortGoals(goals []models.Goal) {
	sort.SliceStable(goals, func(i, j int) bool {
		return goals[i].CreatedAt.Before(goals[j].CreatedAt)
	})
}

func sortCheckIns(checkIns []models.CheckIn) {
	sort.SliceStable(checkIns, func(i, j int) bool {
		return checkIns[i].Timestamp.After(checkIns[j].Timestamp)
	})
}

func sortDeliveries(ds []models.Delivery) {
	sort.SliceStable(ds, func(i, j int) bool {
		return ds[i].QueuedAt.Before(ds[j].QueuedAt)
	})
}
