package domain

import "math"

// DashboardStats are derived counters over the tasks a user is involved in.
// Assigned, created and overdue exclude completed tasks.
type DashboardStats struct {
	TotalTasks      int `json:"totalTasks"`
	AssignedTasks   int `json:"assignedTasks"`
	CreatedTasks    int `json:"createdTasks"`
	OverdueTasks    int `json:"overdueTasks"`
	InProgressTasks int `json:"inProgressTasks"`
	CompletedTasks  int `json:"completedTasks"`
	CompletionRate  int `json:"completionRate"`
}

// Dashboard is the stats plus a bounded recent-task list.
type Dashboard struct {
	DashboardStats
	RecentTasks []Task `json:"recentTasks"`
}

// CompletionRate returns the rounded percentage of completed tasks,
// zero when total is zero.
func CompletionRate(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}
