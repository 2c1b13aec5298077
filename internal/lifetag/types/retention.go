package types

type RetentionPolicy struct {
	RetentionDays     int `json:"retention_days" yaml:"retention_days"`
	MaxLogsPerProfile int `json:"max_logs_per_profile" yaml:"max_logs_per_profile"`
	BatchSize         int `json:"batch_size" yaml:"batch_size"`
}

type RetentionRun struct {
	Success           bool     `json:"success" yaml:"success"`
	DeletedCount      int      `json:"deleted_count" yaml:"deleted_count"`
	ProfilesProcessed int      `json:"profiles_processed" yaml:"profiles_processed"`
	ExecutionTimeMs   int64    `json:"execution_time_ms" yaml:"execution_time_ms"`
	Errors            []string `json:"errors" yaml:"errors"`
	Timestamp         string   `json:"timestamp" yaml:"timestamp"`
}

type RetentionRunState struct {
	IsCleanupRunning bool          `json:"is_cleanup_running" yaml:"is_cleanup_running"`
	LastCleanupAt    string        `json:"last_cleanup_at,omitempty" yaml:"last_cleanup_at,omitempty"`
	LastRun          *RetentionRun `json:"last_run,omitempty" yaml:"last_run,omitempty"`
	NeedsCleanup     bool          `json:"needs_cleanup" yaml:"needs_cleanup"`
}

type RetentionCurrent struct {
	TotalEntries      int64 `json:"total_entries" yaml:"total_entries"`
	ExpiredEntries    int64 `json:"expired_entries" yaml:"expired_entries"`
	ProfilesOverLimit int   `json:"profiles_over_limit" yaml:"profiles_over_limit"`
	ExcessEntries     int64 `json:"excess_entries" yaml:"excess_entries"`
}

type RetentionStatusResponse struct {
	Policy     RetentionPolicy   `json:"policy" yaml:"policy"`
	Status     RetentionRunState `json:"status" yaml:"status"`
	Current    RetentionCurrent  `json:"current" yaml:"current"`
	RecentRuns []RetentionRun    `json:"recent_runs,omitempty" yaml:"recent_runs,omitempty"`
	ServerTime string            `json:"server_time" yaml:"server_time"`
}
