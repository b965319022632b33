package fleetmip

// SysInfo records the host a solve ran on.
type SysInfo struct {
	Platform string `json:"platform"`
	CPU      string `json:"cpu"`
	RAM      string `json:"ram"`
}

// Result statuses as written to solution files.
const (
	STATUS_OPTIMAL    = "OPTIMAL"
	STATUS_TIME_LIMIT = "TIME_LIMIT"
	STATUS_NODE_LIMIT = "NODE_LIMIT"
	STATUS_INFEASIBLE = "INFEASIBLE"
	STATUS_SUBOPTIMAL = "SUBOPTIMAL"
	STATUS_FAILED     = "FAILED"
)
