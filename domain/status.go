package domain

// Role names the three node kinds of the testbed.
type Role string

const (
	RoleSource       Role = "source"
	RoleLoadBalancer Role = "loadbalancer"
	RoleService      Role = "service"
)

// NodeStatus is the diagnostics snapshot served by the status API.
// CPUPercent and MemoryRSSBytes describe the whole process, not one node.
type NodeStatus struct {
	Name           string  `json:"name"`
	Role           Role    `json:"role"`
	Running        bool    `json:"running"`
	QueueLen       int     `json:"queue_len"`
	QueueCap       int     `json:"queue_cap"`
	Dropped        uint64  `json:"dropped"`
	Forwarded      uint64  `json:"forwarded"`
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryRSSBytes uint64  `json:"memory_rss_bytes"`
}
