package domain

// GridState 网格视图中单台主机的连接状态。
type GridState string

const (
	GridConnecting   GridState = "connecting"
	GridConnected    GridState = "connected"
	GridError        GridState = "error"
	GridDisconnected GridState = "disconnected"
)

// GridSession 目标 → 隧道句柄的临时映射，仅随一次网格视图存活。
type GridSession struct {
	IP      string    `json:"ip"`
	Port    int       `json:"port,omitempty"`
	URL     string    `json:"url,omitempty"`
	State   GridState `json:"state"`
	Message string    `json:"message,omitempty"`
}
