package repository

import "github.com/lanops/fleet-console/internal/domain"

// HistoryRepoIface 抽象历史仓库，便于测试替换。
type HistoryRepoIface interface {
	Insert(*domain.DispatchHistory) error
	ListRecent(int) ([]domain.DispatchHistory, error)
	ListFiltered(int, string, string) ([]domain.DispatchHistory, error)
	Cleanup(int, int) error
	EnsureSchema() error
}

// 编译期断言本地实现满足接口
var _ HistoryRepoIface = (*HistoryRepo)(nil)
