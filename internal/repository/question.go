package repository

import (
	"context"
	"time"

	"polls-analytics/internal/domain"
)

// QuestionRepository 定义了问题和选项数据的存储和检索操作。
type QuestionRepository interface {
	// FindByID 根据问题 ID 查找问题。
	// 如果问题不存在，应返回 repository.ErrQuestionNotFound。
	FindByID(ctx context.Context, id uint) (*domain.Question, error)

	// FindAll 返回所有问题，按发布时间降序排列。
	FindAll(ctx context.Context) ([]domain.Question, error)

	// FindByPubDateRange 返回发布时间落在 [from, to) 半开区间内的问题，
	// 按发布时间降序排列。
	FindByPubDateRange(ctx context.Context, from, to time.Time) ([]domain.Question, error)

	// ChoicesForQuestion 返回属于指定问题的所有选项。
	// 迭代顺序为存储顺序 (主键升序)，不保证按票数排序。
	ChoicesForQuestion(ctx context.Context, questionID uint) ([]domain.Choice, error)

	// FindChoice 根据选项 ID 查找选项。
	// 如果选项不存在，应返回 repository.ErrChoiceNotFound。
	FindChoice(ctx context.Context, choiceID uint) (*domain.Choice, error)

	// Save 保存问题 (级联保存其选项)。
	Save(ctx context.Context, question *domain.Question) error

	// IncrementVote 将指定选项的票数原子地加一。
	// 必须以单条 SQL 语句完成，不做读取-修改-写回。
	IncrementVote(ctx context.Context, choiceID uint) error

	// VoteTotals 返回每个问题的总票数聚合 (question_id -> sum(votes))。
	VoteTotals(ctx context.Context) (map[uint]int64, error)
}
