package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"polls-analytics/internal/domain"
	"polls-analytics/internal/repository"
)

// GormQuestionRepository 是 QuestionRepository 接口的 GORM 实现
type GormQuestionRepository struct {
	db *gorm.DB
}

// NewGormQuestionRepository 创建 GormQuestionRepository 实例
func NewGormQuestionRepository(db *gorm.DB) *GormQuestionRepository {
	if db == nil {
		panic("database connection cannot be nil for GormQuestionRepository")
	}
	return &GormQuestionRepository{db: db}
}

// FindByID 实现根据问题 ID 查找问题
func (r *GormQuestionRepository) FindByID(ctx context.Context, id uint) (*domain.Question, error) {
	var question domain.Question
	err := r.db.WithContext(ctx).First(&question, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrQuestionNotFound
		}
		return nil, fmt.Errorf("gorm: find question by id %d: %w", id, err)
	}
	return &question, nil
}

// FindAll 实现返回所有问题，按发布时间降序排列
func (r *GormQuestionRepository) FindAll(ctx context.Context) ([]domain.Question, error) {
	var questions []domain.Question
	err := r.db.WithContext(ctx).Order("pub_date DESC").Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find all questions: %w", err)
	}
	return questions, nil
}

// FindByPubDateRange 实现日期范围过滤，区间为 [from, to) 半开区间
func (r *GormQuestionRepository) FindByPubDateRange(ctx context.Context, from, to time.Time) ([]domain.Question, error) {
	var questions []domain.Question
	err := r.db.WithContext(ctx).
		Where("pub_date >= ? AND pub_date < ?", from, to).
		Order("pub_date DESC").
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find questions by pub date range: %w", err)
	}
	return questions, nil
}

// ChoicesForQuestion 实现返回问题的所有选项 (主键升序 = 存储顺序)
func (r *GormQuestionRepository) ChoicesForQuestion(ctx context.Context, questionID uint) ([]domain.Choice, error) {
	var choices []domain.Choice
	err := r.db.WithContext(ctx).
		Where("question_id = ?", questionID).
		Order("id ASC").
		Find(&choices).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find choices for question %d: %w", questionID, err)
	}
	return choices, nil
}

// FindChoice 实现根据选项 ID 查找选项
func (r *GormQuestionRepository) FindChoice(ctx context.Context, choiceID uint) (*domain.Choice, error) {
	var choice domain.Choice
	err := r.db.WithContext(ctx).First(&choice, choiceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrChoiceNotFound
		}
		return nil, fmt.Errorf("gorm: find choice by id %d: %w", choiceID, err)
	}
	return &choice, nil
}

// Save 实现保存问题 (GORM 会级联保存 Choices 关联)
func (r *GormQuestionRepository) Save(ctx context.Context, question *domain.Question) error {
	err := r.db.WithContext(ctx).Save(question).Error
	if err != nil {
		return fmt.Errorf("gorm: save question (id: %d): %w", question.ID, err)
	}
	return nil
}

// IncrementVote 实现票数原子自增
// 使用单条 UPDATE 语句，依赖数据库的行级锁保证并发安全，不做读取-修改-写回。
func (r *GormQuestionRepository) IncrementVote(ctx context.Context, choiceID uint) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Choice{}).
		Where("id = ?", choiceID).
		UpdateColumn("votes", gorm.Expr("votes + ?", 1))
	if result.Error != nil {
		return fmt.Errorf("gorm: increment vote for choice %d: %w", choiceID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrChoiceNotFound
	}
	return nil
}

// VoteTotals 实现每个问题的总票数聚合
func (r *GormQuestionRepository) VoteTotals(ctx context.Context) (map[uint]int64, error) {
	type row struct {
		QuestionID uint
		Total      int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&domain.Choice{}).
		Select("question_id, COALESCE(SUM(votes), 0) AS total").
		Group("question_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: aggregate vote totals: %w", err)
	}
	totals := make(map[uint]int64, len(rows))
	for _, r := range rows {
		totals[r.QuestionID] = r.Total
	}
	return totals, nil
}
