package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"polls-analytics/internal/domain"
	"polls-analytics/internal/repository"

	"github.com/sirupsen/logrus"
)

// VoteEvent 是投票后发布到问题事件通道的消息。
type VoteEvent struct {
	QuestionID uint      `json:"question_id"`
	ChoiceID   uint      `json:"choice_id"`
	VotedAt    time.Time `json:"voted_at"`
}

// PollService 负责问题的创建、投票与列表。
type PollService struct {
	questionRepo repository.QuestionRepository
	stateRepo    repository.StateRepository
}

// NewPollService 创建 PollService 实例。
func NewPollService(questionRepo repository.QuestionRepository, stateRepo repository.StateRepository) *PollService {
	if questionRepo == nil {
		panic("QuestionRepository cannot be nil for PollService")
	}
	if stateRepo == nil {
		panic("StateRepository cannot be nil for PollService")
	}
	return &PollService{
		questionRepo: questionRepo,
		stateRepo:    stateRepo,
	}
}

// CreateQuestion 创建一个新问题及其选项。
// 一个问题至少需要两个非空选项。
func (s *PollService) CreateQuestion(ctx context.Context, creatorID uint, text string, choiceTexts []string) (*domain.Question, error) {
	logCtx := logrus.WithField("creator_id", creatorID)

	text = strings.TrimSpace(text)
	valid := make([]string, 0, len(choiceTexts))
	for _, ct := range choiceTexts {
		if ct = strings.TrimSpace(ct); ct != "" {
			valid = append(valid, ct)
		}
	}
	if text == "" || len(valid) < 2 {
		return nil, ErrInvalidQuestion
	}

	question := &domain.Question{
		QuestionText: text,
		PubDate:      time.Now(),
		CreatorID:    creatorID,
		Choices:      make([]domain.Choice, 0, len(valid)),
	}
	for _, ct := range valid {
		question.Choices = append(question.Choices, domain.Choice{ChoiceText: ct})
	}

	if err := s.questionRepo.Save(ctx, question); err != nil {
		logCtx.WithError(err).Error("CreateQuestion: failed to save question")
		return nil, ErrInternalServer
	}

	logCtx.WithField("question_id", question.ID).Info("Question created successfully")
	return question, nil
}

// FindQuestionByID 根据 ID 查找问题 (供 WebSocket Handler 校验问题存在)。
func (s *PollService) FindQuestionByID(ctx context.Context, questionID uint) (*domain.Question, error) {
	question, err := s.questionRepo.FindByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, repository.ErrQuestionNotFound) {
			return nil, ErrQuestionNotFound
		}
		logrus.WithError(err).WithField("question_id", questionID).Error("FindQuestionByID: repository error")
		return nil, ErrInternalServer
	}
	return question, nil
}

// Vote 为指定问题的一个选项投一票。
// 计数器自增由存储层以单条 SQL 原子完成；随后更新人气缓存并向
// 问题的事件通道发布投票事件。缓存或事件失败不影响投票结果。
func (s *PollService) Vote(ctx context.Context, questionID, choiceID uint) error {
	logCtx := logrus.WithFields(logrus.Fields{"question_id": questionID, "choice_id": choiceID})

	choice, err := s.questionRepo.FindChoice(ctx, choiceID)
	if err != nil {
		if errors.Is(err, repository.ErrChoiceNotFound) {
			logCtx.Warn("Vote: choice not found")
			return ErrChoiceNotFound
		}
		logCtx.WithError(err).Error("Vote: repository error loading choice")
		return ErrInternalServer
	}
	if choice.QuestionID != questionID {
		logCtx.Warn("Vote: choice does not belong to question")
		return ErrChoiceMismatch
	}

	if err := s.questionRepo.IncrementVote(ctx, choiceID); err != nil {
		if errors.Is(err, repository.ErrChoiceNotFound) {
			return ErrChoiceNotFound
		}
		logCtx.WithError(err).Error("Vote: failed to increment vote counter")
		return ErrInternalServer
	}

	// 投票已持久化；以下是尽力而为的缓存与事件更新
	if err := s.stateRepo.IncrementPopularity(ctx, questionID); err != nil {
		logCtx.WithError(err).Warn("Vote: failed to update popularity cache")
	}
	event := VoteEvent{QuestionID: questionID, ChoiceID: choiceID, VotedAt: time.Now()}
	payload, err := json.Marshal(event)
	if err == nil {
		if err := s.stateRepo.PublishVoteEvent(ctx, questionID, payload); err != nil {
			logCtx.WithError(err).Warn("Vote: failed to publish vote event")
		}
	}

	logCtx.Info("Vote recorded")
	return nil
}

// ListQuestions 返回问题列表。
// sort == "popularity" 时按人气排序 (优先读 Redis 排行，缓存为空时
// 退回数据库聚合后在进程内排序)；其余情况按发布时间降序。
func (s *PollService) ListQuestions(ctx context.Context, sortBy string) ([]domain.Question, error) {
	questions, err := s.questionRepo.FindAll(ctx)
	if err != nil {
		logrus.WithError(err).Error("ListQuestions: repository error")
		return nil, ErrInternalServer
	}
	if sortBy != "popularity" {
		return questions, nil // FindAll 已按发布时间降序
	}

	ranked, err := s.stateRepo.TopQuestions(ctx, 0)
	if err != nil {
		logrus.WithError(err).Warn("ListQuestions: popularity cache unavailable, falling back to store aggregate")
		ranked = nil
	}
	if len(ranked) > 0 {
		return orderByRank(questions, ranked), nil
	}

	// 缓存为空：用存储层聚合排序
	totals, err := s.questionRepo.VoteTotals(ctx)
	if err != nil {
		logrus.WithError(err).Error("ListQuestions: failed to aggregate vote totals")
		return nil, ErrInternalServer
	}
	sortByTotals(questions, totals)
	return questions, nil
}

// orderByRank 按排行给出的 ID 顺序重排问题，排行之外的问题保持原有
// 相对顺序追加在末尾 (新问题在排行重建前还没有条目)。
func orderByRank(questions []domain.Question, ranked []uint) []domain.Question {
	byID := make(map[uint]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	out := make([]domain.Question, 0, len(questions))
	seen := make(map[uint]bool, len(ranked))
	for _, id := range ranked {
		if q, ok := byID[id]; ok {
			out = append(out, q)
			seen[id] = true
		}
	}
	for _, q := range questions {
		if !seen[q.ID] {
			out = append(out, q)
		}
	}
	return out
}

// sortByTotals 按总票数降序稳定排序 (并列保持发布时间降序)。
func sortByTotals(questions []domain.Question, totals map[uint]int64) {
	sort.SliceStable(questions, func(i, j int) bool {
		return totals[questions[i].ID] > totals[questions[j].ID]
	})
}
