package service

import (
	"bytes"
	"context"
	"errors"
	"math"
	"time"

	"polls-analytics/internal/chart"
	"polls-analytics/internal/domain"
	"polls-analytics/internal/repository"

	"github.com/sirupsen/logrus"
)

// dateLayout 是日期范围过滤接受的唯一格式
const dateLayout = "2006-01-02"

// ChoiceStat 是单个选项的统计结果。
type ChoiceStat struct {
	ChoiceText string  `json:"choice_text"`
	Votes      int     `json:"votes"`
	Percentage float64 `json:"percentage"`
}

// QuestionStats 是 QuestionStats 操作的输出记录。
// 字段名沿用既有的对外 JSON 契约。
type QuestionStats struct {
	QuestionText       string       `json:"question_text"`
	TotalVotes         int          `json:"total_votes"`
	Choices            []ChoiceStat `json:"choices"`
	MostPopularChoice  *string      `json:"most_popular_choice"`
	LeastPopularChoice *string      `json:"least_popular_choice"`
	HistogramSVG       string       `json:"histogram_svg"`
}

// StatsService 负责统计聚合与日期范围过滤。
// 时区是显式参数：过滤窗口按部署配置的本地时区解释。
type StatsService struct {
	questionRepo repository.QuestionRepository
	location     *time.Location
}

// NewStatsService 创建 StatsService 实例。
func NewStatsService(questionRepo repository.QuestionRepository, location *time.Location) *StatsService {
	if questionRepo == nil {
		panic("QuestionRepository cannot be nil for StatsService")
	}
	if location == nil {
		location = time.Local
	}
	return &StatsService{
		questionRepo: questionRepo,
		location:     location,
	}
}

// QuestionStats 计算指定问题的统计结果并渲染柱状图。
// 选项按存储顺序扫描；最热/最冷选项的并列都判给先遇到的那个
// (比较分别使用严格的 > 和 <)。
func (s *StatsService) QuestionStats(ctx context.Context, questionID uint) (*QuestionStats, error) {
	logCtx := logrus.WithField("question_id", questionID)

	question, err := s.questionRepo.FindByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, repository.ErrQuestionNotFound) {
			logCtx.Warn("QuestionStats: question not found")
			return nil, ErrQuestionNotFound
		}
		logCtx.WithError(err).Error("QuestionStats: repository error loading question")
		return nil, ErrInternalServer
	}

	choices, err := s.questionRepo.ChoicesForQuestion(ctx, questionID)
	if err != nil {
		logCtx.WithError(err).Error("QuestionStats: repository error loading choices")
		return nil, ErrInternalServer
	}

	totalVotes := 0
	for _, c := range choices {
		totalVotes += c.Votes
	}

	stats := &QuestionStats{
		QuestionText: question.QuestionText,
		TotalVotes:   totalVotes,
		Choices:      make([]ChoiceStat, 0, len(choices)),
	}

	mostVotes := -1
	leastVotes := math.MaxInt // 相当于 +infinity 的初始最小值
	bars := make([]chart.Bar, 0, len(choices))

	for _, c := range choices {
		percentage := 0.0
		if totalVotes > 0 {
			// 四舍五入到两位小数
			percentage = math.Round(float64(c.Votes)/float64(totalVotes)*100*100) / 100
		}
		stats.Choices = append(stats.Choices, ChoiceStat{
			ChoiceText: c.ChoiceText,
			Votes:      c.Votes,
			Percentage: percentage,
		})

		if c.Votes > mostVotes {
			mostVotes = c.Votes
			text := c.ChoiceText
			stats.MostPopularChoice = &text
		}
		if c.Votes < leastVotes {
			leastVotes = c.Votes
			text := c.ChoiceText
			stats.LeastPopularChoice = &text
		}

		bars = append(bars, chart.Bar{Label: c.ChoiceText, Value: c.Votes})
	}

	var svg bytes.Buffer
	if err := chart.RenderBarChart(&svg, question.QuestionText, bars); err != nil {
		logCtx.WithError(err).Error("QuestionStats: failed to render histogram")
		return nil, ErrInternalServer
	}
	stats.HistogramSVG = svg.String()

	return stats, nil
}

// FilterByDate 返回发布时间落在指定日期范围内的问题。
// from/to 必须都提供且为 YYYY-MM-DD 格式；有效上界是 to 的次日零点
// (包含 to 当天的全部时间)，按配置的本地时区解释。
func (s *StatsService) FilterByDate(ctx context.Context, fromDate, toDate string) ([]domain.Question, error) {
	if fromDate == "" || toDate == "" {
		return nil, ErrDateRangeRequired
	}

	from, err := time.ParseInLocation(dateLayout, fromDate, s.location)
	if err != nil {
		return nil, ErrInvalidDateFormat
	}
	to, err := time.ParseInLocation(dateLayout, toDate, s.location)
	if err != nil {
		return nil, ErrInvalidDateFormat
	}
	to = to.AddDate(0, 0, 1) // 包含结束日的整天

	questions, err := s.questionRepo.FindByPubDateRange(ctx, from, to)
	if err != nil {
		logrus.WithError(err).Error("FilterByDate: repository error")
		return nil, ErrInternalServer
	}
	return questions, nil
}
