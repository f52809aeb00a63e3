package domain

import "time"

// Question 表示一个投票问题。
// 一旦存在投票，问题文本视为不可变（本系统不提供修改入口）。
type Question struct {
	ID           uint      `gorm:"primaryKey" json:"id"` // 问题唯一标识符 (主键)
	QuestionText string    `gorm:"type:varchar(512);not null" json:"question_text"`
	PubDate      time.Time `gorm:"index;not null" json:"pub_date"` // 发布时间 (日期范围过滤依赖此索引)
	CreatorID    uint      `gorm:"index" json:"-"` // 创建该问题的用户 ID (外键关联到 User.ID)
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"-"`

	// Choices 是该问题拥有的选项集合
	Choices []Choice `gorm:"foreignKey:QuestionID" json:"-"`
}

// Choice 表示问题的一个选项。
// 不变量：Votes >= 0，只能通过投票操作以原子自增的方式变化。
type Choice struct {
	ID         uint      `gorm:"primaryKey"`
	QuestionID uint      `gorm:"index;not null"` // 所属问题 ID (每个选项恰好属于一个问题)
	ChoiceText string    `gorm:"type:varchar(512);not null"`
	Votes      int       `gorm:"not null;default:0"` // 累计票数
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}
