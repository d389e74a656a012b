package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ArticleStatus 文章状态类型
type ArticleStatus string

const (
	// ArticleStatusEmpty 文章已创建，还没有任何章节
	ArticleStatusEmpty ArticleStatus = "empty"
	// ArticleStatusDrafting 正在生成章节
	ArticleStatusDrafting ArticleStatus = "drafting"
	// ArticleStatusDrafted 已有章节内容
	ArticleStatusDrafted ArticleStatus = "drafted"
	// ArticleStatusPolished 已完成润色
	ArticleStatusPolished ArticleStatus = "polished"
	// ArticleStatusFailed 最近一次生成失败
	ArticleStatusFailed ArticleStatus = "failed"
)

// RevisionStage 产生修订的处理阶段
type RevisionStage string

const (
	StageImport    RevisionStage = "import"    // 导入外部文本
	StageDraft     RevisionStage = "draft"     // 生成章节
	StagePolish    RevisionStage = "polish"    // 全文润色
	StageLead      RevisionStage = "lead"      // 撰写导语
	StageOutline   RevisionStage = "outline"   // 调整大纲
	StageNormalize RevisionStage = "normalize" // 引用规范化或参考文献调整
	StageEdit      RevisionStage = "edit"      // 手动编辑章节
)

// Reference 参考来源，Index与正文中的引用编号对应
type Reference struct {
	Index   int    `json:"index"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
}

// Article 文章数据模型
// Content保存序列化后的Markdown，Tree保存有序的章节树
type Article struct {
	ID            string         `gorm:"primaryKey"`         // 文章ID，主键
	Topic         string         `gorm:"not null;index"`     // 文章主题
	Status        ArticleStatus  `gorm:"not null;index"`     // 当前状态
	Content       string         `gorm:"type:text"`          // 序列化后的Markdown文本
	Tree          datatypes.JSON `gorm:"type:json"`          // 章节树
	References    datatypes.JSON `gorm:"type:json"`          // 参考来源列表
	Version       int            `gorm:"not null;default:0"` // 每次修改递增
	SectionCount  int            `gorm:"not null;default:0"` // 章节总数
	CitationCount int            `gorm:"not null;default:0"` // 不同引用编号的数量
	Error         string         `gorm:"type:text"`          // 最近一次失败的错误信息
	CreatedAt     time.Time      `gorm:"not null;index"`     // 创建时间
	UpdatedAt     time.Time      `gorm:"not null;index"`     // 更新时间
	CurrentTaskID string         `gorm:"size:50;index"`      // 当前关联的异步任务ID
	LastStage     RevisionStage  `gorm:"size:20"`            // 最近一次修改的阶段
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (a *Article) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (a *Article) BeforeUpdate(tx *gorm.DB) (err error) {
	a.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (Article) TableName() string {
	return "articles"
}

// GetReferences 解析参考来源列表
func (a *Article) GetReferences() ([]Reference, error) {
	if len(a.References) == 0 {
		return []Reference{}, nil
	}
	var refs []Reference
	if err := json.Unmarshal(a.References, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

// SetReferences 保存参考来源列表
func (a *Article) SetReferences(refs []Reference) error {
	if refs == nil {
		refs = []Reference{}
	}
	data, err := json.Marshal(refs)
	if err != nil {
		return err
	}
	a.References = datatypes.JSON(data)
	return nil
}

// ArticleRevision 文章修订记录
// 每次修改保存一份完整的Markdown快照
type ArticleRevision struct {
	ID        uint          `gorm:"primaryKey;autoIncrement"` // 主键ID
	ArticleID string        `gorm:"not null;index"`           // 所属文章ID
	Version   int           `gorm:"not null"`                 // 对应的文章版本
	Stage     RevisionStage `gorm:"not null;size:20"`         // 产生修订的阶段
	Content   string        `gorm:"type:text"`                // 修订后的Markdown
	CreatedAt time.Time     `gorm:"not null"`                 // 创建时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (r *ArticleRevision) BeforeCreate(tx *gorm.DB) (err error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return nil
}

// TableName 明确指定表名
func (ArticleRevision) TableName() string {
	return "article_revisions"
}
