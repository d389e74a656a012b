package model

// 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// Offset 当前页第一条记录的偏移量
func (p *PaginationRequest) Offset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// ArticleURI 路径中的文章ID
type ArticleURI struct {
	ID string `uri:"id" binding:"required"` // 文章ID
}

// CreateArticleRequest 创建文章请求
type CreateArticleRequest struct {
	Topic string `json:"topic" binding:"required,notblank,max=200"` // 文章主题
}

// ArticleListRequest 文章列表请求
type ArticleListRequest struct {
	PaginationRequest
	Status string `form:"status" json:"status" binding:"omitempty,oneof=empty drafting drafted polished failed"` // 状态过滤
	Topic  string `form:"topic" json:"topic" binding:"omitempty"`                                                // 主题模糊匹配
}

// ApplyTextRequest 合并Markdown文本请求
type ApplyTextRequest struct {
	Text         string `json:"text" binding:"required,notblank"` // 以 # 标题分隔的Markdown文本
	TrimChildren bool   `json:"trim_children"`                    // 文本中的章节集合是否权威
}

// InsertSectionRequest 在指定父章节下写入章节
type InsertSectionRequest struct {
	Parent       []string `json:"parent"`                           // 父章节标题路径，为空时写入顶层
	Title        string   `json:"title"`                            // 文本没有标题时使用的章节标题
	Text         string   `json:"text" binding:"required,notblank"` // 章节内容
	TrimChildren bool     `json:"trim_children"`                    // 片段的子章节集合是否权威
}

// RemoveSectionRequest 删除章节请求
type RemoveSectionRequest struct {
	Path []string `json:"path" binding:"required,min=1,dive,notblank"` // 章节标题路径
}

// OutlineRequest 调整大纲请求
type OutlineRequest struct {
	Outline string `json:"outline" binding:"required,notblank"` // 只包含标题的大纲
}

// ImportRequest 导入文件请求，文件通过multipart表单的file字段上传
type ImportRequest struct {
	TrimChildren bool `form:"trim_children"` // 导入内容中的章节集合是否权威
}

// DraftRequest 生成章节请求
type DraftRequest struct {
	Title  string   `json:"title" binding:"required,notblank"` // 章节标题
	Parent []string `json:"parent"`                            // 父章节标题路径
	Notes  string   `json:"notes"`                             // 额外的写作素材
	Async  bool     `json:"async"`                             // 是否提交到任务队列
}

// PolishRequest 润色请求
type PolishRequest struct {
	RemoveDuplicate bool `json:"remove_duplicate"` // 是否删除重复信息
	Async           bool `json:"async"`            // 是否提交到任务队列
}

// LeadRequest 导语请求
type LeadRequest struct {
	MaxWords int  `json:"max_words" binding:"omitempty,min=10,max=2000"` // 导语最大单词数
	Async    bool `json:"async"`                                         // 是否提交到任务队列
}

// ReferenceItem 参考来源
type ReferenceItem struct {
	URL     string `json:"url" binding:"required,url"` // 来源地址
	Title   string `json:"title"`                      // 来源标题
	Snippet string `json:"snippet"`                    // 来源摘录
}

// ReferencesRequest 替换参考来源请求，来源按位置从1开始编号
type ReferencesRequest struct {
	References []ReferenceItem `json:"references" binding:"dive"` // 参考来源列表
}

// NormalizeRequest 批量规范化请求，ids为空时只规范化路径中的文章
type NormalizeRequest struct {
	IDs []string `json:"ids" binding:"omitempty,dive,notblank"` // 文章ID列表
}

// ExportRequest 导出请求
type ExportRequest struct {
	Format string `form:"format" binding:"omitempty,oneof=md markdown html pdf"` // 导出格式
	Save   bool   `form:"save"`                                                  // 是否保存到导出存储
}

// RevisionURI 路径中的修订版本
type RevisionURI struct {
	ID      string `uri:"id" binding:"required"`            // 文章ID
	Version int    `uri:"version" binding:"required,min=1"` // 版本号
}

// ExportURI 路径中的导出文件
type ExportURI struct {
	ID   string `uri:"id" binding:"required"`
	Name string `uri:"name" binding:"required,notblank"`
}

// TaskURI 路径中的任务ID
type TaskURI struct {
	ID string `uri:"id" binding:"required,notblank"`
}
