package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/fyerfyer/storm-article/api/middleware"
	"github.com/fyerfyer/storm-article/api/model"
	"github.com/fyerfyer/storm-article/internal/article"
	"github.com/fyerfyer/storm-article/internal/models"
	"github.com/fyerfyer/storm-article/internal/services"
	"github.com/fyerfyer/storm-article/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ArticleHandler 处理文章相关的API请求
type ArticleHandler struct {
	service *services.ArticleService // 文章服务
	logger  *logrus.Logger           // 日志记录器
}

// NewArticleHandler 创建新的文章处理器
func NewArticleHandler(service *services.ArticleService) *ArticleHandler {
	return &ArticleHandler{
		service: service,
		logger:  middleware.GetLogger(),
	}
}

// CreateArticle 创建文章
// POST /api/articles
func (h *ArticleHandler) CreateArticle(c *gin.Context) {
	var req model.CreateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	a, err := h.service.Create(c.Request.Context(), req.Topic)
	if err != nil {
		handleError(c, err)
		return
	}

	h.respondArticle(c, http.StatusCreated, a)
}

// ListArticles 分页列出文章
// GET /api/articles
func (h *ArticleHandler) ListArticles(c *gin.Context) {
	var req model.ArticleListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	filters := make(map[string]interface{})
	if req.Status != "" {
		filters["status"] = req.Status
	}
	if req.Topic != "" {
		filters["topic"] = req.Topic
	}

	articles, total, err := h.service.List(c.Request.Context(), req.Offset(), req.GetPageSize(), filters)
	if err != nil {
		handleError(c, err)
		return
	}

	resp := model.ArticleListResponse{
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
		Articles: make([]model.ArticleSummary, 0, len(articles)),
	}
	for _, a := range articles {
		resp.Articles = append(resp.Articles, model.NewArticleSummary(a))
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// GetArticle 获取文章详情
// GET /api/articles/:id
func (h *ArticleHandler) GetArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	a, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	h.respondArticle(c, http.StatusOK, a)
}

// DeleteArticle 删除文章
// DELETE /api/articles/:id
func (h *ArticleHandler) DeleteArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(gin.H{"id": id, "deleted": true}))
}

// ApplyText 合并Markdown文本
// PUT /api/articles/:id/sections
func (h *ArticleHandler) ApplyText(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	var req model.ApplyTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	a, err := h.service.ApplyText(c.Request.Context(), id, req.Text, req.TrimChildren)
	h.respondMutation(c, a, err)
}

// InsertSection 在指定父章节下写入章节
// POST /api/articles/:id/sections/insert
func (h *ArticleHandler) InsertSection(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	var req model.InsertSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	a, err := h.service.EditSection(c.Request.Context(), id, req.Parent, req.Title, req.Text, req.TrimChildren)
	h.respondMutation(c, a, err)
}

// RemoveSection 删除章节
// DELETE /api/articles/:id/sections
func (h *ArticleHandler) RemoveSection(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	var req model.RemoveSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	a, err := h.service.RemoveSection(c.Request.Context(), id, req.Path)
	h.respondMutation(c, a, err)
}

// ApplyOutline 按大纲调整文章结构
// PUT /api/articles/:id/outline
func (h *ArticleHandler) ApplyOutline(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	var req model.OutlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	a, err := h.service.ApplyOutline(c.Request.Context(), id, req.Outline)
	h.respondMutation(c, a, err)
}

// RefineOutline 让模型改进大纲
// POST /api/articles/:id/outline/refine
func (h *ArticleHandler) RefineOutline(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	a, err := h.service.RefineOutline(c.Request.Context(), id)
	h.respondMutation(c, a, err)
}

// ImportFile 从上传的文件导入内容
// POST /api/articles/:id/import
func (h *ArticleHandler) ImportFile(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	var req model.ImportRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		middleware.HandleError(c, middleware.NewValidationError("未提供文件", err.Error()))
		return
	}

	file, err := header.Open()
	if err != nil {
		h.logger.WithError(err).WithField("filename", header.Filename).Error("Failed to open uploaded file")
		middleware.HandleError(c, middleware.NewInternalError("无法打开上传的文件"))
		return
	}
	defer file.Close()

	a, err := h.service.Import(c.Request.Context(), id, header.Filename, file, req.TrimChildren)
	h.respondMutation(c, a, err)
}

// DraftSection 生成章节
// POST /api/articles/:id/draft
func (h *ArticleHandler) DraftSection(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	var req model.DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if req.Async {
		taskID, err := h.service.EnqueueDraft(c.Request.Context(), id, taskqueue.DraftPayload{
			Title:   req.Title,
			Parent:  req.Parent,
			Context: req.Notes,
		})
		h.respondTask(c, id, taskID, err)
		return
	}

	a, err := h.service.DraftSection(c.Request.Context(), id, req.Title, req.Parent, req.Notes)
	h.respondMutation(c, a, err)
}

// Polish 润色全文
// POST /api/articles/:id/polish
func (h *ArticleHandler) Polish(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	var req model.PolishRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		bindError(c, err)
		return
	}

	if req.Async {
		taskID, err := h.service.EnqueuePolish(c.Request.Context(), id, taskqueue.PolishPayload{
			RemoveDuplicate: req.RemoveDuplicate,
		})
		h.respondTask(c, id, taskID, err)
		return
	}

	a, err := h.service.Polish(c.Request.Context(), id, req.RemoveDuplicate)
	h.respondMutation(c, a, err)
}

// WriteLead 重写导语
// POST /api/articles/:id/lead
func (h *ArticleHandler) WriteLead(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	var req model.LeadRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		bindError(c, err)
		return
	}

	if req.Async {
		taskID, err := h.service.EnqueueLead(c.Request.Context(), id, taskqueue.LeadPayload{MaxWords: req.MaxWords})
		h.respondTask(c, id, taskID, err)
		return
	}

	a, err := h.service.WriteLead(c.Request.Context(), id, req.MaxWords)
	h.respondMutation(c, a, err)
}

// SetReferences 替换参考来源
// PUT /api/articles/:id/references
func (h *ArticleHandler) SetReferences(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	var req model.ReferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	refs := make([]models.Reference, 0, len(req.References))
	for _, item := range req.References {
		refs = append(refs, models.Reference{URL: item.URL, Title: item.Title, Snippet: item.Snippet})
	}

	a, err := h.service.SetReferences(c.Request.Context(), id, refs)
	h.respondMutation(c, a, err)
}

// Normalize 删除空章节并重新编号引用
// POST /api/articles/:id/normalize
// 请求体中的ids不为空时批量处理这些文章
func (h *ArticleHandler) Normalize(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	var req model.NormalizeRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		bindError(c, err)
		return
	}

	if len(req.IDs) > 0 {
		ids := append([]string{id}, req.IDs...)
		if err := h.service.NormalizeAll(c.Request.Context(), ids); err != nil {
			handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, model.NewSuccessResponse(gin.H{"normalized": ids}))
		return
	}

	a, err := h.service.Normalize(c.Request.Context(), id)
	h.respondMutation(c, a, err)
}

// ExportArticle 导出文章
// GET /api/articles/:id/export?format=md|html|pdf&save=true
func (h *ArticleHandler) ExportArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	var req model.ExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	format, err := services.ParseExportFormat(req.Format)
	if err != nil {
		handleError(c, err)
		return
	}

	if req.Save {
		info, err := h.service.Export(c.Request.Context(), id, format)
		if err != nil {
			handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewExportResponse(info)))
		return
	}

	rendered, err := h.service.Render(c.Request.Context(), id, format)
	if err != nil {
		handleError(c, err)
		return
	}

	c.Header("X-Article-Version", strconv.Itoa(rendered.Article.Version))
	if format == services.FormatPDF {
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="article-%s-v%d.pdf"`, id, rendered.Article.Version))
	}
	c.Data(http.StatusOK, format.ContentType(), rendered.Data)
}

// ListExports 列出已保存的导出文件
// GET /api/articles/:id/exports
func (h *ArticleHandler) ListExports(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	files, err := h.service.ListExports(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	exports := make([]model.ExportResponse, 0, len(files))
	for _, f := range files {
		exports = append(exports, model.NewExportResponse(f))
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(gin.H{
		"article_id": id,
		"exports":    exports,
	}))
}

// DownloadExport 下载已保存的导出文件
// GET /api/articles/:id/exports/:name
func (h *ArticleHandler) DownloadExport(c *gin.Context) {
	var uri model.ExportURI
	if err := c.ShouldBindUri(&uri); err != nil {
		bindError(c, err)
		return
	}

	r, info, err := h.service.OpenExport(c.Request.Context(), uri.ID, uri.Name)
	if err != nil {
		handleError(c, err)
		return
	}
	defer r.Close()

	c.DataFromReader(http.StatusOK, info.Size, info.MimeType, r, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, info.Name),
	})
}

// ListRevisions 列出修订历史
// GET /api/articles/:id/revisions
func (h *ArticleHandler) ListRevisions(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	revisions, err := h.service.ListRevisions(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	infos := make([]model.RevisionInfo, 0, len(revisions))
	for _, r := range revisions {
		infos = append(infos, model.RevisionInfo{
			Version:   r.Version,
			Stage:     string(r.Stage),
			CreatedAt: r.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(gin.H{
		"article_id": id,
		"revisions":  infos,
	}))
}

// GetRevision 获取指定版本的内容
// GET /api/articles/:id/revisions/:version
func (h *ArticleHandler) GetRevision(c *gin.Context) {
	var uri model.RevisionURI
	if err := c.ShouldBindUri(&uri); err != nil {
		bindError(c, err)
		return
	}

	r, err := h.service.GetRevision(c.Request.Context(), uri.ID, uri.Version)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.RevisionInfo{
		Version:   r.Version,
		Stage:     string(r.Stage),
		Content:   r.Content,
		CreatedAt: r.CreatedAt,
	}))
}

// respondMutation 输出修改后的文章
func (h *ArticleHandler) respondMutation(c *gin.Context, a *models.Article, err error) {
	if err != nil {
		handleError(c, err)
		return
	}
	h.respondArticle(c, http.StatusOK, a)
}

// respondArticle 输出文章详情，包含章节树和大纲
func (h *ArticleHandler) respondArticle(c *gin.Context, status int, a *models.Article) {
	doc, err := services.DecodeDocument(a)
	if err != nil {
		handleError(c, err)
		return
	}
	refs, err := a.GetReferences()
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(status, model.NewSuccessResponse(model.ArticleResponse{
		ArticleSummary: model.NewArticleSummary(a),
		Content:        a.Content,
		Outline:        article.Outline(doc),
		Tree:           doc,
		References:     refs,
	}))
}

// respondTask 输出已提交的异步任务
func (h *ArticleHandler) respondTask(c *gin.Context, articleID, taskID string, err error) {
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, model.NewSuccessResponse(model.TaskAcceptedResponse{
		ArticleID: articleID,
		TaskID:    taskID,
		Status:    string(taskqueue.StatusPending),
	}))
}

// articleID 读取路径中的文章ID
func articleID(c *gin.Context) (string, bool) {
	var uri model.ArticleURI
	if err := c.ShouldBindUri(&uri); err != nil {
		bindError(c, err)
		return "", false
	}
	return uri.ID, true
}

// bindOptionalJSON 请求体为空时使用零值
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(obj)
}
