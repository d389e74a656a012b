package handler

import (
	"net/http"

	"github.com/fyerfyer/storm-article/api/model"
	"github.com/fyerfyer/storm-article/internal/services"
	"github.com/gin-gonic/gin"
)

// TaskHandler 查询异步生成任务
type TaskHandler struct {
	service *services.ArticleService
}

func NewTaskHandler(service *services.ArticleService) *TaskHandler {
	return &TaskHandler{service: service}
}

// GetTaskStatus 查询单个任务，完成的任务附带结果
// GET /api/tasks/:id
func (h *TaskHandler) GetTaskStatus(c *gin.Context) {
	var uri model.TaskURI
	if err := c.ShouldBindUri(&uri); err != nil {
		bindError(c, err)
		return
	}

	task, err := h.service.GetTask(c.Request.Context(), uri.ID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewTaskInfo(task, true)))
}

// GetArticleTasks 文章的全部任务，按提交时间排序
// GET /api/articles/:id/tasks
func (h *TaskHandler) GetArticleTasks(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	tasks, err := h.service.ListTasks(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	infos := make([]model.TaskInfo, 0, len(tasks))
	for _, task := range tasks {
		infos = append(infos, model.NewTaskInfo(task, false))
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(gin.H{
		"article_id": id,
		"tasks":      infos,
	}))
}
