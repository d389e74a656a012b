package api

import (
	"net/http"

	"github.com/fyerfyer/storm-article/api/handler"
	"github.com/fyerfyer/storm-article/api/middleware"
	"github.com/fyerfyer/storm-article/api/model"
	"github.com/gin-gonic/gin"
)

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(
	articleHandler *handler.ArticleHandler,
	taskHandler *handler.TaskHandler,
) *gin.Engine {
	if err := model.RegisterValidators(); err != nil {
		middleware.GetLogger().WithError(err).Warn("Failed to register custom validators")
	}

	router := gin.New()

	// 追踪ID需要最先设置，日志和错误响应都会用到
	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())
	router.Use(Cors())

	// 在调试模式下记录请求体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
	}

	api := router.Group("/api")
	{
		articles := api.Group("/articles")
		{
			articles.POST("", articleHandler.CreateArticle)
			articles.GET("", articleHandler.ListArticles)
			articles.GET("/:id", articleHandler.GetArticle)
			articles.DELETE("/:id", articleHandler.DeleteArticle)

			// 结构编辑
			articles.PUT("/:id/sections", articleHandler.ApplyText)
			articles.POST("/:id/sections/insert", articleHandler.InsertSection)
			articles.DELETE("/:id/sections", articleHandler.RemoveSection)
			articles.PUT("/:id/outline", articleHandler.ApplyOutline)
			articles.POST("/:id/outline/refine", articleHandler.RefineOutline)
			articles.POST("/:id/import", articleHandler.ImportFile)

			// 生成
			articles.POST("/:id/draft", articleHandler.DraftSection)
			articles.POST("/:id/polish", articleHandler.Polish)
			articles.POST("/:id/lead", articleHandler.WriteLead)

			// 引用和导出
			articles.PUT("/:id/references", articleHandler.SetReferences)
			articles.POST("/:id/normalize", articleHandler.Normalize)
			articles.GET("/:id/export", articleHandler.ExportArticle)
			articles.GET("/:id/exports", articleHandler.ListExports)
			articles.GET("/:id/exports/:name", articleHandler.DownloadExport)

			articles.GET("/:id/revisions", articleHandler.ListRevisions)
			articles.GET("/:id/revisions/:version", articleHandler.GetRevision)
			articles.GET("/:id/tasks", taskHandler.GetArticleTasks)
		}

		api.GET("/tasks/:id", taskHandler.GetTaskStatus)

		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})
	}

	return router
}

// Cors 允许浏览器中的编辑器直接调用API，预检请求直接返回204
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Authorization, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Article-Version, X-Trace-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
