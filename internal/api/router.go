package api

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/headless-pm/cloudtask/internal/auth"
	"github.com/headless-pm/cloudtask/internal/service"
	"github.com/headless-pm/cloudtask/internal/storage"
	tokens "github.com/headless-pm/cloudtask/pkg/auth"
)

type Handler struct {
	svc    *service.Service
	jwt    *tokens.JWTManager
	logger *log.Logger
}

func NewHandler(svc *service.Service, jwt *tokens.JWTManager, logger *log.Logger) *Handler {
	return &Handler{svc: svc, jwt: jwt, logger: logger.WithPrefix("api")}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
		}
	}
	if !cfg.AllowAllOrigins {
		cfg.AllowOrigins = origins
	}
	cfg.AddAllowHeaders("Authorization", auth.RequestIDHeader)
	cfg.AddExposeHeaders(auth.RequestIDHeader)
	return cfg
}

func SetupRouter(handler *Handler, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = storage.MaxUploadSize

	router.Use(gin.Recovery(), auth.RequestID(), auth.RequestLogger(handler.logger))
	router.Use(cors.New(corsConfig(allowedOrigins)))

	api := router.Group("/api")
	{
		public := api.Group("/auth")
		{
			public.POST("/register", handler.Register)
			public.POST("/login", handler.Login)
		}

		protected := api.Group("")
		protected.Use(auth.AuthMiddleware(handler.jwt, handler.svc))
		{
			protected.GET("/auth/me", handler.Me)

			protected.GET("/staff", handler.ListStaff)
			protected.POST("/staff", handler.AddStaff)

			projects := protected.Group("/projects")
			{
				projects.GET("", handler.ListProjects)
				projects.POST("", handler.CreateProject)
				projects.GET("/:id", handler.GetProject)
				projects.PUT("/:id", handler.UpdateProject)
				projects.DELETE("/:id", handler.DeleteProject)
				projects.POST("/:id/members", handler.AddMember)
				projects.DELETE("/:id/members/:member_id", handler.RemoveMember)
				projects.GET("/:id/comments", handler.ListProjectComments)
				projects.POST("/:id/comments", handler.AddProjectComment)
			}

			tasks := protected.Group("/tasks")
			{
				tasks.GET("", handler.ListTasks)
				tasks.POST("", handler.CreateTask)
				tasks.GET("/board", handler.Board)
				tasks.GET("/:id", handler.GetTask)
				tasks.PUT("/:id", handler.UpdateTask)
				tasks.DELETE("/:id", handler.DeleteTask)
				tasks.PUT("/:id/status", handler.ChangeStatus)
				tasks.POST("/:id/comments", handler.AddComment)
				tasks.GET("/:id/activity", handler.TaskHistory)
				tasks.POST("/:id/attachments", handler.UploadAttachment)
				tasks.DELETE("/:id/attachments/:att_id", handler.DeleteAttachment)
				tasks.GET("/:id/dependencies", handler.ListDependencies)
				tasks.POST("/:id/dependencies", handler.AddDependency)
				tasks.DELETE("/:id/dependencies/:dep_id", handler.RemoveDependency)
				tasks.POST("/:id/timer/start", handler.StartTimer)
				tasks.POST("/:id/timer/stop", handler.StopTimer)
				tasks.POST("/:id/time-entries", handler.AddTimeEntry)
				tasks.GET("/:id/time", handler.TaskTime)
			}

			protected.GET("/timer", handler.ActiveTimer)

			templates := protected.Group("/templates")
			{
				templates.GET("", handler.ListTemplates)
				templates.POST("", handler.CreateTemplate)
				templates.DELETE("/:id", handler.DeleteTemplate)
				templates.POST("/:id/tasks", handler.CreateTaskFromTemplate)
			}

			notifications := protected.Group("/notifications")
			{
				notifications.GET("", handler.ListNotifications)
				notifications.GET("/unread-count", handler.UnreadCount)
				notifications.POST("/:id/read", handler.MarkRead)
				notifications.POST("/read-all", handler.MarkAllRead)
			}

			protected.GET("/activity", handler.ListActivity)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
		})
	})

	return router
}
