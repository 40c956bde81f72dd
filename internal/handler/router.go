package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/middleware"
	"github.com/noah-isme/lms-api/internal/models"
)

// Handlers groups every HTTP handler mounted by RegisterRoutes.
type Handlers struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Batches       *BatchHandler
	Courses       *CourseHandler
	Tasks         *TaskHandler
	Grades        *GradeHandler
	Notifications *NotificationHandler
	Settings      *SettingsHandler
	Analytics     *AnalyticsHandler
	Dashboard     *DashboardHandler
	Files         *FileHandler
	Metrics       *MetricsHandler
}

// RouteDeps carries what the route-level middleware needs.
type RouteDeps struct {
	Auth        middleware.TokenAuthenticator
	Maintenance middleware.MaintenanceChecker
	Audit       middleware.AuditWriter
}

// RegisterRoutes mounts the ops endpoints at the root and the API under prefix.
func RegisterRoutes(r gin.IRouter, prefix string, deps RouteDeps, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)
	gate := middleware.Maintenance(deps.Maintenance)
	authed := func(roles ...models.UserRole) []gin.HandlerFunc {
		return []gin.HandlerFunc{middleware.Authenticate(deps.Auth, roles...), gate}
	}

	auth := api.Group("/auth")
	auth.POST("/:role/register", gate, h.Auth.Register)
	auth.POST("/:role/login", gate, h.Auth.Login)
	auth.POST("/refresh", gate, h.Auth.Refresh)
	self := auth.Group("", authed()...)
	self.POST("/logout", h.Auth.Logout)
	self.GET("/me", h.Auth.Me)
	self.PUT("/profile", h.Auth.UpdateProfile)
	self.PUT("/change-password", h.Auth.ChangePassword)

	shared := api.Group("", authed()...)
	shared.GET("/notifications", h.Notifications.List)
	shared.GET("/notifications/unread-count", h.Notifications.UnreadCount)
	shared.PUT("/notifications/:id/read", h.Notifications.MarkRead)
	shared.PUT("/notifications/read-all", h.Notifications.MarkAllRead)
	shared.POST("/upload", h.Files.Upload)
	shared.POST("/delete-photo", h.Files.DeletePhoto)
	shared.GET("/exports/:token", middleware.RequireRoles(models.RoleAdmin, models.RoleFaculty), h.Files.DownloadExport)

	registerAdminRoutes(api.Group("/admin", authed(models.RoleAdmin)...), deps, h)
	registerFacultyRoutes(api.Group("/faculty", authed(models.RoleFaculty)...), h)
	registerStudentRoutes(api.Group("/student", authed(models.RoleStudent)...), h)
}

func registerAdminRoutes(admin *gin.RouterGroup, deps RouteDeps, h Handlers) {
	admin.GET("/fetch", h.Dashboard.Admin)

	faculty := admin.Group("/faculty")
	faculty.GET("/all", h.Users.ListFaculty)
	faculty.POST("/add", h.Users.CreateFaculty)
	faculty.PUT("/update/:id", h.Users.UpdateFaculty)
	faculty.DELETE("/delete/:id", h.Users.DeleteFaculty)

	students := admin.Group("/students")
	students.GET("/all", h.Users.ListStudents)
	students.GET("/search", h.Batches.SearchStudents)
	students.GET("/details/:id", h.Users.GetStudent)
	students.POST("/add", h.Users.CreateStudent)
	students.PUT("/update/:id", h.Users.UpdateStudent)
	students.DELETE("/delete/:id", h.Users.DeleteStudent)

	registerBatchRoutes(admin.Group("/batches"), h)
	registerCourseRoutes(admin.Group("/courses"), h)
	registerTaskRoutes(admin.Group("/tasks"), h)

	admin.GET("/search/assignables", h.Courses.SearchAssignables)
	admin.GET("/search/task-assignables", h.Courses.SearchTaskAssignables)
	admin.GET("/analytics", h.Analytics.Report)
	admin.GET("/analytics/system", h.Analytics.System)
	admin.GET("/settings", h.Settings.Get)
	admin.PUT("/settings", middleware.Audit(deps.Audit, models.AuditActionUpdate, "settings"), h.Settings.Update)
	admin.POST("/announcements", middleware.Audit(deps.Audit, models.AuditActionCreate, "announcement"), h.Notifications.Announce)
}

func registerFacultyRoutes(faculty *gin.RouterGroup, h Handlers) {
	faculty.GET("/dashboard-stats", h.Dashboard.Faculty)
	faculty.GET("/my-courses", h.Courses.MyCourses)
	faculty.GET("/my-batches", h.Batches.MyBatches)
	faculty.GET("/analytics", h.Analytics.Report)
	faculty.GET("/search-batches", h.Batches.SearchBatches)
	faculty.GET("/search/task-assignables", h.Courses.SearchTaskAssignables)

	faculty.GET("/students", h.Users.ListStudents)
	faculty.POST("/students", h.Users.CreateStudent)
	faculty.GET("/students/search", h.Batches.SearchStudents)
	faculty.PUT("/students/:id", h.Users.UpdateStudent)
	faculty.DELETE("/students/:id", h.Users.DeleteStudent)

	registerBatchRoutes(faculty.Group("/batches"), h)
	courses := registerCourseRoutes(faculty.Group("/courses"), h)
	courses.PUT("/:id", h.Courses.Update)
	registerTaskRoutes(faculty.Group("/tasks"), h)
}

func registerStudentRoutes(student *gin.RouterGroup, h Handlers) {
	student.GET("/dashboard-stats", h.Dashboard.Student)
	student.GET("/courses/all", h.Courses.List)
	student.GET("/courses/details/:id", h.Courses.Details)
	student.GET("/tasks/all", h.Tasks.List)
	student.GET("/tasks/details/:id", h.Tasks.Details)
	student.POST("/tasks/:id/submit", h.Grades.Submit)
	student.GET("/tasks/:id/submission", h.Grades.MySubmission)
	student.GET("/grades", h.Grades.MyGrades)
}

func registerBatchRoutes(batches *gin.RouterGroup, h Handlers) {
	batches.GET("/all", h.Batches.List)
	batches.GET("/details/:id", h.Batches.Details)
	batches.POST("/add", h.Batches.Create)
	batches.PUT("/update/:id", h.Batches.Update)
	batches.DELETE("/delete/:id", h.Batches.Delete)
}

func registerCourseRoutes(courses *gin.RouterGroup, h Handlers) *gin.RouterGroup {
	courses.GET("/all", h.Courses.List)
	courses.GET("/details/:id", h.Courses.Details)
	courses.POST("/add", h.Courses.Create)
	courses.PUT("/update/:id", h.Courses.Update)
	courses.DELETE("/delete/:id", h.Courses.Delete)
	return courses
}

func registerTaskRoutes(tasks *gin.RouterGroup, h Handlers) {
	tasks.GET("/all", h.Tasks.List)
	tasks.GET("/details/:id", h.Tasks.Details)
	tasks.POST("/add", h.Tasks.Create)
	tasks.PUT("/update/:id", h.Tasks.Update)
	tasks.DELETE("/delete/:id", h.Tasks.Delete)
	tasks.POST("/:id/grade", h.Grades.Grade)
	tasks.GET("/:id/grades", h.Grades.TaskGrades)
	tasks.GET("/:id/grades/export", h.Grades.Export)
	tasks.GET("/:id/submissions", h.Grades.TaskSubmissions)
}
