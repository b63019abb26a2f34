package match

import "github.com/gin-gonic/gin"

// Register mounts the match API under the shared authenticated group.
func (s *Service) Register(r gin.IRouter) {
	r.POST("/checkins", s.CheckIn)
	r.DELETE("/checkins", s.WipeCheckIns)
	r.POST("/matches", s.Match)

	r.GET("/balance", s.GetBalance)
	r.POST("/balance/recharge", s.Recharge)

	r.GET("/history", s.ListHistory)
	r.DELETE("/history", s.ClearHistory)
	r.DELETE("/history/:id", s.DeleteHistoryEntry)

	r.POST("/reports", s.CreateReport)
	r.GET("/reports", s.ListReports)
	r.GET("/moderation/reports", s.ModerationQueue)
	r.POST("/moderation/reports/:id", s.ProcessReport)

	r.GET("/ban-status", s.BanStatus)

	r.POST("/internal/login", s.InternalLogin)
}
