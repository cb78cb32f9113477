package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	authHandler *AuthHandler,
	emailHandler *EmailHandler,
	inboundHandler *InboundHandler,
	jobsHandler *JobsHandler,
	credentialHandler *CredentialHandler,
	db *pgxpool.Pool,
	jwtSecret string,
) *Router {
	r := gin.Default()
	r.Use(CORSMiddleware())
	r.Use(MetricsMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if err := db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.POST("/register", authHandler.Register)
	r.POST("/login", authHandler.Login)
	// Mail relay webhook; the relay authenticates at the network layer.
	r.POST("/inbound/email", inboundHandler.ReceiveEmail)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.POST("/emails/send", emailHandler.SendEmail)
		auth.GET("/threads/:code", emailHandler.GetThread)
		auth.POST("/threads/sweep-stalled", jobsHandler.SweepStalled)
		auth.POST("/digests/generate", jobsHandler.GenerateDigest)
		auth.POST("/credentials/oauth", credentialHandler.SaveOAuth)
		auth.POST("/credentials/smtp", credentialHandler.SaveSMTP)
		auth.GET("/credentials/reconnect", credentialHandler.ReconnectState)
		auth.POST("/credentials/reconnect/dismiss", credentialHandler.DismissReconnect)
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
