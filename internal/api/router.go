// Package api contains the HTTP handlers and routing for the MB Way
// payment service.
package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter configures the Gin router with all routes and middleware.
func SetupRouter(handler *Handler, ginMode string) *gin.Engine {
	gin.SetMode(ginMode)

	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(CORSMiddleware())
	router.Use(RequestIDMiddleware())

	// Health check endpoint (no auth required)
	router.GET("/health", handler.Health)

	// API v1 routes, called by the surrounding platform (checkout flow,
	// control panel display). Authentication between platform components is
	// out of scope here.
	v1 := router.Group("/api/v1")
	{
		payments := v1.Group("/payments")
		{
			payments.POST("/initiate", handler.Initiate)
			payments.GET("/:payment_ref/status", handler.Status)
		}

		orders := v1.Group("/orders")
		{
			orders.DELETE("/:order_ref/transactions", handler.DeleteOrderTransactions)
		}
	}

	// Webhook endpoint called by the gateway. The transaction id travels as
	// a query parameter per the gateway contract.
	router.GET("/webhook/mbway", handler.Webhook)

	return router
}
