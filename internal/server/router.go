package server

import (
	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/realtime"
	"auction-engine/internal/repository"
	handler "auction-engine/services/bidding/handler"
	"auction-engine/utils"
	"context"
	"net/http"
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application.
// ctx bounds the lifetime of websocket connections.
func SetupRouter(ctx context.Context, config utils.Config, biddingService *bidding.BiddingService, users repository.UserDB, registry *realtime.Registry) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging
	router.Use(cors.New(corsConfig(config.AllowedOrigins)))

	biddingHandler := handler.NewBiddingHandler(biddingService)
	realtimeHandler := handler.NewRealtimeHandler(ctx, biddingService, registry, config.AllowedOrigins, realtime.DefaultSendBuffer)
	auth := AuthMiddleware(users)

	router.GET("/healthz", func(c *gin.Context) {
		utils.JSONResponse(c, http.StatusOK, gin.H{"observers": registryObservers(registry)}, "ok")
	})

	auctions := router.Group("/auctions")
	{
		auctions.GET("", biddingHandler.SearchAuctionsHandler)
		auctions.POST("", auth, biddingHandler.CreateAuctionHandler)
		auctions.GET("/:auction_id", biddingHandler.GetAuctionHandler)
		auctions.PUT("/:auction_id", auth, biddingHandler.UpdateAuctionHandler)
		auctions.DELETE("/:auction_id", auth, biddingHandler.DeleteAuctionHandler)
		auctions.GET("/:auction_id/bids", biddingHandler.GetBidsByAuctionHandler)
		auctions.POST("/:auction_id/bids", auth, biddingHandler.PlaceBidHandler)
	}

	userRoutes := router.Group("/users")
	{
		userRoutes.GET("/:user_id/auctions", biddingHandler.GetAuctionsByUserHandler)
	}

	router.GET("/me/auctions", auth, biddingHandler.SellerAuctionsHandler)
	router.GET("/ws", auth, realtimeHandler.ServeWS)

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type", UserIDHeader},
		ExposeHeaders: []string{"Content-Length"},
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func registryObservers(registry *realtime.Registry) int {
	if registry == nil {
		return 0
	}
	return registry.ObserverCount()
}
