package server

import (
	handler "auction-engine/services/bidding/handler"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application
func SetupRouter(biddingService handler.BiddingServiceInterface, checks ...HealthCheck) *gin.Engine {
	router := gin.New() // no default middleware, logging goes through RequestLoggerMiddleware

	router.Use(gin.Recovery())
	router.Use(RequestLoggerMiddleware)

	RegisterHealthRoutes(router, checks...)

	biddingHandler := handler.NewBiddingHandler(biddingService)

	auctions := router.Group("/auctions")
	{
		auctions.GET("", biddingHandler.ListAuctionsHandler)
		auctions.GET("/:auction_id", biddingHandler.GetAuctionHandler)
		auctions.GET("/:auction_id/bids", biddingHandler.GetBidsHandler)
		auctions.POST("/:auction_id/bids", biddingHandler.PlaceBidHandler)
	}

	return router
}
