package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sanjay9342/ramesh-computers/controllers"
	"github.com/sanjay9342/ramesh-computers/middleware"
)

// Controllers groups everything the router dispatches to.
type Controllers struct {
	Health  *controllers.HealthController
	Product *controllers.ProductController
	Order   *controllers.OrderController
	Payment *controllers.PaymentController
}

// RegisterRoutes sets up all /api routes. auth identifies the caller on
// every non-public route.
func RegisterRoutes(r *gin.Engine, c Controllers, auth gin.HandlerFunc) {
	api := r.Group("/api")
	api.GET("/health", c.Health.Health)

	products := api.Group("/products")
	products.GET("", c.Product.ListProducts)
	products.GET("/categories/list", c.Product.ListCategories)
	products.GET("/:id", c.Product.GetProduct)

	adminProducts := products.Group("", auth, middleware.AdminOnly())
	adminProducts.POST("", c.Product.CreateProduct)
	adminProducts.PUT("/:id", c.Product.UpdateProduct)
	adminProducts.DELETE("/:id", c.Product.DeleteProduct)

	orders := api.Group("/orders", auth)
	orders.POST("", c.Order.CreateOrder)
	orders.GET("/user/:userId", c.Order.ListUserOrders)
	orders.GET("/:id", c.Order.GetOrder)
	orders.POST("/payment/razorpay-order", c.Payment.CreateRemoteOrder)
	orders.POST("/payment/verify", c.Payment.VerifyPayment)

	adminOrders := orders.Group("", middleware.AdminOnly())
	adminOrders.GET("", c.Order.ListOrders)
	adminOrders.GET("/:id/status-options", c.Order.StatusOptions)
	adminOrders.PUT("/:id/status", c.Order.UpdateStatus)
}
