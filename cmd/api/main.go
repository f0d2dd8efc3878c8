package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"github.com/wms-platform/allocation-service/internal/application"
	mongoRepo "github.com/wms-platform/allocation-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/allocation-service/pkg/api"
	"github.com/wms-platform/allocation-service/pkg/cloudevents"
	"github.com/wms-platform/allocation-service/pkg/kafka"
	"github.com/wms-platform/allocation-service/pkg/logging"
	"github.com/wms-platform/allocation-service/pkg/metrics"
	"github.com/wms-platform/allocation-service/pkg/middleware"
	"github.com/wms-platform/allocation-service/pkg/mongodb"
	"github.com/wms-platform/allocation-service/pkg/outbox"
)

const serviceName = "allocation-service"

func main() {
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting allocation-service API")

	config, err := loadConfig()
	if err != nil {
		logger.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	ctx := context.Background()

	metricsConfig := metrics.DefaultConfig(serviceName)
	m := metrics.New(metricsConfig)
	logger.Info("Metrics initialized")

	mongoClient, err := mongodb.NewProductionClient(ctx, config.MongoDB, m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(ctx)
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	producer := kafka.NewProductionProducer(config.Kafka, m, logger)
	defer producer.Close()
	logger.Info("Kafka producer initialized", "brokers", config.Kafka.Brokers)

	eventFactory := cloudevents.NewEventFactory(serviceName)

	db := mongoClient.Database()
	ledgerStore := mongoRepo.NewLedgerStore(db, eventFactory)
	batchRepo := mongoRepo.NewBatchRepository(db)
	locationRepo := mongoRepo.NewLocationInventoryRepository(db)
	warehouseRepo := mongoRepo.NewWarehouseInventoryRepository(db)
	allocationRepo := mongoRepo.NewAllocationRepository(db)
	historyRepo := mongoRepo.NewHistoryRepository(db)

	if err := ledgerStore.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Warn("Failed to ensure ledger indexes")
	}
	if err := allocationRepo.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Warn("Failed to ensure allocation indexes")
	}

	outboxPublisher := outbox.NewPublisher(
		ledgerStore.OutboxRepository(),
		producer.Underlying(),
		logger,
		m,
		&outbox.PublisherConfig{
			PollInterval: 1 * time.Second,
			BatchSize:    100,
		},
	)
	if err := outboxPublisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		os.Exit(1)
	}
	defer outboxPublisher.Stop()
	logger.Info("Outbox publisher started")

	allocationService := application.NewAllocationService(
		ledgerStore, allocationRepo, locationRepo, ledgerStore.OutboxRepository(), logger, m)
	stockService := application.NewStockService(
		ledgerStore, batchRepo, locationRepo, warehouseRepo, historyRepo, logger, m)

	router := gin.New()

	middlewareConfig := middleware.DefaultConfig(serviceName, logger.Logger)
	middleware.Setup(router, middlewareConfig)
	router.Use(middleware.MetricsMiddleware(m))

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		return mongoClient.HealthCheck(ctx)
	}))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	v1 := router.Group("/api/v1")
	{
		allocations := v1.Group("/allocations")
		{
			allocations.POST("", allocateOrderHandler(allocationService, logger))
			allocations.POST("/release", releaseAllocationHandler(allocationService, logger))
			allocations.GET("/order/:orderId", getOrderAllocationsHandler(allocationService, logger))
			allocations.POST("/:orderId/confirm", confirmOrderHandler(allocationService, logger))
			allocations.POST("/:orderId/fulfill", beginFulfillmentHandler(allocationService, logger))
			allocations.POST("/:orderId/release", releaseOrderHandler(allocationService, logger))
			allocations.POST("/:orderId/cancel", cancelPendingHandler(allocationService, logger))
		}

		stock := v1.Group("/stock")
		{
			stock.POST("/batches", registerBatchHandler(stockService, logger))
			stock.GET("/batches/:batchId", getBatchHandler(stockService, logger))
			stock.POST("/adjust", adjustStockHandler(stockService, logger))
			stock.GET("/availability/:itemRef", getAvailabilityHandler(stockService, logger))
			stock.GET("/items/:itemRef", getItemStockHandler(stockService, logger))
			stock.GET("/history/:targetId", listHistoryHandler(stockService, logger))
			stock.GET("/consistency/:warehouseId/:batchId", verifyConsistencyHandler(stockService, logger))
		}
	}

	srv := &http.Server{
		Addr:         config.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
		}
	}()
	logger.Info("Server started", "addr", config.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped")
}

// Config holds application configuration
type Config struct {
	ServerAddr string
	MongoDB    *mongodb.Config
	Kafka      *kafka.Config
}

// fileConfig is the optional YAML overlay loaded from CONFIG_FILE
type fileConfig struct {
	ServerAddr string `yaml:"serverAddr"`
	MongoDB    struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongodb"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
	} `yaml:"kafka"`
}

func loadConfig() (*Config, error) {
	config := &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8010"),
		MongoDB: &mongodb.Config{
			URI:                getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:           getEnv("MONGODB_DATABASE", "allocation_db"),
			ConnectTimeout:     10 * time.Second,
			MaxPoolSize:        100,
			MinPoolSize:        10,
			TransactionTimeout: 5 * time.Second,
		},
		Kafka: &kafka.Config{
			Brokers:      []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			ClientID:     serviceName,
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: -1,
		},
	}

	// Optional YAML overlay, env values act as defaults
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, err
		}
		if fc.ServerAddr != "" {
			config.ServerAddr = fc.ServerAddr
		}
		if fc.MongoDB.URI != "" {
			config.MongoDB.URI = fc.MongoDB.URI
		}
		if fc.MongoDB.Database != "" {
			config.MongoDB.Database = fc.MongoDB.Database
		}
		if len(fc.Kafka.Brokers) > 0 {
			config.Kafka.Brokers = fc.Kafka.Brokers
		}
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func allocateOrderHandler(service *application.AllocationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			OrderID     string `json:"orderId" binding:"required,order_id"`
			WarehouseID string `json:"warehouseId" binding:"required,warehouse_id"`
			Strategy    string `json:"strategy" binding:"strategy"`
			LocationID  string `json:"locationId"`
			Items       []struct {
				OrderItemID string `json:"orderItemId" binding:"required"`
				ItemRef     string `json:"itemRef" binding:"required,sku"`
				Quantity    int    `json:"quantity" binding:"required,gt=0"`
			} `json:"items" binding:"required,min=1,dive"`
			RequestedBy string `json:"requestedBy" binding:"required"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		cmd := application.AllocateOrderCommand{
			OrderID:     req.OrderID,
			WarehouseID: req.WarehouseID,
			Strategy:    req.Strategy,
			LocationID:  req.LocationID,
			RequestedBy: req.RequestedBy,
		}
		for _, item := range req.Items {
			cmd.Items = append(cmd.Items, application.AllocationItem{
				OrderItemID: item.OrderItemID,
				ItemRef:     item.ItemRef,
				Quantity:    item.Quantity,
			})
		}

		result, err := service.AllocateOrder(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

func confirmOrderHandler(service *application.AllocationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			ConfirmedBy string `json:"confirmedBy" binding:"required"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		allocations, err := service.ConfirmOrder(c.Request.Context(), application.ConfirmOrderCommand{
			OrderID:     c.Param("orderId"),
			ConfirmedBy: req.ConfirmedBy,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"orderId": c.Param("orderId"), "allocations": allocations})
	}
}

func beginFulfillmentHandler(service *application.AllocationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			StartedBy string `json:"startedBy" binding:"required"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		allocations, err := service.BeginFulfillment(c.Request.Context(), application.BeginFulfillmentCommand{
			OrderID:   c.Param("orderId"),
			StartedBy: req.StartedBy,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"orderId": c.Param("orderId"), "allocations": allocations})
	}
}

func releaseOrderHandler(service *application.AllocationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Reason     string `json:"reason" binding:"required"`
			ReleasedBy string `json:"releasedBy" binding:"required"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		allocations, err := service.ReleaseOrder(c.Request.Context(), application.ReleaseOrderCommand{
			OrderID:    c.Param("orderId"),
			Reason:     req.Reason,
			ReleasedBy: req.ReleasedBy,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"orderId": c.Param("orderId"), "allocations": allocations})
	}
}

func releaseAllocationHandler(service *application.AllocationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			AllocationID string `json:"allocationId" binding:"required"`
			Reason       string `json:"reason" binding:"required"`
			ReleasedBy   string `json:"releasedBy" binding:"required"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		allocation, err := service.ReleaseAllocation(c.Request.Context(), application.ReleaseAllocationCommand{
			AllocationID: req.AllocationID,
			Reason:       req.Reason,
			ReleasedBy:   req.ReleasedBy,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, allocation)
	}
}

func cancelPendingHandler(service *application.AllocationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			CancelledBy string `json:"cancelledBy" binding:"required"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		allocations, err := service.CancelPending(c.Request.Context(), application.CancelPendingCommand{
			OrderID:     c.Param("orderId"),
			CancelledBy: req.CancelledBy,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"orderId": c.Param("orderId"), "allocations": allocations})
	}
}

func getOrderAllocationsHandler(service *application.AllocationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		allocations, err := service.GetOrderAllocations(c.Request.Context(), application.GetOrderAllocationsQuery{
			OrderID: c.Param("orderId"),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"orderId": c.Param("orderId"), "allocations": allocations})
	}
}

func registerBatchHandler(service *application.StockService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			ItemRef      string     `json:"itemRef" binding:"required,sku"`
			ItemType     string     `json:"itemType" binding:"omitempty,oneof=product packaging_material"`
			LotNumber    string     `json:"lotNumber" binding:"required"`
			MfgDate      time.Time  `json:"mfgDate" binding:"required"`
			ExpiryDate   *time.Time `json:"expiryDate"`
			LocationID   string     `json:"locationId" binding:"required,location_id"`
			WarehouseID  string     `json:"warehouseId" binding:"required,warehouse_id"`
			Quantity     int        `json:"quantity" binding:"required,gt=0"`
			StorageFee   float64    `json:"storageFee" binding:"gte=0"`
			RegisteredBy string     `json:"registeredBy" binding:"required"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		result, err := service.RegisterBatch(c.Request.Context(), application.RegisterBatchCommand{
			ItemRef:      req.ItemRef,
			ItemType:     req.ItemType,
			LotNumber:    req.LotNumber,
			MfgDate:      req.MfgDate,
			ExpiryDate:   req.ExpiryDate,
			LocationID:   req.LocationID,
			WarehouseID:  req.WarehouseID,
			Quantity:     req.Quantity,
			StorageFee:   req.StorageFee,
			RegisteredBy: req.RegisteredBy,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

func getBatchHandler(service *application.StockService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		batch, err := service.GetBatch(c.Request.Context(), c.Param("batchId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, batch)
	}
}

func adjustStockHandler(service *application.StockService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		// NewOnHand is a pointer so an adjust-to-zero passes required
		var req struct {
			BatchID    string `json:"batchId" binding:"required,batch_id"`
			LocationID string `json:"locationId" binding:"required,location_id"`
			NewOnHand  *int   `json:"newOnHand" binding:"required,gte=0"`
			Reason     string `json:"reason" binding:"required"`
			AdjustedBy string `json:"adjustedBy" binding:"required"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		row, err := service.AdjustStock(c.Request.Context(), application.AdjustStockCommand{
			BatchID:    req.BatchID,
			LocationID: req.LocationID,
			NewOnHand:  *req.NewOnHand,
			Reason:     req.Reason,
			AdjustedBy: req.AdjustedBy,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, row)
	}
}

func getAvailabilityHandler(service *application.StockService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		warehouseID := c.Query("warehouseId")
		if warehouseID == "" {
			responder.RespondBadRequest("warehouseId query parameter is required")
			return
		}

		availability, err := service.GetAvailability(c.Request.Context(), application.GetAvailabilityQuery{
			ItemRef:     c.Param("itemRef"),
			WarehouseID: warehouseID,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, availability)
	}
}

func getItemStockHandler(service *application.StockService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		stock, err := service.GetItemStock(c.Request.Context(), c.Param("itemRef"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"itemRef": c.Param("itemRef"), "warehouses": stock})
	}
}

func listHistoryHandler(service *application.StockService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		page := api.ParsePagination(c)

		history, err := service.ListHistory(c.Request.Context(), application.GetHistoryQuery{
			TargetID: c.Param("targetId"),
			Page:     int(page.Page),
			PageSize: int(page.PageSize),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, history)
	}
}

func verifyConsistencyHandler(service *application.StockService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		report, err := service.VerifyConsistency(c.Request.Context(), application.VerifyConsistencyQuery{
			WarehouseID: c.Param("warehouseId"),
			BatchID:     c.Param("batchId"),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, report)
	}
}
