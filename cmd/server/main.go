package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/sketchcode/backend/internal/config"
	"github.com/sketchcode/backend/internal/database"
	"github.com/sketchcode/backend/internal/handlers"
	"github.com/sketchcode/backend/internal/middleware"
	"github.com/sketchcode/backend/internal/services"
	"github.com/sketchcode/backend/internal/storage"
	"github.com/sketchcode/backend/pkg/logger"
	"github.com/sketchcode/backend/pkg/tokens"
)

func main() {
	_ = godotenv.Load()
	logger.Init()

	cfg := config.Load()

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	store, err := storage.New(cfg)
	if err != nil {
		log.Fatalf("storage initialization failed: %v", err)
	}
	if err := store.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring storage bucket: %v", err)
	}

	issuer := tokens.NewIssuer(cfg.JWT)
	authService := services.NewAuthService(db, issuer, store, cfg.Upload)
	generator := services.NewOpenAIGenerator(cfg.OpenAI)

	authHandler := handlers.NewAuthHandler(db, authService, cfg.JWT)
	usersHandler := handlers.NewUsersHandler(db, store)
	designsHandler := handlers.NewDesignsHandler(db, store)
	codesHandler := handlers.NewCodesHandler(db, store, generator)
	dashboardHandler := handlers.NewDashboardHandler(db)

	authMiddleware := middleware.NewAuthMiddleware(db, issuer)

	app := newApp()
	registerRoutes(app, authHandler, usersHandler, designsHandler, codesHandler, dashboardHandler, authMiddleware)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"address": listenAddr,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: 25 * 1024 * 1024,
		// Any error that escapes a handler still leaves the process as
		// a JSON error envelope, never a crash.
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				status = fiberErr.Code
			}
			return c.Status(status).JSON(fiber.Map{
				"success":    false,
				"statusCode": status,
				"message":    err.Error(),
			})
		},
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	return app
}

func registerRoutes(
	app *fiber.App,
	authHandler *handlers.AuthHandler,
	usersHandler *handlers.UsersHandler,
	designsHandler *handlers.DesignsHandler,
	codesHandler *handlers.CodesHandler,
	dashboardHandler *handlers.DashboardHandler,
	authMiddleware *middleware.AuthMiddleware,
) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	userRoutes := api.Group("/users")
	userRoutes.Post("/register", authHandler.Register)
	userRoutes.Post("/login", authHandler.Login)
	userRoutes.Post("/logout", authMiddleware.RequireAuth, authHandler.Logout)
	userRoutes.Post("/refresh-token", authHandler.Refresh)
	userRoutes.Patch("/change-password", authMiddleware.RequireAuth, authHandler.ChangePassword)
	userRoutes.Get("/me", authMiddleware.RequireAuth, usersHandler.Me)
	userRoutes.Patch("/update", authMiddleware.RequireAuth, usersHandler.Update)
	userRoutes.Delete("/delete", authMiddleware.RequireAuth, usersHandler.Delete)
	userRoutes.Patch("/avatar", authMiddleware.RequireAuth, usersHandler.UpdateAvatar)
	userRoutes.Patch("/cover-image", authMiddleware.RequireAuth, usersHandler.UpdateCoverImage)
	userRoutes.Get("/image-history", authMiddleware.RequireAuth, usersHandler.ImageHistory)

	designRoutes := api.Group("/designs", authMiddleware.RequireAuth)
	designRoutes.Post("/", designsHandler.Create)
	designRoutes.Get("/", designsHandler.List)
	designRoutes.Get("/:id", designsHandler.Get)
	designRoutes.Patch("/:id", designsHandler.Update)
	designRoutes.Delete("/:id", designsHandler.Delete)

	codeRoutes := api.Group("/codes", authMiddleware.RequireAuth)
	codeRoutes.Post("/", codesHandler.Create)
	codeRoutes.Get("/", codesHandler.List)
	codeRoutes.Get("/:id", codesHandler.Get)
	codeRoutes.Patch("/:id", codesHandler.Update)
	codeRoutes.Delete("/:id", codesHandler.Delete)

	api.Get("/dashboard/:id", authMiddleware.RequireAuth, dashboardHandler.Get)
}
