package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"qrattend/entity"
	"qrattend/internal/config"
	handlerr "qrattend/internal/http-server/handlers/errors"
	"qrattend/internal/http-server/handlers/attendance"
	"qrattend/internal/http-server/handlers/auth"
	"qrattend/internal/http-server/handlers/health"
	"qrattend/internal/http-server/handlers/meeting"
	"qrattend/internal/http-server/handlers/member"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"qrattend/internal/http-server/middleware/authenticate"
	"qrattend/internal/http-server/middleware/device"
	"qrattend/internal/http-server/middleware/timeout"
	"qrattend/lib/sl"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	health.Core
	auth.Core
	meeting.Core
	attendance.Core
	member.Core
}

// NewRouter builds the full route tree.
func NewRouter(conf *config.Config, log *slog.Logger, handler Handler) http.Handler {
	router := chi.NewRouter()
	router.Use(timeout.Timeout(10 * time.Second))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: conf.Cors.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition", "X-Request-ID"},
		MaxAge:         300,
	}))
	router.Use(device.New(conf.TrustProxy))
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(handlerr.NotFound(log))
	router.MethodNotAllowed(handlerr.NotAllowed(log))

	router.Get("/health", health.Check(log, handler))

	admin := authenticate.Roles(log, entity.RoleAdmin)
	staff := authenticate.Roles(log, entity.RoleAdmin, entity.RolePR)

	router.Route("/api", func(rootApi chi.Router) {
		rootApi.Route("/auth", func(r chi.Router) {
			r.Post("/register", auth.Register(log, handler))
			r.Post("/login", auth.Login(log, handler))
			r.Group(func(r chi.Router) {
				r.Use(authenticate.New(log, handler))
				r.Post("/logout", auth.Logout(log, handler))
				r.Get("/me", auth.Me(log))
			})
		})

		rootApi.Group(func(r chi.Router) {
			r.Use(authenticate.New(log, handler))

			r.Route("/meetings", func(m chi.Router) {
				m.Get("/", meeting.List(log, handler))
				m.With(admin).Post("/", meeting.Create(log, handler))
				m.With(admin).Get("/admin/stats", meeting.Stats(log, handler))
				m.Get("/{id}", meeting.Get(log, handler))
				m.With(admin).Put("/{id}", meeting.Update(log, handler))
				m.With(admin).Delete("/{id}", meeting.Delete(log, handler))
				m.With(admin).Patch("/{id}/toggle", meeting.Toggle(log, handler))
				m.With(staff).Patch("/{id}/set-location", meeting.SetLocation(log, handler))
			})

			r.Route("/attendance", func(a chi.Router) {
				a.Post("/", attendance.Mark(log, handler))
				a.With(admin).Get("/stats", attendance.Stats(log, handler))
				a.With(staff).Get("/meeting/{id}", attendance.ByMeeting(log, handler))
				a.Get("/my", attendance.My(log, handler))
				a.With(admin).Get("/export/{id}", attendance.ExportCSV(log, handler))
				a.With(admin).Get("/export-excel/{id}", attendance.ExportExcel(log, handler))
				a.Get("/count/{id}", attendance.CountLive(log, handler))
			})

			r.Route("/members", func(m chi.Router) {
				m.Use(admin)
				m.Get("/", member.List(log, handler))
				m.Post("/", member.Create(log, handler))
				m.Get("/admin/stats", member.Stats(log, handler))
				m.Get("/{id}", member.Get(log, handler))
				m.Put("/{id}", member.Update(log, handler))
				m.Delete("/{id}", member.Delete(log, handler))
			})
		})
	})

	return router
}

// New starts serving and blocks until ctx is cancelled or the listener fails.
func New(ctx context.Context, conf *config.Config, log *slog.Logger, handler Handler) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      NewRouter(conf, log, handler),
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIp, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.httpServer.Shutdown(shutdownCtx); err != nil {
			server.log.Error("shutdown", sl.Err(err))
		}
	}()

	err = server.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		server.log.Info("api server stopped")
		return nil
	}
	return err
}
