package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/railtrack-insight/trackwatch/internal/login"
	"github.com/railtrack-insight/trackwatch/internal/utils"
	"github.com/railtrack-insight/trackwatch/pkg/expiry"
	"github.com/railtrack-insight/trackwatch/pkg/inventory"
	"github.com/railtrack-insight/trackwatch/pkg/notify"
	"github.com/railtrack-insight/trackwatch/pkg/polling"
	"github.com/railtrack-insight/trackwatch/pkg/storage"
)

// Sender delivers one alert. *notify.Notifier satisfies it.
type Sender interface {
	Send(ctx context.Context, item inventory.Item, ch notify.Channel) (notify.Delivery, error)
}

type Server struct {
	Source     polling.Source
	Notifier   Sender
	DB         *storage.DB    // optional; history endpoints answer 404 without it
	Lock       polling.Locker // optional; held around each recorded write
	Thresholds expiry.Thresholds
	Captcha    *login.Captcha

	// Basic auth for API routes. Both empty = open.
	Username string
	Password string

	// Inspector login credentials.
	LoginUsername string
	LoginPassword string

	PollInterval time.Duration
	Now          func() time.Time
}

func New(src polling.Source, sender Sender, db *storage.DB, th expiry.Thresholds) *Server {
	return &Server{
		Source:     src,
		Notifier:   sender,
		DB:         db,
		Thresholds: th,
		Captcha:    login.NewCaptcha(),
		Now:        time.Now,
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/alerts", s.basicAuth(s.handleAlerts))
	mux.HandleFunc("POST /api/alerts/notify", s.basicAuth(s.handleNotify))
	mux.HandleFunc("GET /api/stats", s.basicAuth(s.requireDB(s.handleStats)))
	mux.HandleFunc("GET /api/changes", s.basicAuth(s.requireDB(s.handleChanges)))
	mux.HandleFunc("GET /api/notifications", s.basicAuth(s.requireDB(s.handleNotifications)))

	mux.HandleFunc("GET /api/login/challenge", s.handleChallenge)
	mux.HandleFunc("POST /api/login", s.handleLogin)

	return mux
}

// Start serves on addr until ctx is cancelled. When a database and a poll
// interval are configured, evaluations are recorded in the background.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.DB != nil && s.PollInterval > 0 {
		go func() {
			err := polling.Run(ctx, polling.Config{
				Source:     s.Source,
				DB:         s.DB,
				Lock:       s.Lock,
				Thresholds: s.Thresholds,
				Now:        s.Now,
				Log:        utils.Log,
			}, s.PollInterval)
			if err != nil && !errors.Is(err, context.Canceled) {
				utils.Log.Errorf("Poller stopped: %v", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Log.Infof("Starting server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) requireDB(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.DB == nil {
			writeError(w, http.StatusNotFound, errors.New("alert history is not enabled (set db.path)"))
			return
		}
		next(w, r)
	}
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) thresholds() expiry.Thresholds {
	if s.Thresholds == (expiry.Thresholds{}) {
		return expiry.DefaultThresholds()
	}
	return s.Thresholds
}
