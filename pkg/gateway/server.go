package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/paraflow/paraflow/pkg/config"
	"github.com/paraflow/paraflow/pkg/notion"
	"github.com/paraflow/paraflow/pkg/para"
	"github.com/paraflow/paraflow/pkg/pusher"
	"github.com/paraflow/paraflow/pkg/settings"
)

// Extractor is the classification surface the gateway calls. Extraction never
// errors; failures surface as empty results.
type Extractor interface {
	ExtractPara(ctx context.Context, messages []para.Message) para.Batch
	ExtractTasks(ctx context.Context, messages []para.Message) []para.Task
}

// Transcriber converts uploaded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// session owns one user's working set. The mutex serializes handler access;
// WorkingSet itself is not safe for concurrent use.
type session struct {
	mu sync.Mutex
	ws *para.WorkingSet
}

// Server is the HTTP API surface: extraction, confirm/reject, pushes,
// provisioning, persona and settings storage, transcription.
type Server struct {
	cfg         *config.Config
	extractor   Extractor
	store       *settings.Store
	transcriber Transcriber
	logger      *zap.Logger

	// newRemote builds a per-user remote store client from their token.
	// Injectable so handler tests can run against a fake.
	newRemote func(token string) (pusher.Store, error)

	mu       sync.Mutex
	sessions map[string]*session
}

func NewServer(cfg *config.Config, extractor Extractor, store *settings.Store, transcriber Transcriber, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:         cfg,
		extractor:   extractor,
		store:       store,
		transcriber: transcriber,
		logger:      logger,
		sessions:    map[string]*session{},
	}
	s.newRemote = func(token string) (pusher.Store, error) {
		return notion.NewClient(token, notion.Options{
			APIBase: cfg.Notion.APIBase,
			Version: cfg.Notion.Version,
		})
	}
	return s
}

func (s *Server) session(userID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &session{ws: para.NewWorkingSet()}
		s.sessions[userID] = sess
	}
	return sess
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/extract-para", s.handleExtractPara)
	mux.HandleFunc("/api/extract-tasks", s.handleExtractTasks)
	mux.HandleFunc("/api/confirm", s.handleConfirm)
	mux.HandleFunc("/api/reject", s.handleReject)
	mux.HandleFunc("/api/push-tasks", s.handlePushTasks)
	mux.HandleFunc("/api/ensure-framework", s.handleEnsureFramework)
	mux.HandleFunc("/api/persona", s.handlePersona)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/api/transcribe", s.handleTranscribe)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Run serves until ctx is canceled, then drains with a short grace period.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Gateway.Host, strconv.Itoa(s.cfg.Gateway.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("gateway shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("gateway serve: %w", err)
	}
}
