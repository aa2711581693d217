package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shouni/panorama-kit/internal/runner"
	"github.com/shouni/panorama-kit/pkg/domain"
	"github.com/shouni/panorama-kit/pkg/runstate"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

// StatusReader は日付ごとの実行状態を読むのだ。
type StatusReader interface {
	Get(ctx context.Context, date string) (runstate.Run, error)
}

// NextRunner は次の予定実行時刻を返すのだ。
type NextRunner interface {
	Next() time.Time
}

// Server は日次生成ワーカーの HTTP 窓口なのだ。
type Server struct {
	name   string
	runner runner.Runner
	states StatusReader
	sched  NextRunner
	now    func() time.Time

	wg sync.WaitGroup
}

// New は Server を初期化するのだ。sched は nil でもよいのだ。
func New(name string, r runner.Runner, states StatusReader, sched NextRunner) *Server {
	return &Server{
		name:   name,
		runner: r,
		states: states,
		sched:  sched,
		now:    time.Now,
	}
}

// Handler はルーティング済みのハンドラーを返すのだ。
// 非同期で起動した生成は ctx がキャンセルされると中断されるのだ。
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/generate-now", func(w http.ResponseWriter, req *http.Request) {
		s.handleGenerateNow(ctx, w, req)
	})
	r.Get("/runs/{date}", s.handleRun)
	return r
}

// Serve は addr で待ち受け、ctx がキャンセルされたら停止するのだ。
// 起動済みの生成がすべて終わるまで戻らないのだ。
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "HTTP サーバーを起動したのだ", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.wg.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	<-errCh
	s.wg.Wait()
	slog.Info("HTTP サーバーを停止したのだ")
	return err
}

// Wait は非同期に起動した生成がすべて終わるまで待つのだ。
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"status":  "ok",
		"service": s.name,
	}
	if s.sched != nil {
		if next := s.sched.Next(); !next.IsZero() {
			body["next_run"] = next.Format(time.RFC3339)
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleGenerateNow(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = domain.FormatDate(s.now().AddDate(0, 0, 1))
	}
	if _, err := domain.ParseDate(date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	run, err := s.states.Get(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run.State == runstate.Running {
		writeJSON(w, http.StatusConflict, map[string]string{"status": "already running", "date": date})
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res, err := s.runner.Run(ctx, date)
		if err != nil {
			slog.ErrorContext(ctx, "手動起動の生成に失敗したのだ", "date", date, "error", err)
			return
		}
		slog.InfoContext(ctx, "手動起動の生成が終わったのだ", "date", date, "skipped", res.Skipped, "path", res.PanoramaPath)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "date": date})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := domain.ParseDate(date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	run, err := s.states.Get(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("レスポンスの書き込みに失敗したのだ", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
