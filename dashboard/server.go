// Package dashboard exposes the HTTP surface of the tracker: a JSON API for
// the dashboard lifecycle, an SSE stream of live snapshots, and static file
// serving for the browser UI.
package dashboard

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/acme/autocert"

	"github.com/hlboard/internal/domain"
	"github.com/hlboard/internal/services/metrics"
	"github.com/hlboard/internal/storage/notes"
	"github.com/hlboard/internal/storage/registry"
	"github.com/hlboard/internal/storage/snapshots"
	"github.com/hlboard/pkg/analytics"
)

const (
	snapshotPollInterval = 3 * time.Second
	emaPeriod            = 10
)

type snapshotStreamReader interface {
	SnapshotsAfter(index uint64) ([]domain.SnapshotRecord, error)
}

// Server exposes HTTP endpoints serving the UI, the JSON API and an SSE stream.
type Server struct {
	Addr         string
	Registry     *registry.Store
	Store        *snapshots.Store
	Notes        *notes.Store
	Engine       *metrics.Engine
	Journal      snapshotStreamReader
	DeleteSecret string

	router *mux.Router
}

// NewServer creates a new web server instance.
func NewServer(addr string, reg *registry.Store, store *snapshots.Store, noteStore *notes.Store, engine *metrics.Engine, journal snapshotStreamReader, deleteSecret string) *Server {
	s := &Server{
		Addr:         addr,
		Registry:     reg,
		Store:        store,
		Notes:        noteStore,
		Engine:       engine,
		Journal:      journal,
		DeleteSecret: deleteSecret,
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the configured HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/stream", s.handleSnapshotStream).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/dashboards", s.handleListDashboards).Methods(http.MethodGet)
	api.HandleFunc("/dashboards", s.handleCreateDashboard).Methods(http.MethodPost)
	api.HandleFunc("/dashboards/{name}", s.handleDeleteDashboard).Methods(http.MethodDelete)
	api.HandleFunc("/dashboards/{name}/metrics", s.handleMetrics).Methods(http.MethodGet)
	api.HandleFunc("/dashboards/{name}/series", s.handleSeries).Methods(http.MethodGet)
	api.HandleFunc("/dashboards/{name}/positions", s.handlePositions).Methods(http.MethodGet)
	api.HandleFunc("/dashboards/{name}/note", s.handleGetNote).Methods(http.MethodGet)
	api.HandleFunc("/dashboards/{name}/note", s.handlePutNote).Methods(http.MethodPut)

	r.PathPrefix("/").Handler(s.staticHandler())
	return r
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via
// ACME, plus an HTTP server on port 80 for HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(domains) == 0 {
		return fmt.Errorf("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http (acme) server shutdown error: %v", err)
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("https server shutdown error: %v", err)
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http (acme) server error: %v", err)
		}
	}()

	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "hlboard",
	})
}

type createDashboardRequest struct {
	Name          string   `json:"name"`
	Wallet        string   `json:"wallet,omitempty"`
	Wallets       []string `json:"wallets,omitempty"`
	VolumeStartTS int64    `json:"volume_start_ts,omitempty"`
	StartTotal    float64  `json:"start_total,omitempty"`
}

func (s *Server) handleCreateDashboard(w http.ResponseWriter, r *http.Request) {
	var req createDashboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "dashboard name is required")
		return
	}
	if err := registry.ValidateName(req.Name); err != nil {
		respondError(w, http.StatusBadRequest, "dashboard name must not contain path separators or '..'")
		return
	}
	cfg := domain.DashboardConfig{
		Wallet:        req.Wallet,
		Wallets:       req.Wallets,
		VolumeStartTS: req.VolumeStartTS,
		StartTotal:    req.StartTotal,
	}
	if len(cfg.TrackedWallets()) == 0 {
		respondError(w, http.StatusBadRequest, "at least one wallet address is required")
		return
	}

	if err := s.Registry.Create(req.Name, cfg); err != nil {
		if errors.Is(err, registry.ErrExists) {
			respondError(w, http.StatusConflict, fmt.Sprintf("dashboard %q already exists", req.Name))
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to create dashboard")
		log.Printf("create dashboard %q: %v", req.Name, err)
		return
	}
	if err := s.Store.Init(req.Name); err != nil {
		log.Printf("init series for %q: %v", req.Name, err)
	}

	respondJSON(w, http.StatusCreated, map[string]any{"name": req.Name, "config": cfg})
}

func (s *Server) handleDeleteDashboard(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	secret := r.Header.Get("X-Delete-Secret")
	if secret == "" {
		secret = r.URL.Query().Get("secret")
	}
	if secret != s.DeleteSecret {
		respondError(w, http.StatusForbidden, "incorrect delete secret, dashboard not deleted")
		return
	}

	if err := s.Registry.Delete(name); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete dashboard")
		log.Printf("delete dashboard %q: %v", name, err)
		return
	}
	if err := s.Store.Delete(name); err != nil {
		log.Printf("delete series for %q: %v", name, err)
	}
	if err := s.Notes.Delete(name); err != nil {
		log.Printf("delete note for %q: %v", name, err)
	}
	s.Engine.Forget(name)

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDashboards(w http.ResponseWriter, _ *http.Request) {
	type entry struct {
		Name    string   `json:"name"`
		Wallets []string `json:"wallets"`
		Mode    string   `json:"mode"`
	}
	all := s.Registry.All()
	out := make([]entry, 0, len(all))
	for _, name := range s.Registry.Names() {
		cfg := all[name]
		wallets := make([]string, 0, 2)
		for _, wlt := range cfg.TrackedWallets() {
			wallets = append(wallets, domain.DisplayAddress(wlt))
		}
		mode := "single"
		if cfg.Mode() == domain.DualWallet {
			mode = "dual"
		}
		out = append(out, entry{Name: name, Wallets: wallets, Mode: mode})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if _, ok := s.Registry.Get(name); !ok {
		respondError(w, http.StatusNotFound, "dashboard not found")
		return
	}

	state, refreshed := s.Engine.Current(name)

	resp := map[string]any{
		"metrics":   state.Metrics,
		"refreshed": refreshed,
	}
	if refreshed {
		resp["updated_at"] = state.UpdatedAt
	}

	// chart overlays from the recorded total series
	if series, err := s.Store.Load(name); err == nil {
		totals := series.TotalValues()
		resp["max_drawdown"] = analytics.MaxDrawdown(totals)
		if ema, err := analytics.EquityEMA(totals, emaPeriod); err == nil && len(ema) > 0 {
			resp["equity_ema"] = ema[len(ema)-1]
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if _, ok := s.Registry.Get(name); !ok {
		respondError(w, http.StatusNotFound, "dashboard not found")
		return
	}

	series, err := s.Store.Load(name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load series")
		log.Printf("load series for %q: %v", name, err)
		return
	}

	type rowJSON struct {
		Timestamp time.Time `json:"timestamp"`
		Wallet    string    `json:"wallet"`
		Value     string    `json:"value"`
		Total     string    `json:"total"`
	}
	out := make([]rowJSON, 0, len(series))
	for _, row := range series {
		out = append(out, rowJSON{
			Timestamp: row.Timestamp,
			Wallet:    row.Entity,
			Value:     row.Value.String(),
			Total:     row.Total.String(),
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if _, ok := s.Registry.Get(name); !ok {
		respondError(w, http.StatusNotFound, "dashboard not found")
		return
	}

	state, _ := s.Engine.Current(name)

	type positionJSON struct {
		Coin          string `json:"coin"`
		Side          string `json:"side"`
		Value         string `json:"value"`
		Size          string `json:"size"`
		UnrealizedPnl string `json:"unrealized_pnl"`
	}
	out := make([]positionJSON, 0, len(state.Positions))
	for _, p := range state.Positions {
		out = append(out, positionJSON{
			Coin:          p.Coin,
			Side:          p.Side.String(),
			Value:         p.Value.StringFixed(2),
			Size:          p.Size.StringFixed(6),
			UnrealizedPnl: p.UnrealizedPnl.String(),
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if _, ok := s.Registry.Get(name); !ok {
		respondError(w, http.StatusNotFound, "dashboard not found")
		return
	}

	text, err := s.Notes.Load(name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load note")
		log.Printf("load note for %q: %v", name, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"note": text})
}

func (s *Server) handlePutNote(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if _, ok := s.Registry.Get(name); !ok {
		respondError(w, http.StatusNotFound, "dashboard not found")
		return
	}

	var req struct {
		Note string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.Notes.Save(name, req.Note); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save note")
		log.Printf("save note for %q: %v", name, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSnapshotStream(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "snapshot journal not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// comment heartbeat every 20s so proxies keep the connection
	heartbeat := time.NewTicker(20 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(snapshotPollInterval)
	defer pollTicker.Stop()

	lastIndex := parseLastEventID(r.Header.Get("Last-Event-ID"), r.URL.Query().Get("last_event_id"))
	isFirstLoad := lastIndex == 0
	sendSnapshots := func() error {
		records, err := s.Journal.SnapshotsAfter(lastIndex)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			isFirstLoad = false
			return nil
		}

		// exponential thinning on first load for large histories
		recordsToSend := records
		if isFirstLoad && len(records) > 100 {
			recordsToSend = thinRecords(records)
		}

		for _, record := range recordsToSend {
			payload, err := json.Marshal(record.Snapshot)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", record.Index)
			fmt.Fprintf(w, "event: snapshot\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		isFirstLoad = false
		return nil
	}

	if err := sendSnapshots(); err != nil {
		http.Error(w, "failed to load snapshots", http.StatusInternalServerError)
		log.Printf("snapshot stream initial load: %v", err)
		return
	}

	// let a fresh client switch UI from 'loading' to 'no data yet'
	if lastIndex == 0 {
		fmt.Fprintf(w, "event: no_data\n")
		fmt.Fprintf(w, "data: {}\n\n")
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendSnapshots(); err != nil {
				log.Printf("snapshot stream poll err: %v", err)
			}
		}
	}
}

func (s *Server) staticHandler() http.Handler {
	fileServer := http.StripPrefix("/", http.FileServer(http.Dir("dashboard/static")))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assetPath := r.URL.Path
		if assetPath == "" || assetPath == "/" {
			assetPath = "/index.html"
		}

		if !shouldCompress(assetPath) || !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			fileServer.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Vary", "Accept-Encoding")

		gz := gzip.NewWriter(w)
		defer gz.Close()

		gzw := &gzipResponseWriter{ResponseWriter: w, writer: gz}
		fileServer.ServeHTTP(gzw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	writer *gzip.Writer
}

func (w *gzipResponseWriter) WriteHeader(statusCode int) {
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	return w.writer.Write(b)
}

func shouldCompress(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return true
	}
	switch ext {
	case ".html", ".css", ".js", ".json", ".svg", ".txt":
		return true
	default:
		return false
	}
}

// parseLastEventID extracts an SSE event ID from either the Last-Event-ID
// header or a query parameter. The header is preferred; the query parameter
// allows manual reconnects to resume from a known index.
func parseLastEventID(headerVal, queryVal string) uint64 {
	idStr := strings.TrimSpace(headerVal)
	if idStr == "" {
		idStr = strings.TrimSpace(queryVal)
	}
	if idStr == "" {
		return 0
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		log.Printf("invalid last event id %q: %v", idStr, err)
		return 0
	}
	return id
}

// thinRecords keeps the last 100 records fully and exponentially thins the rest.
func thinRecords(records []domain.SnapshotRecord) []domain.SnapshotRecord {
	if len(records) <= 100 {
		return records
	}

	keepLast := 100
	older := records[:len(records)-keepLast]
	var thinned []domain.SnapshotRecord

	skip := 1 // start by skipping 1 (send every 2nd)
	for i := len(older) - 1; i >= 0; i-- {
		thinned = append([]domain.SnapshotRecord{older[i]}, thinned...)
		i -= skip
		// double skip every 12 records
		if (len(older)-1-i)%12 == 0 {
			skip *= 2
		}
	}

	return append(thinned, records[len(records)-keepLast:]...)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
