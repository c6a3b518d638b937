package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jcdickinson/rsidebar/internal/cas"
	"github.com/jcdickinson/rsidebar/internal/config"
	"github.com/jcdickinson/rsidebar/internal/db"
	"github.com/jcdickinson/rsidebar/internal/docs"
	"github.com/jcdickinson/rsidebar/internal/rpc"
	"github.com/jcdickinson/rsidebar/internal/sidebar"
)

type versionCacheEntry struct {
	version  string // resolved real version; empty for 404s
	notFound bool
	expiry   time.Time
}

type Server struct {
	db         *db.DB
	cas        *cas.Store
	jsonCache  docs.JSONCache
	fetcher    *docs.Fetcher
	cfg        *config.Config
	socketPath string
	httpServer *http.Server
	listener   net.Listener

	mu         sync.Mutex
	expTimer   *time.Timer
	expiration time.Duration

	versionCache   map[string]versionCacheEntry
	versionCacheMu sync.RWMutex
	addCrateGroup  singleflight.Group

	crateCache   map[string]*docs.RustdocCrate
	crateCacheMu sync.RWMutex
}

func NewServer(cfg *config.Config, database *db.DB, socketPath string) *Server {
	return newServer(cfg, database, socketPath, cas.Default(), docs.JSONCache{Dir: config.JSONCacheDir()})
}

func newServer(cfg *config.Config, database *db.DB, socketPath string, store *cas.Store, jsonCache docs.JSONCache) *Server {
	expiration := cfg.Daemon.Expiration()
	if expiration <= 0 {
		expiration = 600 * time.Second
	}

	return &Server{
		db:           database,
		cas:          store,
		jsonCache:    jsonCache,
		fetcher:      docs.NewFetcher(cfg.DocsRs.BaseURL, cfg.DocsRs.Timeout),
		cfg:          cfg,
		socketPath:   socketPath,
		expiration:   expiration,
		versionCache: make(map[string]versionCacheEntry),
		crateCache:   make(map[string]*docs.RustdocCrate),
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /add-crates", s.withExpReset(s.handleAddCrates))
	mux.HandleFunc("POST /get-sidebar", s.withExpReset(s.handleGetSidebar))
	mux.HandleFunc("POST /search-items", s.withExpReset(s.handleSearchItems))
	mux.HandleFunc("GET /status", s.withExpReset(s.handleStatus))
	mux.HandleFunc("POST /clear-cache", s.withExpReset(s.handleClearCache))
	mux.HandleFunc("POST /shutdown", s.handleShutdown)
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("setting socket permissions: %w", err)
	}
	s.listener = listener
	s.httpServer = &http.Server{Handler: s.routes()}

	s.mu.Lock()
	s.expTimer = time.AfterFunc(s.expiration, s.expire)
	s.mu.Unlock()

	log.Printf("daemon: listening on %s (expires after %s of inactivity)", s.socketPath, s.expiration)

	if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("daemon: shutdown error: %v", err)
			errs = append(errs, err)
		}
	}
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("daemon: listener close error: %v", err)
			errs = append(errs, err)
		}
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		log.Printf("daemon: socket remove error: %v", err)
		errs = append(errs, err)
	}
	if err := s.db.Close(); err != nil {
		log.Printf("daemon: db close error: %v", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) expire() {
	log.Printf("daemon: expiring due to inactivity")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
	os.Exit(0)
}

func (s *Server) resetExpiration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expTimer != nil {
		s.expTimer.Stop()
		s.expTimer.Reset(s.expiration)
	}
}

func (s *Server) withExpReset(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.resetExpiration()
		handler(w, r)
	}
}

func (s *Server) handleAddCrates(w http.ResponseWriter, r *http.Request) {
	var req rpc.AddCratesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	send := func(line rpc.ProgressLine) bool {
		if line.Message != "" {
			log.Printf("daemon: %s", line.Message)
		}
		if err := enc.Encode(line); err != nil {
			log.Printf("daemon: client disconnected: %v", err)
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	for _, spec := range req.Crates {
		progress := func(msg string) {
			send(rpc.ProgressLine{Type: "progress", Message: msg})
		}
		result, err := s.addCrate(r.Context(), spec, progress)
		if err != nil {
			log.Printf("daemon: adding %s: %v", spec.Name, err)
		}
		if !send(rpc.ProgressLine{Type: "result", Result: &result}) {
			return
		}
	}
}

const versionCacheTTL = 10 * time.Minute

func (s *Server) getCachedVersion(name string) (versionCacheEntry, bool) {
	s.versionCacheMu.RLock()
	defer s.versionCacheMu.RUnlock()
	entry, ok := s.versionCache[name]
	if !ok || time.Now().After(entry.expiry) {
		return versionCacheEntry{}, false
	}
	return entry, true
}

func (s *Server) setCachedVersion(name, version string, notFound bool) {
	s.versionCacheMu.Lock()
	defer s.versionCacheMu.Unlock()
	s.versionCache[name] = versionCacheEntry{
		version:  version,
		notFound: notFound,
		expiry:   time.Now().Add(versionCacheTTL),
	}
}

func (s *Server) clearVersionCache() {
	s.versionCacheMu.Lock()
	defer s.versionCacheMu.Unlock()
	s.versionCache = make(map[string]versionCacheEntry)
}

// getCachedCrate returns a parsed RustdocCrate, checking memory first then disk.
func (s *Server) getCachedCrate(name, version string) *docs.RustdocCrate {
	key := name + "@" + version
	s.crateCacheMu.RLock()
	c, ok := s.crateCache[key]
	s.crateCacheMu.RUnlock()
	if ok {
		return c
	}

	c, err := s.jsonCache.LoadCrateCache(name, version)
	if err != nil {
		return nil
	}
	s.putCachedCrate(name, version, c)
	return c
}

func (s *Server) putCachedCrate(name, version string, c *docs.RustdocCrate) {
	s.crateCacheMu.Lock()
	s.crateCache[name+"@"+version] = c
	s.crateCacheMu.Unlock()
}

func (s *Server) clearCrateCache() {
	s.crateCacheMu.Lock()
	s.crateCache = make(map[string]*docs.RustdocCrate)
	s.crateCacheMu.Unlock()
}

// processedResult reports an already indexed crate.
func (s *Server) processedResult(c *db.Crate) rpc.CrateResult {
	result := rpc.CrateResult{Name: c.Name, Version: c.Version}
	result.Modules, _ = s.db.CountModules(c.ID)
	return result
}

type addOutcome struct {
	result rpc.CrateResult
	err    error
}

// addCrate indexes a crate unless it is already processed. On failure the
// error is returned and also recorded in the result.
func (s *Server) addCrate(ctx context.Context, spec rpc.CrateSpec, progress func(string)) (rpc.CrateResult, error) {
	version := spec.Version
	if version == "" {
		version = "latest"
	}

	result := rpc.CrateResult{Name: spec.Name, Version: version}
	fail := func(err error) (rpc.CrateResult, error) {
		result.Error = err.Error()
		return result, err
	}
	if spec.Name == "" {
		return fail(errors.New("missing crate name"))
	}

	if version == "latest" {
		if entry, ok := s.getCachedVersion(spec.Name); ok {
			if entry.notFound {
				return fail(fmt.Errorf("crate %s: %w (cached)", spec.Name, docs.ErrNotFound))
			}
			existing, err := s.db.GetCrate(spec.Name, entry.version)
			if err != nil {
				return fail(err)
			}
			if existing != nil && existing.ProcessedAt != nil {
				return s.processedResult(existing), nil
			}
		}

		existing, err := s.db.GetLatestCrate(spec.Name)
		if err != nil {
			return fail(err)
		}
		if existing != nil {
			return s.processedResult(existing), nil
		}
	} else {
		existing, err := s.db.GetCrate(spec.Name, version)
		if err != nil {
			return fail(err)
		}
		if existing != nil && existing.ProcessedAt != nil {
			return s.processedResult(existing), nil
		}
	}

	// Concurrent requests for the same crate@version share one fetch. The
	// work outlives any single caller's request.
	key := spec.Name + "@" + version
	workCtx := context.WithoutCancel(ctx)
	v, _, _ := s.addCrateGroup.Do(key, func() (interface{}, error) {
		result, err := s.addCrateWork(workCtx, spec.Name, version, progress)
		return addOutcome{result: result, err: err}, nil
	})
	out := v.(addOutcome)
	return out.result, out.err
}

func (s *Server) addCrateWork(ctx context.Context, name, version string, progress func(string)) (rpc.CrateResult, error) {
	result := rpc.CrateResult{Name: name, Version: version}
	fail := func(err error) (rpc.CrateResult, error) {
		result.Error = err.Error()
		return result, err
	}

	realVersion, rustdocCrate, err := s.resolveVersion(ctx, name, version, progress)
	if err != nil {
		return fail(err)
	}

	if realVersion != version {
		existing, err := s.db.GetCrate(name, realVersion)
		if err != nil {
			return fail(err)
		}
		if existing != nil && existing.ProcessedAt != nil {
			s.setCachedVersion(name, realVersion, false)
			return s.processedResult(existing), nil
		}
	}
	result.Version = realVersion
	s.setCachedVersion(name, realVersion, false)

	crate, err := s.db.UpsertCrate(name, realVersion)
	if err != nil {
		return fail(fmt.Errorf("upserting crate: %w", err))
	}
	if err := s.db.MarkCrateFetched(crate.ID); err != nil {
		log.Printf("daemon: marking %s@%s fetched: %v", name, realVersion, err)
	}

	modules, changed, err := s.indexModules(crate, rustdocCrate, progress)
	if err != nil {
		return fail(err)
	}

	if err := s.db.MarkCrateProcessed(crate.ID); err != nil {
		return fail(fmt.Errorf("marking crate processed: %w", err))
	}
	result.Modules = modules
	result.Changed = changed
	progress(fmt.Sprintf("finished indexing %s@%s (%d modules, %d changed)", name, realVersion, modules, changed))
	return result, nil
}

// resolveVersion fetches and parses rustdoc JSON, resolving "latest" to the
// version rustdoc recorded.
func (s *Server) resolveVersion(ctx context.Context, name, version string, progress func(string)) (string, *docs.RustdocCrate, error) {
	progress(fmt.Sprintf("fetching rustdoc for %s@%s", name, version))
	data, err := s.fetcher.FetchRustdocJSON(ctx, name, version)
	if err != nil {
		if version == "latest" && errors.Is(err, docs.ErrNotFound) {
			s.setCachedVersion(name, "", true)
		}
		return "", nil, fmt.Errorf("fetching docs: %w", err)
	}

	progress(fmt.Sprintf("parsing rustdoc for %s@%s", name, version))
	rustdocCrate, err := docs.Parse(data)
	if err != nil {
		return "", nil, fmt.Errorf("parsing docs: %w", err)
	}

	realVersion := version
	if v := rustdocCrate.Version(); v != "" {
		realVersion = v
	}

	// Item sections are built later from the cached JSON.
	if err := s.jsonCache.SaveCrateCache(data, name, realVersion); err != nil {
		log.Printf("daemon: failed to cache rustdoc JSON for %s@%s: %v", name, realVersion, err)
	}
	s.putCachedCrate(name, realVersion, rustdocCrate)

	return realVersion, rustdocCrate, nil
}

// indexModules stores every module's sidebar-items.js in the CAS and its
// entries in the database.
func (s *Server) indexModules(crate *db.Crate, rustdocCrate *docs.RustdocCrate, progress func(string)) (modules, changed int, err error) {
	indices := rustdocCrate.BuildIndices(docs.BuildOptions{
		IncludeHidden: s.cfg.Sidebar.IncludeHidden,
		SortEntries:   s.cfg.Sidebar.SortEntries,
	})
	progress(fmt.Sprintf("built %d module sidebars for %s@%s", len(indices), crate.Name, crate.Version))

	paths := make([]string, 0, len(indices))
	for p := range indices {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		idx := indices[path]
		hash, err := s.cas.Write(idx.JS())
		if err != nil {
			return modules, changed, fmt.Errorf("writing sidebar for %s: %w", path, err)
		}
		ok, err := s.db.ReplaceModule(crate.ID, path, hash, idx)
		if err != nil {
			return modules, changed, err
		}
		modules++
		if ok {
			changed++
		}
	}
	return modules, changed, nil
}

// resolveOrFetchCrate looks up a crate, resolving "latest" and auto-fetching if needed.
func (s *Server) resolveOrFetchCrate(ctx context.Context, name, version string) (*db.Crate, error) {
	if version == "latest" || version == "" {
		existing, err := s.db.GetLatestCrate(name)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	} else {
		existing, err := s.db.GetCrate(name, version)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ProcessedAt != nil {
			return existing, nil
		}
	}

	result, err := s.addCrate(ctx, rpc.CrateSpec{Name: name, Version: version}, func(msg string) {
		log.Printf("daemon: auto-fetch: %s", msg)
	})
	if err != nil {
		return nil, err
	}
	return s.db.GetCrate(name, result.Version)
}

// modulePath accepts a full module path, one relative to the crate root, or
// a "/"-separated docs.rs path.
func modulePath(crate, module string) string {
	root := strings.ReplaceAll(crate, "-", "_")
	module = strings.Trim(strings.ReplaceAll(module, "/", "::"), ":")
	switch {
	case module == "":
		return root
	case module == root || strings.HasPrefix(module, root+"::"):
		return module
	}
	return root + "::" + module
}

func (s *Server) handleGetSidebar(w http.ResponseWriter, r *http.Request) {
	var req rpc.GetSidebarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Crate == "" {
		writeError(w, http.StatusBadRequest, "missing crate")
		return
	}
	switch req.Format {
	case "":
		req.Format = rpc.FormatJS
	case rpc.FormatJS, rpc.FormatJSON, rpc.FormatMarkdown:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", req.Format))
		return
	}

	crate, err := s.resolveOrFetchCrate(r.Context(), req.Crate, req.Version)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, docs.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	if crate == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("crate %s@%s not found", req.Crate, req.Version))
		return
	}
	if err := s.db.TouchCrate(crate.ID); err != nil {
		log.Printf("daemon: touching %s@%s: %v", crate.Name, crate.Version, err)
	}

	module := modulePath(crate.Name, req.Module)
	resp := rpc.GetSidebarResponse{Crate: crate.Name, Version: crate.Version, Module: module}

	if req.Item != "" {
		s.writeItemSections(w, req, crate, resp)
		return
	}

	m, err := s.db.GetModule(crate.ID, module)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("module %s not found in %s@%s", module, crate.Name, crate.Version))
		return
	}

	if req.Format == rpc.FormatJS {
		data, err := s.cas.Read(m.ContentHash)
		if err == nil {
			resp.Content = string(data)
			writeJSON(w, http.StatusOK, resp)
			return
		}
		log.Printf("daemon: CAS read for %s failed, rebuilding from entries: %v", module, err)
	}

	idx, err := s.db.LoadIndex(m.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	switch req.Format {
	case rpc.FormatJS:
		resp.Content = string(idx.JS())
	case rpc.FormatJSON:
		resp.Index = idx
	case rpc.FormatMarkdown:
		resp.Content = idx.Markdown(module, map[string]string{
			"crate":   crate.Name,
			"version": crate.Version,
			"url":     docs.DocsRsURL(s.cfg.DocsRs.BaseURL, crate.Name, crate.Version, module, "", ""),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeItemSections(w http.ResponseWriter, req rpc.GetSidebarRequest, crate *db.Crate, resp rpc.GetSidebarResponse) {
	rustdocCrate := s.getCachedCrate(crate.Name, crate.Version)
	if rustdocCrate == nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("rustdoc cache not available for %s@%s", crate.Name, crate.Version))
		return
	}
	itemPath := resp.Module + "::" + req.Item
	id, ok := rustdocCrate.FindItem(itemPath)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("item %s not found in %s@%s", itemPath, crate.Name, crate.Version))
		return
	}

	resp.Sections = rustdocCrate.ItemSections(id)
	if req.Format == rpc.FormatMarkdown {
		resp.Content = sidebar.SectionsMarkdown(itemPath, resp.Sections, map[string]string{
			"crate":   crate.Name,
			"version": crate.Version,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearchItems(w http.ResponseWriter, r *http.Request) {
	var req rpc.SearchItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}

	hits, err := s.db.SearchEntries(req.Query, req.Crates, req.Kinds, req.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := make([]rpc.ItemResult, len(hits))
	for i, h := range hits {
		results[i] = rpc.ItemResult{
			URI:     rpc.SidebarURI(h.Crate, h.Version, h.Module),
			URL:     docs.DocsRsURL(s.cfg.DocsRs.BaseURL, h.Crate, h.Version, h.Module, h.Kind, h.Name),
			Crate:   h.Crate,
			Version: h.Version,
			Module:  h.Module,
			Kind:    h.Kind,
			Name:    h.Name,
			Summary: h.Summary,
		}
	}
	writeJSON(w, http.StatusOK, rpc.SearchItemsResponse{Results: results})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	crates, err := s.db.ListCrates()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	withPaths := r.URL.Query().Get("modules") != ""
	status := make([]rpc.CrateStatus, 0, len(crates))
	for _, c := range crates {
		cs := rpc.CrateStatus{
			Name:      c.Name,
			Version:   c.Version,
			Processed: c.ProcessedAt != nil,
		}
		if withPaths {
			modules, err := s.db.ListModules(c.ID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			cs.Modules = len(modules)
			for _, m := range modules {
				cs.ModulePaths = append(cs.ModulePaths, m.Path)
			}
		} else {
			cs.Modules, _ = s.db.CountModules(c.ID)
		}
		status = append(status, cs)
	}

	writeJSON(w, http.StatusOK, rpc.StatusResponse{Crates: status})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	var req rpc.ClearCacheRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.clearVersionCache()
	log.Printf("daemon: version cache cleared")

	if req.All {
		s.clearCrateCache()
		crates, err := s.db.ListCrates()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		var errs []error
		for _, c := range crates {
			errs = append(errs, s.db.DeleteCrate(c.ID))
		}
		errs = append(errs, s.cas.Clear(), s.jsonCache.Clear())
		if err := errors.Join(errs...); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		log.Printf("daemon: removed %d crates and cached files", len(crates))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx)
		os.Exit(0)
	}()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
