// Package api implements the profile backend: login, person info CRUD,
// avatar upload, and table template preview/auto-fill over a JSON
// {code, msg, data} envelope.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/LilyAva000/office-work/internal/profile"
	"github.com/LilyAva000/office-work/internal/tablefill"
)

const maxRequestBodySize = 1 << 20  // 1MB
const maxAvatarUploadSize = 5 << 20 // 5MB

// AppDeps holds the server's collaborators.
type AppDeps struct {
	Persons      *FileStore
	Filler       *tablefill.Filler
	TemplatesDir string // xlsx/, docx/, preview/ subdirectories
	StaticDir    string // avatars/ and output/ land here, served under /static/
	Logger       *slog.Logger
}

// NewAppHandler builds the full HTTP handler tree.
func NewAppHandler(deps AppDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(RequestLogger(deps.Logger))

	limiter := newLoginLimiter()

	r.Get("/health", handleHealth)
	r.Post("/api/user/login", handleLogin(deps, limiter))
	r.Get("/api/info/{personID}", handleGetInfo(deps))
	r.Put("/api/info/{personID}", handlePutInfo(deps))
	r.Post("/api/info/upload_avatar", handleUploadAvatar(deps))
	r.Get("/api/table/list_preview", handleListTables(deps))
	r.Get("/api/table/preview/{name}", handlePreviewTable(deps))
	r.Post("/api/table/autofill", handleAutofill(deps))

	fs := http.StripPrefix("/static/", http.FileServer(http.Dir(deps.StaticDir)))
	r.Get("/static/*", fs.ServeHTTP)

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, "ok", nil)
}

// loginLimiter throttles login attempts per client address.
type loginLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newLoginLimiter() *loginLimiter {
	return &loginLimiter{limiters: make(map[string]*rate.Limiter)}
}

// allow reports whether a login attempt from addr may proceed. Each address
// gets a burst of 5 and refills at one attempt per second.
func (l *loginLimiter) allow(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	l.mu.Lock()
	lim, ok := l.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Second), 5)
		l.limiters[host] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func handleLogin(deps AppDeps, limiter *loginLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.allow(r.RemoteAddr) {
			httpError(w, http.StatusTooManyRequests, "too many login attempts, try again later")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if req.Username == "" || req.Password == "" {
			httpError(w, http.StatusBadRequest, "username and password are required")
			return
		}

		if err := deps.Persons.Authenticate(req.Username, req.Password); err != nil {
			if errors.Is(err, ErrBadCredentials) {
				httpError(w, http.StatusUnauthorized, "invalid username or password")
				return
			}
			deps.Logger.Error("login check failed", "error", err)
			httpError(w, http.StatusInternalServerError, "login check failed")
			return
		}

		respond(w, http.StatusOK, "login successful", map[string]string{
			"username": req.Username,
		})
	}
}

func handleGetInfo(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "personID")

		doc, err := deps.Persons.LoadPerson(id)
		if errors.Is(err, ErrPersonNotFound) {
			httpError(w, http.StatusNotFound, "person %s not found", id)
			return
		}
		if err != nil {
			deps.Logger.Error("load person failed", "person_id", id, "error", err)
			httpError(w, http.StatusInternalServerError, "failed to load person info")
			return
		}

		respond(w, http.StatusOK, "ok", map[string]any{
			"person_id": id,
			"info":      doc,
		})
	}
}

type putInfoRequest struct {
	PersonInfo profile.Document `json:"person_info"`
}

func handlePutInfo(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "personID")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req putInfoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if err := req.PersonInfo.Validate(); err != nil {
			httpError(w, http.StatusBadRequest, "invalid person info: %v", err)
			return
		}

		if err := deps.Persons.SavePerson(id, req.PersonInfo); err != nil {
			if errors.Is(err, ErrPersonNotFound) {
				httpError(w, http.StatusNotFound, "person %s not found", id)
				return
			}
			deps.Logger.Error("save person failed", "person_id", id, "error", err)
			httpError(w, http.StatusInternalServerError, "failed to save person info")
			return
		}

		respond(w, http.StatusOK, "updated", nil)
	}
}

func handleUploadAvatar(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxAvatarUploadSize)
		if err := r.ParseMultipartForm(maxAvatarUploadSize); err != nil {
			httpError(w, http.StatusBadRequest, "invalid multipart form: %v", err)
			return
		}

		personID := r.FormValue("person_id")
		if personID == "" {
			httpError(w, http.StatusBadRequest, "person_id is required")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "file is required: %v", err)
			return
		}
		defer file.Close()

		doc, err := deps.Persons.LoadPerson(personID)
		if errors.Is(err, ErrPersonNotFound) {
			httpError(w, http.StatusNotFound, "person %s not found", personID)
			return
		}
		if err != nil {
			deps.Logger.Error("load person failed", "person_id", personID, "error", err)
			httpError(w, http.StatusInternalServerError, "failed to load person info")
			return
		}

		ext := filepath.Ext(header.Filename)
		if ext == "" {
			ext = ".png"
		}
		name := fmt.Sprintf("%s-%s%s", personID, uuid.New().String()[:8], ext)

		avatarsDir := filepath.Join(deps.StaticDir, "avatars")
		if err := os.MkdirAll(avatarsDir, 0o755); err != nil {
			deps.Logger.Error("create avatars dir failed", "error", err)
			httpError(w, http.StatusInternalServerError, "failed to store avatar")
			return
		}
		out, err := os.Create(filepath.Join(avatarsDir, name))
		if err != nil {
			deps.Logger.Error("create avatar file failed", "error", err)
			httpError(w, http.StatusInternalServerError, "failed to store avatar")
			return
		}
		if _, err := out.ReadFrom(file); err != nil {
			out.Close()
			deps.Logger.Error("write avatar failed", "error", err)
			httpError(w, http.StatusInternalServerError, "failed to store avatar")
			return
		}
		out.Close()

		avatarPath := "static/avatars/" + name
		if doc.BasicInfo.PersonalInfo == nil {
			doc.BasicInfo.PersonalInfo = make(map[string]string)
		}
		doc.BasicInfo.PersonalInfo["照片"] = avatarPath
		if err := deps.Persons.SavePerson(personID, doc); err != nil {
			deps.Logger.Error("save person failed", "person_id", personID, "error", err)
			httpError(w, http.StatusInternalServerError, "avatar stored but profile update failed")
			return
		}

		respond(w, http.StatusOK, "avatar uploaded", map[string]string{
			"avatar": avatarPath,
		})
	}
}

// handleListTables reports the fillable template names.
func handleListTables(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := deps.Filler.TemplateNames()
		if err != nil {
			deps.Logger.Error("list templates failed", "error", err)
			httpError(w, http.StatusInternalServerError, "failed to list templates")
			return
		}
		if names == nil {
			names = []string{}
		}

		respond(w, http.StatusOK, "ok", names)
	}
}

// handlePreviewTable serves the pre-rendered PDF preview for a template.
func handlePreviewTable(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		base := strings.SplitN(name, ".", 2)[0]
		if base == "" || strings.Contains(base, "/") || strings.Contains(base, "..") {
			httpError(w, http.StatusBadRequest, "invalid template name")
			return
		}

		path := filepath.Join(deps.TemplatesDir, "preview", base+".pdf")
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			httpError(w, http.StatusNotFound, "no preview for %s", name)
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", base+".pdf"))
		http.ServeFile(w, r, path)
	}
}

type autofillRequest struct {
	TableName string   `json:"table_name"`
	Persons   []string `json:"persons"`
}

func handleAutofill(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req autofillRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if req.TableName == "" {
			httpError(w, http.StatusBadRequest, "table_name is required")
			return
		}
		if len(req.Persons) == 0 {
			httpError(w, http.StatusBadRequest, "persons must not be empty")
			return
		}

		persons := make([]tablefill.PersonData, 0, len(req.Persons))
		for _, id := range req.Persons {
			doc, err := deps.Persons.LoadPerson(id)
			if errors.Is(err, ErrPersonNotFound) {
				httpError(w, http.StatusNotFound, "person %s not found", id)
				return
			}
			if err != nil {
				deps.Logger.Error("load person failed", "person_id", id, "error", err)
				httpError(w, http.StatusInternalServerError, "failed to load person info")
				return
			}
			persons = append(persons, tablefill.PersonData{ID: id, Doc: doc})
		}

		name, err := deps.Filler.Fill(r.Context(), req.TableName, persons)
		if errors.Is(err, tablefill.ErrInvalidTableType) || errors.Is(err, tablefill.ErrTemplateNotFound) {
			httpError(w, http.StatusBadRequest, "%v", err)
			return
		}
		if err != nil {
			deps.Logger.Error("autofill failed", "table", req.TableName, "error", err)
			httpError(w, http.StatusInternalServerError, "failed to fill table")
			return
		}

		respond(w, http.StatusOK, "table filled", "static/output/"+name)
	}
}
