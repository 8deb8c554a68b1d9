package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"semaphore/classroom/internal/auth"
	"semaphore/classroom/internal/classes"
	"semaphore/classroom/internal/config"
	"semaphore/classroom/internal/enrollment"
	"semaphore/classroom/internal/exercise"
	"semaphore/classroom/internal/operations"
	"semaphore/classroom/internal/profiles"
)

type Server struct {
	cfg        config.Config
	profiles   *profiles.Service
	classes    *classes.Service
	enrollment *enrollment.Service
	exercises  *exercise.Service
}

func NewServer(cfg config.Config, profileService *profiles.Service, classService *classes.Service, enrollmentService *enrollment.Service, exerciseService *exercise.Service) *Server {
	return &Server{
		cfg:        cfg,
		profiles:   profileService,
		classes:    classService,
		enrollment: enrollmentService,
		exercises:  exerciseService,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.With(s.authMiddleware).Get("/users/me", s.handleGetMe)
	r.With(s.authMiddleware).Put("/users/me", s.handleUpdateMe)
	r.With(s.authMiddleware, s.profileMiddleware).Post("/users/me/avatar", s.handleUploadAvatar)

	r.Route("/classes", func(r chi.Router) {
		r.Use(s.authMiddleware, s.profileMiddleware)
		r.Post("/", s.handleCreateClass)
		r.Get("/", s.handleListClasses)
		r.Get("/{id}", s.handleGetClass)
		r.Put("/{id}", s.handleUpdateClass)
		r.Delete("/{id}", s.handleDeleteClass)
		r.Post("/{id}/join", s.handleJoinClass)
		r.Get("/{id}/pending", s.handleListPending)
		r.Post("/{id}/approve/{studentId}", s.handleApproveStudent)
		r.Delete("/{id}/leave", s.handleLeaveClass)
		r.Get("/{id}/students", s.handleListStudents)
	})

	// The first segment after /exercises is a class id or an exercise id
	// depending on the route; both share one param name so chi can branch.
	r.Route("/exercises", func(r chi.Router) {
		r.Use(s.authMiddleware, s.profileMiddleware)
		r.Get("/teacher/overview", s.handleOverview)
		r.Get("/me/submissions", s.handleMySubmissions)
		r.Get("/class/{classId}", s.handleListExercises)
		r.Post("/{id}/create", s.handleCreateExercise)
		r.Put("/{id}/update", s.handleUpdateExercise)
		r.Delete("/{id}/delete", s.handleDeleteExercise)
		r.Get("/{id}/my-submission", s.handleMySubmission)
		r.Get("/{id}/{exerciseId}", s.handleGetExercise)
		r.Post("/{id}/{exerciseId}/submit", s.handleSubmit)
		r.Get("/{id}/{exerciseId}/submissions", s.handleListSubmissions)
		r.Put("/{id}/{exerciseId}/submissions/{submissionId}/grade", s.handleGrade)
	})

	return r
}

// Auth

type actorKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token", "")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "token_expired", "")
				return
			}
			writeError(w, http.StatusUnauthorized, "invalid_token", "")
			return
		}
		role, _ := auth.ParseRole(claims.UserType)
		actor := auth.Actor{IdentityID: claims.UserID, Role: role, Email: claims.Email}
		ctx := context.WithValue(r.Context(), actorKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// profileMiddleware binds the caller to their profile. Only /users/me works
// without one.
func (s *Server) profileMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := s.profiles.Resolve(r.Context(), actorFromContext(r.Context()))
		if err != nil {
			writeOpError(w, "resolve profile", err)
			return
		}
		ctx := context.WithValue(r.Context(), actorKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFromContext(ctx context.Context) auth.Actor {
	actor, _ := ctx.Value(actorKey{}).(auth.Actor)
	return actor
}

// Responses

type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type errorEnvelope struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Message string   `json:"message,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

func writeOK(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func writeOpError(w http.ResponseWriter, op string, err error) {
	opErr, ok := operations.As(err)
	if !ok {
		log.Printf("%s failed: %v", op, err)
		writeError(w, http.StatusInternalServerError, "server_error", "")
		return
	}
	writeJSON(w, statusFor(opErr.Kind), errorEnvelope{
		Error:   opErr.Code,
		Message: opErr.Message,
		Errors:  opErr.Fields,
	})
}

func statusFor(kind operations.Kind) int {
	switch kind {
	case operations.KindNotFound:
		return http.StatusNotFound
	case operations.KindForbidden:
		return http.StatusForbidden
	case operations.KindConflict, operations.KindCapacityExceeded:
		return http.StatusConflict
	case operations.KindInvalidInput:
		return http.StatusBadRequest
	case operations.KindUploadFailure:
		return http.StatusFailedDependency
	case operations.KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Utilities

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, operations.ErrInvalidRequest, err.Error())
}

func queryInt(r *http.Request, key string) int {
	value, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return value
}

func queryBool(r *http.Request, key string) *bool {
	value, err := strconv.ParseBool(r.URL.Query().Get(key))
	if err != nil {
		return nil
	}
	return &value
}

func pageQuery(r *http.Request) exercise.PageQuery {
	return exercise.PageQuery{Page: queryInt(r, "page"), Limit: queryInt(r, "limit")}
}
