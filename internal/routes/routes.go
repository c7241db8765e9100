package routes

import (
	"io/fs"
	"net/http"

	"github.com/templui/authapi/internal/app"
	"github.com/templui/authapi/internal/handler"
	"github.com/templui/authapi/internal/middleware"
	"github.com/templui/authapi/internal/storage"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	home := handler.NewHomeHandler(app.Cfg.AppName, app.DB)
	auth := handler.NewAuthHandler(app.AccountService, app.Cfg.ExposeResetToken)
	user := handler.NewUserHandler(app.AccountService, app.Cfg.MaxUploadSize)

	requireAuth := middleware.RequireAuth(app.AccountService)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /{$}", home.Root)
	mux.HandleFunc("GET /health", home.Health)

	// Avatars: straight from disk, or a redirect to the bucket object.
	if local, ok := app.Storage.(*storage.LocalStorage); ok {
		files := http.FileServer(noDirListing{http.Dir(local.Dir())})
		mux.Handle("GET "+storage.LocalURLPrefix+"/", http.StripPrefix(storage.LocalURLPrefix+"/", files))
	} else {
		avatars := handler.NewAvatarHandler(app.AvatarService)
		mux.HandleFunc("GET "+storage.LocalURLPrefix+"/{name}", avatars.Redirect)
	}

	// Auth
	mux.HandleFunc("POST /api/signup", auth.Signup)
	mux.HandleFunc("POST /api/login", auth.Login)
	mux.HandleFunc("POST /api/forgot-password", auth.ForgotPassword)
	mux.HandleFunc("POST /api/reset-password", auth.ResetPassword)

	// ============================================================================
	// PROTECTED ROUTES
	// ============================================================================

	mux.Handle("GET /api/user/{id}", requireAuth(http.HandlerFunc(user.GetUser)))
	mux.Handle("PUT /api/user/me", requireAuth(http.HandlerFunc(user.UpdateMe)))
	mux.Handle("DELETE /api/user/me/photo", requireAuth(http.HandlerFunc(user.DeletePhoto)))

	// 404
	mux.HandleFunc("/{path...}", home.NotFound)

	// Global middleware - executed in order (top to bottom)
	return middleware.Chain(
		mux,
		middleware.RequestLogging,
		middleware.Recover,
		middleware.SecurityHeaders,
		middleware.CORS(app.Cfg.CORSOrigins),
	)
}

// noDirListing hides directory indexes of the upload dir.
type noDirListing struct {
	fs http.FileSystem
}

func (n noDirListing) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if stat.IsDir() {
		_ = f.Close()
		return nil, fs.ErrNotExist
	}

	return f, nil
}
