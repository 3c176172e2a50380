package hooks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/akyaiy/GoSally-connector/internal/connector/application"
	"github.com/akyaiy/GoSally-connector/internal/connector/attachment"
	"github.com/akyaiy/GoSally-connector/internal/connector/auth"
	"github.com/akyaiy/GoSally-connector/internal/connector/event"
	"github.com/akyaiy/GoSally-connector/internal/connector/plugin"
	"github.com/akyaiy/GoSally-connector/internal/connector/settings"
	"github.com/akyaiy/GoSally-connector/internal/core/corestate"
	"github.com/akyaiy/GoSally-connector/internal/core/sqlitedb"
	"github.com/akyaiy/GoSally-connector/internal/core/utils"
	"github.com/akyaiy/GoSally-connector/internal/endpoint/mirror"
	"github.com/akyaiy/GoSally-connector/internal/engine/app"
	"github.com/akyaiy/GoSally-connector/internal/engine/config"
	"github.com/akyaiy/GoSally-connector/internal/engine/logs"
	"github.com/akyaiy/GoSally-connector/internal/server/gateway"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"
)

// SessionCleanupInterval is how often expired sessions are purged while serving.
const SessionCleanupInterval = time.Minute

var nodeApp = app.New()

func Run(cmd *cobra.Command, args []string) {
	nodeApp.InitialHooks(
		Init0Hook, Init1Hook, Init2Hook,
		Init3Hook, Init4Hook, Init5Hook,
		Init6Hook,
	)

	nodeApp.Run(RunHook)
}

// BuildApplication wires the mirror endpoint, the plugins and the pipeline
// on top of an opened stack.
func BuildApplication(cs *corestate.CoreState, x *app.AppX, st *Stack) (*application.Application, func(), error) {
	conf := x.Config.Conf
	connector := conf.Connector

	validator, err := auth.New(*connector.TokenMode, *connector.Token)
	if err != nil {
		return nil, nil, fmt.Errorf("token validator: %w", err)
	}

	cfg, err := settings.Open(filepath.Join(cs.DataDir, SettingsDir))
	if err != nil {
		return nil, nil, fmt.Errorf("connector settings: %w", err)
	}

	mirrorDB, err := sqlitedb.Open(filepath.Join(cs.DataDir, MirrorDBName))
	if err != nil {
		return nil, nil, err
	}
	endpoint, err := mirror.New(mirror.Options{
		DB:        mirrorDB,
		Links:     st.Links,
		Validator: validator,
		ImageDir:  filepath.Join(cs.DataDir, ImagesDir),
		Version:   cs.NodeVersion,
		Log:       x.SLog.With(slog.String("endpoint", mirror.Namespace)),
	})
	if err != nil {
		mirrorDB.Close()
		return nil, nil, err
	}

	features := *connector.FeaturesFile
	if features == "" {
		features = filepath.Join(cs.DataDir, "features.json")
	}

	a, err := application.New(application.Options{
		Endpoint:       endpoint,
		Sessions:       st.Sessions,
		Settings:       cfg,
		Bus:            event.NewBus(),
		Plugins:        plugin.NewLoader(resolvePath(*x.Config.Env.NodePath, *conf.Node.PluginDir), *connector.IsolatePluginFaults, x.SLog),
		Resolver:       attachment.NewResolver(&http.Client{Timeout: *connector.FetchTimeout}, x.SLog, attachment.DefaultMaxExtractSize),
		TempDir:        requestTempDir(cs, conf),
		FeaturesFile:   features,
		AuthDelay:      *connector.AuthDelay,
		MaxUploadBytes: *conf.HTTPServer.MaxUpload,
		Level:          x.Level,
		BaseLevel:      logs.ParseLevel(*conf.Log.Level),
		Log:            x.SLog,
	})
	if err != nil {
		mirrorDB.Close()
		return nil, nil, err
	}
	return a, func() { mirrorDB.Close() }, nil
}

// requestTempDir is where uploads and extracted archives live.
func requestTempDir(cs *corestate.CoreState, conf *config.Conf) string {
	if dir := utils.SafeFetch(conf.Node.TempDir, ""); dir != "" {
		return dir
	}
	return cs.Run.Dir()
}

func RunHook(ctx context.Context, cs *corestate.CoreState, x *app.AppX) error {
	ctxMain, cancelMain := context.WithCancel(ctx)
	defer cancelMain()
	conf := x.Config.Conf

	nodeApp.Fallback(func(ctx context.Context, cs *corestate.CoreState, x *app.AppX) {
		_ = cs.Run.Clean()
	})

	st, err := OpenStack(ctxMain, conf, cs.DataDir, x.SLog)
	if err != nil {
		return err
	}
	connectorApp, closeApp, err := BuildApplication(cs, x, st)
	if err != nil {
		st.Close()
		return err
	}

	gs := gateway.InitGateway(&gateway.GatewayServerInit{
		Log:            x.SLog,
		App:            connectorApp,
		TempDir:        requestTempDir(cs, conf),
		MaxUploadBytes: *conf.HTTPServer.MaxUpload,
	})

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Encoding", gateway.HeaderSession},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	gs.Mount(r, *conf.HTTPServer.Route)
	r.Route("/favicon.ico", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})

	addr := net.JoinHostPort(*conf.HTTPServer.Address, *conf.HTTPServer.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  *conf.HTTPServer.Timeout,
		WriteTimeout: *conf.HTTPServer.Timeout,
		IdleTimeout:  *conf.HTTPServer.IdleTimeout,
		ErrorLog: log.New(&logs.SlogWriter{
			Logger: x.SLog,
			Level:  slog.LevelError,
		}, "", 0),
	}

	nodeApp.Fallback(func(ctx context.Context, cs *corestate.CoreState, x *app.AppX) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			x.Log.Printf("%s: Failed to stop the server gracefully: %s", logs.PrintError(), err.Error())
		} else {
			x.Log.Printf("Server stopped gracefully")
		}

		x.Log.Println("Cleaning up...")
		closeApp()
		st.Close()
		if err := cs.Run.Clean(); err != nil {
			x.Log.Printf("%s: Cleanup error: %s", logs.PrintError(), err.Error())
		}
		if x.LogCloser != nil {
			x.LogCloser.Close()
		}
		x.Log.Println("bye!")
	})

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start listener: %w", err)
	}
	limitedListener := netutil.LimitListener(listener, *conf.HTTPServer.MaxConns)

	go func() {
		defer utils.CatchPanicWithFallback(func(rec any, stack []byte) {
			x.SLog.Error("server panicked", slog.Any("panic", rec), slog.String("stack", string(stack)))
			cancelMain()
		})
		var err error
		if *conf.TLS.TlsEnabled {
			x.Log.Printf("Serving on %s with TLS... (https://%s%s)", addr, addr, *conf.HTTPServer.Route)
			err = srv.ServeTLS(limitedListener, *conf.TLS.CertFile, *conf.TLS.KeyFile)
		} else {
			x.Log.Printf("Serving on %s... (http://%s%s)", addr, addr, *conf.HTTPServer.Route)
			err = srv.Serve(limitedListener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			x.Log.Printf("%s: Failed to start HTTP server: %s", logs.PrintError(), err.Error())
			cancelMain()
		}
	}()

	st.Sessions.StartCleanup(ctxMain, SessionCleanupInterval)
	x.SLog.Info("connector ready",
		slog.String("version", config.NodeVersion),
		slog.String("link-store", *conf.Connector.LinkStore),
		slog.String("endpoint", mirror.Namespace))

	<-ctxMain.Done()
	nodeApp.CallFallback(ctx)
	return nil
}
