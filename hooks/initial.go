package hooks

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akyaiy/GoSally-connector/internal/core/corestate"
	"github.com/akyaiy/GoSally-connector/internal/core/run_manager"
	"github.com/akyaiy/GoSally-connector/internal/engine/app"
	"github.com/akyaiy/GoSally-connector/internal/engine/config"
	"github.com/akyaiy/GoSally-connector/internal/engine/logs"
)

var Compositor *config.Compositor = config.NewCompositor()

func Init0Hook(cs *corestate.CoreState, x *app.AppX) {
	x.Config = Compositor
	x.Log.SetOutput(os.Stdout)
	x.Log.SetPrefix(logs.SetBrightBlack(fmt.Sprintf("(%s) ", corestate.StageNotReady)))
	x.Log.SetFlags(log.Ldate | log.Ltime)
}

// First stage: pre-init
func Init1Hook(cs *corestate.CoreState, x *app.AppX) {
	*cs = corestate.CoreState{
		NodeBinName:        filepath.Base(os.Args[0]),
		NodeVersion:        config.NodeVersion,
		Stage:              corestate.StagePreInit,
		StartTimestampUnix: time.Now().Unix(),
	}
	x.Log.SetPrefix(logs.SetBlue(fmt.Sprintf("(%s) ", cs.Stage)))
}

// LoadConfig reads the environment and the config file. The --config flag
// wins over CONNECTOR_CONFIG_PATH.
func LoadConfig(x *app.AppX) error {
	if err := x.Config.LoadEnv(); err != nil {
		return fmt.Errorf("env load error: %w", err)
	}
	if x.Config.CMDLine != nil {
		if cfgPath := x.Config.CMDLine.Node.ConfigPath; cfgPath != "" {
			x.Config.Env.ConfigPath = &cfgPath
		}
	}
	if err := x.Config.LoadConf(*x.Config.Env.ConfigPath); err != nil {
		return fmt.Errorf("conf load error: %w", err)
	}
	if x.Config.CMDLine != nil && x.Config.CMDLine.Node.Debug {
		debug := "debug"
		x.Config.Conf.Log.Level = &debug
	}
	return nil
}

func Init2Hook(cs *corestate.CoreState, x *app.AppX) {
	if err := LoadConfig(x); err != nil {
		x.Log.Fatalf("%s", err)
	}
	if *x.Config.Conf.Connector.Token == "" {
		x.Log.Fatalf("connector.token must be set")
	}
}

// DataDir resolves node.data_dir against the node path.
func DataDir(x *app.AppX) string {
	return resolvePath(*x.Config.Env.NodePath, *x.Config.Conf.Node.DataDir)
}

func Init3Hook(cs *corestate.CoreState, x *app.AppX) {
	cs.DataDir = DataDir(x)
	cs.MetaDir = filepath.Join(cs.DataDir, config.MetaDir)
	if err := os.MkdirAll(cs.DataDir, 0755); err != nil {
		x.Log.Fatalf("Cannot create data dir: %s", err.Error())
	}

	nodeID, err := corestate.LoadNodeID(cs.MetaDir)
	if err != nil {
		x.Log.Fatalf("node id load error: %s", err)
	}
	cs.NodeID = nodeID
	x.Log.Printf("Node id is %s", cs.NodeID)
}

// post-init stage: runtime directory and run.lock
func Init4Hook(cs *corestate.CoreState, x *app.AppX) {
	cs.Stage = corestate.StagePostInit
	x.Log.SetPrefix(logs.SetYellow(fmt.Sprintf("(%s) ", cs.Stage)))

	rm, err := run_manager.Create(cs.NodeID)
	if err != nil {
		x.Log.Fatalf("Unexpected failure: %s", err.Error())
	}
	cs.Run = rm

	n, err := rm.CleanStale()
	if errors.Is(err, run_manager.ErrNodeRunning) {
		_ = rm.Clean()
		x.Log.Fatalf("Unable to continue node operation: %s", err.Error())
	}
	if err != nil {
		x.Log.Printf("%s: stale runtime cleanup: %s", logs.PrintWarn(), err.Error())
	}
	if n > 0 {
		x.Log.Printf("Removed %d stale runtime directories", n)
	}

	if _, err := rm.WriteLock(run_manager.LockInfo{
		PID:     os.Getpid(),
		Version: cs.NodeVersion,
		NodeID:  cs.NodeID,
		Started: time.Unix(cs.StartTimestampUnix, 0),
	}); err != nil {
		_ = rm.Clean()
		x.Log.Fatalf("Unexpected failure: %s", err.Error())
	}
}

func Init5Hook(cs *corestate.CoreState, x *app.AppX) {
	if os.TempDir() != "/tmp" {
		x.Log.Printf("%s: %s", logs.PrintWarn(), "Non-standard value specified for temporary directory")
	}
	if out := *x.Config.Conf.Log.OutPath; strings.Contains(out, "%tmp%") {
		replaced := strings.ReplaceAll(out, "%tmp%", filepath.Clean(cs.Run.Dir()))
		x.Config.Conf.Log.OutPath = &replaced
	}
	if *x.Config.Conf.Node.ShowConfig {
		fmt.Println("Configuration:")
		x.Config.Print(os.Stdout, x.Config.Conf)
	}
}

func Init6Hook(cs *corestate.CoreState, x *app.AppX) {
	cs.Stage = corestate.StageReady
	x.Log.SetPrefix(logs.SetGreen(fmt.Sprintf("(%s) ", cs.Stage)))

	logger, closer, err := logs.SetupLogger(x.Config.Conf.Log, x.Level)
	if err != nil {
		_ = cs.Run.Clean()
		x.Log.Fatalf("Unexpected failure: %s", err.Error())
	}
	x.SLog = logger.With(slog.String("node", *x.Config.Conf.Node.Name))
	x.LogCloser = closer
}

func resolvePath(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
