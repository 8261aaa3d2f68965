package slipway

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/slipwaylabs/slipway/internal/bootstrap"
	"github.com/slipwaylabs/slipway/internal/builder"
	"github.com/slipwaylabs/slipway/internal/config"
	"github.com/slipwaylabs/slipway/internal/fsys"
	"github.com/slipwaylabs/slipway/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	runWorkDir   string
	runPort      int
	runLogLevel  string
	runSupervise bool
)

var runCmd = &cobra.Command{
	Use:   "run [-- command...]",
	Short: "Bootstrap the service as the foreground process",
	Long: `Run is the container entry point: it establishes the working directory,
emits a diagnostic line, and replaces itself with the service process so
that signals reach the service directly and its exit code becomes the
container's exit code.

The command comes from the arguments after "--", from slipway.toml, or from
the artifact metadata written by a previous build. Bootstrap-phase failures
exit with reserved codes (71: working directory missing, 72: launch failed);
service exit codes pass through verbatim.`,
	Run: func(cmd *cobra.Command, args []string) {
		code, err := runBootstrap(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Bootstrap failed: %v\n", err)
		}
		if code != 0 {
			os.Exit(code)
		}
	},
}

func runBootstrap(args []string) (int, error) {
	level, err := log.ParseLevel(runLogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{Level: level})

	cfg, err := resolveRunConfig(args)
	if err != nil {
		return bootstrap.ExitLaunch, err
	}

	if runPort != 0 {
		base := cfg.Env
		if base == nil {
			base = os.Environ()
		}
		cfg.Env = mergeEnv(base, map[string]string{"PORT": fmt.Sprintf("%d", runPort)})
		logger.Info("listening", "addr", fmt.Sprintf("0.0.0.0:%d", runPort))
	}

	ctx := context.Background()
	filesystem := fsys.NewOSFS()

	if runSupervise {
		// Local supervision mode: run the service as a child under the
		// configured restart policy instead of replacing the process
		policy, err := bootstrap.PolicyFromName(restartPolicyName("."))
		if err != nil {
			return bootstrap.ExitLaunch, err
		}

		supervisor := bootstrap.NewSupervisor(filesystem,
			bootstrap.WithLauncher(bootstrap.NewChildLauncher()),
			bootstrap.WithLogger(logger))
		outcome := bootstrap.Supervise(ctx, supervisor, cfg, policy)
		return outcome.Code, outcome.Err
	}

	supervisor := bootstrap.NewSupervisor(filesystem, bootstrap.WithLogger(logger))
	outcome := supervisor.Run(ctx, cfg)
	// With the process-replacing launcher, reaching this point means the
	// launch never happened
	return outcome.Code, outcome.Err
}

func resolveRunConfig(args []string) (bootstrap.Config, error) {
	cfg := bootstrap.Config{WorkDir: runWorkDir}

	if len(args) > 0 {
		cfg.Command = args
	}

	// Fill the gaps from project config, then from artifact metadata
	if cfg.Command == nil || cfg.WorkDir == "" {
		if projectCfg, err := config.Load(fsys.NewOSFS(), "."); err == nil {
			if cfg.WorkDir == "" {
				cfg.WorkDir = projectCfg.WorkDir
			}
			if cfg.Command == nil && len(projectCfg.Command) > 0 {
				cfg.Command = projectCfg.Command
			}
		}
	}
	if artifact, err := builder.ReadArtifact("."); err == nil {
		if cfg.Command == nil {
			cfg.Command = artifact.Command
			if runWorkDir == "" {
				cfg.WorkDir = artifact.WorkDir
			}
		}
		if len(artifact.Env) > 0 {
			cfg.Env = mergeEnv(os.Environ(), artifact.Env)
		}
	}

	if cfg.WorkDir == "" {
		cfg.WorkDir = config.DefaultWorkDir
	}
	if len(cfg.Command) == 0 {
		return cfg, fmt.Errorf("no command to run: pass one after --, or build first")
	}
	return cfg, nil
}

// mergeEnv overlays extra variables onto a base environment: base entries
// whose key is redeclared are dropped, then the extras append in sorted key
// order so the launch environment is deterministic
func mergeEnv(base []string, extra map[string]string) []string {
	merged := make([]string, 0, len(base)+len(extra))
	for _, entry := range base {
		if idx := strings.Index(entry, "="); idx > 0 {
			if _, shadowed := extra[entry[:idx]]; shadowed {
				continue
			}
		}
		merged = append(merged, entry)
	}

	keys := make([]string, 0, len(extra))
	for key := range extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		merged = append(merged, key+"="+extra[key])
	}
	return merged
}

// restartPolicyName resolves the supervision policy: an explicit
// slipway.toml setting, then the policy the scaffold scan found in a
// compose file, then the default
func restartPolicyName(sourcePath string) string {
	filesystem := fsys.NewOSFS()

	if data, err := filesystem.ReadFile(filesystem.Join(sourcePath, config.ConfigFileName)); err == nil {
		var fileCfg config.Config
		if toml.Unmarshal(data, &fileCfg) == nil && fileCfg.Deploy.RestartPolicy != "" {
			return fileCfg.Deploy.RestartPolicy
		}
	}

	if profile, err := scaffold.NewScanner(filesystem).Scan(context.Background(), sourcePath); err == nil && profile.RestartPolicy != "" {
		return profile.RestartPolicy
	}

	return "unless-stopped"
}

func init() {
	runCmd.Flags().StringVar(&runWorkDir, "workdir", "", "working directory to establish before launch")
	runCmd.Flags().IntVarP(&runPort, "port", "p", 0, "port override, exported to the service as PORT")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "info", "diagnostic log level")
	runCmd.Flags().BoolVar(&runSupervise, "supervise", false, "run as a supervised child instead of replacing the process")
	rootCmd.AddCommand(runCmd)
}
