package main

import (
	"fmt"
	"log"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/NamiraNet/namira-pool/internal/api"
	"github.com/NamiraNet/namira-pool/internal/config"
)

// Build-time variables (injected via -ldflags)
var (
	version   = "dev"     // Default for development
	commit    = "unknown" // Git commit hash
	date      = "unknown" // Build date
	goVersion = runtime.Version()
	platform  = runtime.GOOS + "/" + runtime.GOARCH

	cfg = config.Load()
)

func getVersionInfo() string {
	commitHash := commit
	if len(commit) > 8 {
		commitHash = commit[:8]
	}
	return fmt.Sprintf("namira-pool %s (%s) built with %s on %s at %s",
		version, commitHash, goVersion, platform, date)
}

func versionInfo() api.VersionInfo {
	return api.VersionInfo{
		Version:   version,
		Commit:    commit,
		Date:      date,
		GoVersion: goVersion,
		Platform:  platform,
	}
}

var rootCmd = &cobra.Command{
	Use:     "namira-pool",
	Version: version,
	Short:   "Bounded multi-queue worker pool",
	Long: `namira-pool runs tasks on a fixed set of bounded FIFO queues, each drained by its own workers.
Tasks that find every queue full are discarded, and the run reports wait times, queue saturation and drop rate.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(getVersionInfo())
	},
}

// addPolicyFlags binds the reject policy settings shared by run and serve.
func addPolicyFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&cfg.Pool.RejectPolicy, "policy", cfg.Pool.RejectPolicy, "Reject policy: drop, retry")
	cmd.Flags().IntVar(&cfg.Pool.RetryAttempts, "retry-attempts", cfg.Pool.RetryAttempts, "Extra placement rounds under the retry policy")
	cmd.Flags().DurationVar(&cfg.Pool.RetryBackoff, "retry-backoff", cfg.Pool.RetryBackoff, "Backoff step between retry rounds, grows linearly")
}

func init() {
	rootCmd.SetVersionTemplate(getVersionInfo() + "\n")
	rootCmd.AddCommand(runCmd, serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
