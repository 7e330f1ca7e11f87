package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/ayusman/posetrack/internal/config"
	"github.com/ayusman/posetrack/internal/store"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage recorded sessions",
	Long:  `List, inspect and delete sessions recorded by posetrack serve --record.`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show SESSION",
	Short: "Show a recorded session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete SESSION",
	Short: "Delete a recorded session and its frames",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func openStore() (*store.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return store.New(cfg.Storage.Path)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, err := st.Sessions().List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No recorded sessions.")
		return nil
	}

	bold := color.New(color.Bold)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	bold.Fprintln(w, "ID\tNAME\tFRAMES\tDURATION\tCREATED")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			s.ID, s.Name, s.Frames, s.Duration(), s.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	s, err := st.Sessions().GetByID(args[0])
	if err != nil {
		return fmt.Errorf("session %s: %w", args[0], err)
	}
	poses, err := st.Frames().Poses(s.ID)
	if err != nil {
		return fmt.Errorf("failed to load pose samples: %w", err)
	}
	skels, err := st.Frames().Skeletons(s.ID)
	if err != nil {
		return fmt.Errorf("failed to load skeleton frames: %w", err)
	}

	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Println()
	cyan.Println("SESSION " + s.Name)
	fmt.Println()
	fmt.Printf("ID:         %s\n", s.ID)
	fmt.Printf("Frame rate: %d fps\n", s.FrameRate)
	fmt.Printf("Frames:     %d (%s)\n", s.Frames, s.Duration())
	fmt.Printf("Roles:      %v\n", s.Roles)
	fmt.Printf("Created:    %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated:    %s\n", s.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Println()
	fmt.Printf("Pose samples:    %d\n", len(poses))
	fmt.Printf("Skeleton frames: %d\n", len(skels))

	valid := 0
	for _, p := range poses {
		if p.Pose.Valid {
			valid++
		}
	}
	if len(poses) > 0 {
		pct := 100 * float64(valid) / float64(len(poses))
		c := color.New(color.FgGreen)
		if pct < 90 {
			c = color.New(color.FgYellow)
		}
		c.Printf("Valid poses:     %.1f%%\n", pct)
	}
	fmt.Println()
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Sessions().Delete(args[0]); err != nil {
		return fmt.Errorf("session %s: %w", args[0], err)
	}
	color.New(color.FgGreen).Printf("Deleted session %s\n", args[0])
	return nil
}
