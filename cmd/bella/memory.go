package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"bella/internal/config"
	"bella/internal/mind"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and maintain the memory document",
	Long: `Offline maintenance of the memory document. Stop the bot first: the
running bot owns the file and will overwrite changes made here.`,
}

func init() {
	memoryCmd.AddCommand(
		&cobra.Command{
			Use:   "verify",
			Short: "Check the document on disk without changing it",
			Args:  cobra.NoArgs,
			RunE:  memoryVerify,
		},
		&cobra.Command{
			Use:   "repair",
			Short: "Load, repair and save the document, then take a backup",
			Args:  cobra.NoArgs,
			RunE:  withStore(memoryRepair),
		},
		&cobra.Command{
			Use:   "backup",
			Short: "Take a backup now",
			Args:  cobra.NoArgs,
			RunE:  withStore(memoryBackup),
		},
		&cobra.Command{
			Use:   "restore [file]",
			Short: "Restore from a backup file, or the newest valid backup",
			Args:  cobra.MaximumNArgs(1),
			RunE:  withStore(memoryRestore),
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Drop conversations older than the retention window",
			Args:  cobra.NoArgs,
			RunE:  withStore(memorySweep),
		},
		&cobra.Command{
			Use:   "compact",
			Short: "Summarize the oldest half of oversized histories",
			Args:  cobra.NoArgs,
			RunE:  withStore(memoryCompact),
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Print document statistics",
			Args:  cobra.NoArgs,
			RunE:  withStore(memoryStats),
		},
	)
}

type storeAction func(out io.Writer, store *mind.Store, args []string) error

// withStore opens the configured store for a maintenance action.
func withStore(action storeAction) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, logger, closer, err := setup()
		if err != nil {
			return err
		}
		defer closer.Close()
		store, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		return action(cmd.OutOrStdout(), store, args)
	}
}

func openStore(cfg *config.Config, logger *slog.Logger) (*mind.Store, error) {
	return mind.Open(storeOptions(cfg), logger)
}

func memoryVerify(cmd *cobra.Command, _ []string) error {
	cfg, _, closer, err := setup()
	if err != nil {
		return err
	}
	defer closer.Close()

	problems, err := mind.VerifyFile(cfg.Memory.Path)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(problems) == 0 {
		fmt.Fprintf(out, "✅ %s is intact\n", cfg.Memory.Path)
		return nil
	}
	fmt.Fprintf(out, "❌ %s has %d problem(s):\n", cfg.Memory.Path, len(problems))
	for _, p := range problems {
		fmt.Fprintf(out, "  • %s\n", p)
	}
	return fmt.Errorf("memory document failed verification")
}

func memoryRepair(out io.Writer, store *mind.Store, _ []string) error {
	rep := store.Report()
	switch {
	case rep.Fresh:
		fmt.Fprintln(out, "No usable document was found, a fresh one was created.")
	case !rep.Changed():
		fmt.Fprintln(out, "Nothing to repair.")
	}
	for _, k := range rep.Backfilled {
		fmt.Fprintf(out, "  + backfilled %s\n", k)
	}
	for _, k := range rep.Repaired {
		fmt.Fprintf(out, "  ~ repaired %s\n", k)
	}
	path, err := store.BackupNow()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Backup written to %s\n", path)
	return nil
}

func memoryBackup(out io.Writer, store *mind.Store, _ []string) error {
	path, err := store.BackupNow()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Backup written to %s\n", path)
	return nil
}

func memoryRestore(out io.Writer, store *mind.Store, args []string) error {
	if len(args) == 1 {
		if err := store.RestoreFrom(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(out, "Restored from %s\n", args[0])
		return nil
	}
	path, err := store.RestoreLatest()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Restored from %s\n", path)
	return nil
}

func memorySweep(out io.Writer, store *mind.Store, _ []string) error {
	removed, ran, err := store.Sweep()
	if err != nil {
		return err
	}
	if !ran {
		fmt.Fprintln(out, "Sweep already ran in the last 24 hours.")
		return nil
	}
	fmt.Fprintf(out, "Removed %d old conversation(s).\n", removed)
	return nil
}

func memoryCompact(out io.Writer, store *mind.Store, _ []string) error {
	n, err := store.Compact()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Compacted %d user histories.\n", n)
	return nil
}

func memoryStats(out io.Writer, store *mind.Store, _ []string) error {
	doc := store.Document()
	conversations := 0
	for _, c := range doc.Conversations {
		conversations += len(c)
	}
	punishments := 0
	for _, p := range doc.PunishmentRules {
		if p != nil && p.Active {
			punishments++
		}
	}
	backups, err := store.Backups()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "📁 %s\n", store.Path())
	fmt.Fprintf(out, "Users:               %d\n", len(doc.Users))
	fmt.Fprintf(out, "Conversations:       %d\n", conversations)
	fmt.Fprintf(out, "Summaries:           %d users\n", len(doc.ConversationSummaries))
	fmt.Fprintf(out, "Emotional states:    %d\n", len(doc.EmotionalStates))
	fmt.Fprintf(out, "Active punishments:  %d\n", punishments)
	fmt.Fprintf(out, "Memorable phrases:   %d\n", len(doc.MemorablePhrases))
	fmt.Fprintf(out, "Errors logged:       %d\n", len(doc.Analytics.ErrorLogs))
	fmt.Fprintf(out, "Backups on disk:     %d\n", len(backups))
	if !doc.LastCleaned.IsZero() {
		fmt.Fprintf(out, "Last cleaned:        %s\n", doc.LastCleaned.Format("2006-01-02 15:04"))
	}
	return nil
}
