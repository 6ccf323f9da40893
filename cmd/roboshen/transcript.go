package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/roboshen/pkg/config"
	"github.com/AltairaLabs/roboshen/runtime/events"
	"github.com/AltairaLabs/roboshen/runtime/transcript"
)

const payloadPreview = 72

var transcriptCmd = &cobra.Command{
	Use:   "transcript [session]",
	Short: "List archived sessions or print one transcript",
	Long: `Without arguments, transcript lists archived sessions, most recent first.
With a session ID it prints that session's entries in order.

Entries come from the Redis transcript store when the manifest selects one,
otherwise they are rebuilt from the recording directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTranscript,
}

func init() {
	flags := transcriptCmd.Flags()
	flags.StringP("config", "c", defaultManifest, "Assistant manifest")
	flags.String("record-dir", "", "Read recordings from this directory")
	flags.IntP("limit", "n", 20, "Maximum sessions to list (0 = all)")
	flags.Bool("full", false, "Print payloads in full")
	rootCmd.AddCommand(transcriptCmd)
}

func runTranscript(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	recordDir, _ := cmd.Flags().GetString("record-dir")
	limit, _ := cmd.Flags().GetInt("limit")
	full, _ := cmd.Flags().GetBool("full")

	assistant, err := config.Load(configFile)
	if err != nil {
		return err
	}
	spec := &assistant.Spec
	if recordDir != "" {
		spec.Recording.Dir = recordDir
	}

	sessionID := ""
	if len(args) == 1 {
		sessionID = args[0]
	}

	archive, closeArchive, err := transcriptSource(cmd, spec, sessionID)
	if err != nil {
		return err
	}
	defer func() { _ = closeArchive() }()

	out := cmd.OutOrStdout()
	if sessionID == "" {
		sessions, err := archive.List(cmd.Context(), limit)
		if err != nil {
			return err
		}
		return printSessions(out, sessions)
	}

	entries, err := archive.Load(cmd.Context(), sessionID)
	if errors.Is(err, transcript.ErrNotFound) || (err == nil && len(entries) == 0) {
		return fmt.Errorf("no transcript for session %s", sessionID)
	}
	if err != nil {
		return err
	}
	printEntries(out, entries, full)
	return nil
}

// transcriptSource picks the Redis archive or a replay of recordings.
func transcriptSource(cmd *cobra.Command, spec *config.AssistantSpec, sessionID string) (transcript.Archive, func() error, error) {
	if spec.Transcript.Store == config.StoreRedis {
		return openArchive(cmd.Context(), &spec.Transcript)
	}
	if spec.Recording.Dir == "" {
		return nil, nil, errors.New("transcripts are kept in memory only; " +
			"set spec.transcript.store to redis or spec.recording.dir to read past sessions")
	}
	store, err := events.NewFileEventStore(spec.Recording.Dir)
	if err != nil {
		return nil, nil, err
	}
	archive, err := replayRecordings(cmd.Context(), store, sessionID)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return archive, store.Close, nil
}

func printSessions(w io.Writer, sessions []transcript.SessionInfo) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No archived sessions")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tENTRIES\tUPDATED")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", s.ID, s.Entries, s.UpdatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func printEntries(w io.Writer, entries []transcript.Entry, full bool) {
	for _, e := range entries {
		payload := e.Payload
		if e.Kind == transcript.KindImage {
			payload = fmt.Sprintf("[image, %d bytes]", len(e.Payload))
		} else if !full {
			payload = preview(payload)
		}
		fmt.Fprintf(w, "%s  %-5s %-5s %s\n", e.Time.Local().Format(time.TimeOnly), e.Role, e.Kind, payload)
	}
}

// preview flattens newlines and truncates to payloadPreview runes.
func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= payloadPreview {
		return s
	}
	return string(r[:payloadPreview-1]) + "…"
}
