package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/AltairaLabs/roboshen/internal/tui"
	"github.com/AltairaLabs/roboshen/pkg/config"
	"github.com/AltairaLabs/roboshen/runtime/audio"
	"github.com/AltairaLabs/roboshen/runtime/audio/portaudio"
	"github.com/AltairaLabs/roboshen/runtime/credentials"
	"github.com/AltairaLabs/roboshen/runtime/events"
	"github.com/AltairaLabs/roboshen/runtime/i18n"
	"github.com/AltairaLabs/roboshen/runtime/live"
	livegemini "github.com/AltairaLabs/roboshen/runtime/live/gemini"
	"github.com/AltairaLabs/roboshen/runtime/logger"
	"github.com/AltairaLabs/roboshen/runtime/media"
	metrics "github.com/AltairaLabs/roboshen/runtime/metrics/prometheus"
	"github.com/AltairaLabs/roboshen/runtime/providers/gemini"
	"github.com/AltairaLabs/roboshen/runtime/providers/imagen"
	"github.com/AltairaLabs/roboshen/runtime/session"
	"github.com/AltairaLabs/roboshen/runtime/telemetry"
	"github.com/AltairaLabs/roboshen/runtime/tools"
	"github.com/AltairaLabs/roboshen/runtime/transcript"
)

const (
	defaultManifest = "roboshen.yaml"
	logFileName     = "roboshen.log"
	shutdownGrace   = 5 * time.Second
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a voice session",
	Long: `Run loads the assistant manifest, opens the microphone and speaker and
drives a session from the terminal UI.

Keys: enter starts (or retries after an error), space interrupts playback,
s stops, c dismisses an error, q quits.`,
	Args: cobra.NoArgs,
	RunE: runAssistant,
}

func init() {
	flags := runCmd.Flags()
	flags.StringP("config", "c", defaultManifest, "Assistant manifest")
	flags.String("record-dir", "", "Record session events as JSONL under this directory")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.Lookup("metrics-addr").NoOptDefVal = config.DefaultMetricsAddr
	flags.String("tracing-endpoint", "", "Export OTLP spans to this endpoint")
	flags.String("locale", "", "UI and persona locale (fa, en)")
	flags.Bool("no-tui", false, "Run headless: start immediately and log state changes")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("record_dir", flags.Lookup("record-dir"))
	_ = viper.BindPFlag("metrics_addr", flags.Lookup("metrics-addr"))
	_ = viper.BindPFlag("tracing_endpoint", flags.Lookup("tracing-endpoint"))
	_ = viper.BindPFlag("locale", flags.Lookup("locale"))
	_ = viper.BindPFlag("no_tui", flags.Lookup("no-tui"))

	rootCmd.AddCommand(runCmd)
}

// runOptions are command-line overrides for the manifest.
type runOptions struct {
	ConfigFile      string
	RecordDir       string
	MetricsAddr     string
	TracingEndpoint string
	Locale          string
	NoTUI           bool
}

func loadRunOptions() runOptions {
	return runOptions{
		ConfigFile:      viper.GetString("config"),
		RecordDir:       viper.GetString("record_dir"),
		MetricsAddr:     viper.GetString("metrics_addr"),
		TracingEndpoint: viper.GetString("tracing_endpoint"),
		Locale:          viper.GetString("locale"),
		NoTUI:           viper.GetBool("no_tui"),
	}
}

// apply overrides manifest fields with the non-empty options.
func (o *runOptions) apply(spec *config.AssistantSpec) {
	if o.RecordDir != "" {
		spec.Recording.Dir = o.RecordDir
	}
	if o.MetricsAddr != "" {
		spec.Metrics.Addr = o.MetricsAddr
	}
	if o.TracingEndpoint != "" {
		spec.Tracing.Endpoint = o.TracingEndpoint
	}
	if o.Locale != "" {
		spec.Locale = o.Locale
	}
}

func runAssistant(cmd *cobra.Command, _ []string) error {
	opts := loadRunOptions()
	assistant, err := config.Load(opts.ConfigFile)
	if err != nil {
		return err
	}
	spec := &assistant.Spec
	opts.apply(spec)
	if !opts.NoTUI && spec.Logging.File == "" {
		spec.Logging.File = defaultLogFile()
	}

	if err := logger.Configure(spec.Logging.ToLoggerSpec()); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	if viper.GetBool("verbose") {
		logger.SetVerbose(true)
	}
	logger.Info("Starting assistant",
		"name", assistant.Metadata.Name,
		"model", spec.Model,
		"persona_version", spec.PersonaVersion,
		"locale", spec.Locale)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, assistant, filepath.Dir(opts.ConfigFile))
	if err != nil {
		return err
	}
	defer a.close()

	return a.run(ctx, opts.NoTUI)
}

// defaultLogFile is where interactive runs log, since the terminal UI owns
// the screen. Without a cache directory logs go to the working directory.
func defaultLogFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return logFileName
	}
	return filepath.Join(dir, "roboshen", logFileName)
}

// app holds everything a running assistant owns.
type app struct {
	name    string
	spec    *config.AssistantSpec
	printer *i18n.Printer

	bus      *events.EventBus
	ctrl     *session.Controller
	backend  *portaudio.Backend
	exporter *metrics.Exporter
	spans    *telemetry.OTelEventListener

	closers []func() error
}

func newApp(ctx context.Context, assistant *config.Assistant, configDir string) (a *app, err error) {
	spec := &assistant.Spec
	a = &app{
		name:    assistant.Metadata.Name,
		spec:    spec,
		printer: i18n.NewPrinter(spec.Locale),
		bus:     events.NewEventBus(),
	}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	cred, err := credentials.Resolve(ctx, credentials.ResolverConfig{
		CredentialEnv:      spec.Credentials.CredentialEnv,
		CredentialFile:     spec.Credentials.CredentialFile,
		ServiceAccountFile: spec.Credentials.ServiceAccountFile,
		UseADC:             spec.Credentials.UseADC,
		ConfigDir:          configDir,
	})
	if err != nil {
		return a, fmt.Errorf("resolve credentials: %w", err)
	}

	if err := a.wireObservers(ctx); err != nil {
		return a, err
	}

	dispatcher, err := buildDispatcher(spec, cred, a.printer)
	if err != nil {
		return a, err
	}

	a.backend, err = portaudio.New()
	if err != nil {
		return a, fmt.Errorf("initialize audio: %w", err)
	}
	a.closers = append(a.closers, a.backend.Close)

	a.ctrl, err = session.New(session.Config{
		Backend:   a.backend,
		Connector: livegemini.NewConnector(livegemini.Config{Credential: cred}),
		Setup: live.Setup{
			Model:             spec.Model,
			Voice:             spec.Voice,
			SystemInstruction: spec.SystemInstruction,
			Transcribe:        spec.Transcribe,
		},
		Dispatcher:        dispatcher,
		Bus:               a.bus,
		Printer:           a.printer,
		CaptureRate:       spec.Audio.CaptureRate,
		PlaybackRate:      spec.Audio.PlaybackRate,
		FrameSize:         spec.Audio.FrameSize,
		SpeakingTolerance: spec.Audio.SpeakingTolerance,
		VAD:               vadParams(spec.Audio.VAD),
	})
	if err != nil {
		return a, err
	}
	return a, nil
}

// wireObservers subscribes the recorder, archive, metrics and span
// listeners to the bus.
func (a *app) wireObservers(ctx context.Context) error {
	spec := a.spec

	if dir := spec.Recording.Dir; dir != "" {
		store, err := events.NewFileEventStore(dir)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, store.Close)
		a.bus.SubscribeAll(events.Recorder(store))
		logger.Info("Recording session events", "dir", dir)
	}

	archive, closeArchive, err := openArchive(ctx, &spec.Transcript)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, closeArchive)
	a.bus.Subscribe(events.EventTranscriptAppended, transcript.Archiver(archive))

	if spec.Metrics.Addr != "" {
		a.exporter = metrics.NewExporter(spec.Metrics.Addr)
		a.bus.SubscribeAll(metrics.NewMetricsListener().Listener())
	}

	tracing, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:       spec.Tracing.Endpoint,
		ServiceName:    spec.Tracing.ServiceName,
		ServiceVersion: GetVersion(),
		SampleRatio:    spec.Tracing.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	a.spans = telemetry.NewOTelEventListener(tracing.Tracer())
	a.bus.SubscribeAll(a.spans.Listener())
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return tracing.Shutdown(ctx)
	})
	return nil
}

func vadParams(v *config.VADSpec) *audio.VADParams {
	p := v.Params()
	return &p
}

// buildDispatcher registers the built-in tools and keeps the enabled ones.
func buildDispatcher(spec *config.AssistantSpec, cred credentials.Credential, printer *i18n.Printer) (*tools.Dispatcher, error) {
	t := &spec.Tools
	all := tools.NewRegistry()
	builtins := []tools.Capability{
		tools.NewGenerateContent(gemini.NewClient(gemini.Config{
			Model:         t.ContentModel,
			Credential:    cred,
			DisableSearch: t.DisableSearch,
		}), printer),
		tools.NewGenerateImage(imagen.NewClient(imagen.Config{
			Model:       t.ImageModel,
			Credential:  cred,
			AspectRatio: t.Image.AspectRatio,
		}), media.NormalizeConfig{MaxEdge: t.Image.MaxEdge, Quality: t.Image.Quality}),
	}
	for _, c := range builtins {
		if err := all.Register(c); err != nil {
			return nil, err
		}
	}

	registry := tools.NewRegistry()
	if len(t.Enabled) > 0 {
		var err error
		if registry, err = all.Subset(t.Enabled); err != nil {
			return nil, err
		}
	}

	return tools.NewDispatcher(tools.DispatcherConfig{
		Registry:  registry,
		Printer:   printer,
		RateLimit: rate.Limit(t.RateLimit),
		Burst:     t.Burst,
		Timeout:   t.Timeout,
	})
}

// run serves metrics alongside the front-end until either ends.
func (a *app) run(ctx context.Context, headless bool) error {
	g, gctx := errgroup.WithContext(ctx)
	uiCtx, cancelUI := context.WithCancel(gctx)
	defer cancelUI()

	if a.exporter != nil {
		g.Go(func() error {
			if err := a.exporter.Serve(uiCtx); err != nil {
				return fmt.Errorf("metrics exporter: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer cancelUI()
		updates, unsubscribe := a.ctrl.Subscribe()
		defer unsubscribe()
		if headless {
			return a.runHeadless(uiCtx, updates)
		}
		model := tui.NewModel(a.ctrl, updates, tui.Options{
			Printer: a.printer,
			Title:   a.title(),
			Greet:   a.spec.GreetOnStart(),
		})
		return tui.Run(uiCtx, model)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runHeadless starts immediately and logs every state change until ctx is
// done. An error stops the run; there is nobody to press retry.
func (a *app) runHeadless(ctx context.Context, updates <-chan session.Snapshot) error {
	a.ctrl.Start(a.spec.GreetOnStart())
	last := session.StateIdle
	for {
		select {
		case <-ctx.Done():
			a.ctrl.Stop()
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if snap.State == last {
				continue
			}
			logger.Info("Session state", "from", string(last), "to", string(snap.State), "epoch", snap.Epoch)
			last = snap.State
			if snap.Error != nil {
				return fmt.Errorf("%s: %s", snap.Error.Title, snap.Error.Message)
			}
		}
	}
}

func (a *app) title() string {
	if a.name == "" {
		return "RoboShen"
	}
	return "RoboShen · " + a.name
}

// close stops the session, drains the bus into its listeners and then
// releases the remaining components in reverse order of creation.
func (a *app) close() {
	if a.ctrl != nil {
		_ = a.ctrl.Close()
	}
	a.bus.Flush()
	if a.spans != nil {
		a.spans.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("Shutdown error", "error", err)
		}
	}
	a.closers = nil
	a.bus.Close()
}
