// Command gridlive runs a performance session: it wires the Clock,
// Scheduler, VM environment, Audio Engine, and every device sink
// together, then hands control to the terminal UI.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/schollz/gridlive/internal/audio/dsp"
	"github.com/schollz/gridlive/internal/audio/samplib"
	"github.com/schollz/gridlive/internal/audiooutput"
	"github.com/schollz/gridlive/internal/clock"
	"github.com/schollz/gridlive/internal/dirtplayer"
	"github.com/schollz/gridlive/internal/midiconnector"
	"github.com/schollz/gridlive/internal/midiplayer"
	"github.com/schollz/gridlive/internal/modulation"
	"github.com/schollz/gridlive/internal/oscdevice"
	"github.com/schollz/gridlive/internal/oscserver"
	"github.com/schollz/gridlive/internal/project"
	"github.com/schollz/gridlive/internal/relay"
	"github.com/schollz/gridlive/internal/scheduler"
	"github.com/schollz/gridlive/internal/storage"
	"github.com/schollz/gridlive/internal/tui"
)

type options struct {
	projectDir string
	oscPort    int
	dirtHost   string
	dirtPort   int
	relayAddr  string
	instance   string
	sampleRate int
	blockSize  int
	numVoices  int
	midiInDev  string
	noAudio    bool
	debugLog   string
}

func main() {
	opts := &options{}

	root := &cobra.Command{
		Use:   "gridlive",
		Short: "A live-coding music performance environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	root.Flags().StringVar(&opts.projectDir, "project", "", "project folder (prompts with a picker if empty)")
	root.Flags().IntVar(&opts.oscPort, "osc-port", 9000, "UDP port for the incoming OSC command server")
	root.Flags().StringVar(&opts.dirtHost, "dirt-host", "127.0.0.1", "default host for outbound Dirt/OSC device messages")
	root.Flags().IntVar(&opts.dirtPort, "dirt-port", 57120, "default port for outbound Dirt/OSC device messages")
	root.Flags().StringVar(&opts.relayAddr, "relay-addr", "", "peer relay address (disabled if empty)")
	root.Flags().StringVar(&opts.instance, "instance", hostnameOrDefault(), "this session's relay instance name")
	root.Flags().IntVar(&opts.sampleRate, "sample-rate", 48000, "audio engine sample rate")
	root.Flags().IntVar(&opts.blockSize, "block-size", 256, "audio engine block size in frames")
	root.Flags().IntVar(&opts.numVoices, "voices", 32, "audio engine polyphony")
	root.Flags().StringVar(&opts.midiInDev, "midi-in", "", "MIDI input device to feed live CC values (disabled if empty)")
	root.Flags().BoolVar(&opts.noAudio, "no-audio", false, "skip opening a hardware audio output device")
	root.Flags().StringVar(&opts.debugLog, "debug", "", "if set, write debug logs to this file")

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "List available MIDI input and output device names",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Output devices:")
			for _, d := range midiconnector.Devices() {
				fmt.Printf("  %s\n", d)
			}
			fmt.Println("Input devices:")
			for _, d := range midiconnector.InputDevices() {
				fmt.Printf("  %s\n", d)
			}
			return nil
		},
	}
	root.AddCommand(devicesCmd)

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func hostnameOrDefault() string {
	name, err := os.Hostname()
	if err != nil {
		return "gridlive"
	}
	return name
}

func run(opts *options) error {
	if opts.debugLog != "" {
		f, err := os.Create(opts.debugLog)
		if err != nil {
			return fmt.Errorf("open debug log: %w", err)
		}
		defer f.Close()
		log.SetOutput(f)
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	projectDir := opts.projectDir
	if projectDir == "" {
		selected, cancelled := project.RunProjectSelector()
		if cancelled {
			return nil
		}
		projectDir = selected
	}
	if projectDir == "" {
		home, _ := os.UserHomeDir()
		projectDir = filepath.Join(home, "gridlive-session")
	}

	doc := loadOrInitDocument(projectDir)

	var relayClient *relay.Client
	if opts.relayAddr != "" {
		relayClient = relay.NewClient(opts.instance)
		if err := relayClient.Connect(opts.relayAddr); err != nil {
			log.Printf("gridlive: relay connect failed, continuing local-only: %v", err)
		}
	}

	var peers clock.PeerGroup
	if relayClient != nil {
		peers = relayClient
	}
	clk := clock.New(peers)
	if doc.TempoBPM > 0 {
		clk.SetTempo(doc.TempoBPM)
	} else {
		clk.SetTempo(120)
	}

	ccMemory := modulation.NewCCMemory()
	bank := modulation.NewBank(ccMemory)

	sched := scheduler.New(clk, bank)
	sched.Scene = doc.Scene

	samplesDir := filepath.Join(projectDir, "samples")
	if err := os.MkdirAll(samplesDir, 0755); err != nil {
		log.Printf("gridlive: could not create samples folder: %v", err)
	}
	lib, err := samplib.NewLibrary(samplesDir, opts.sampleRate, 64, 2)
	if err != nil {
		log.Printf("gridlive: sample library unavailable: %v", err)
	}

	dirtSink := dirtplayer.NewSink(lib)
	sched.AddSink(dirtSink)
	sched.AddSink(midiplayer.NewSink())
	sched.AddSink(oscdevice.NewSink(func(string) (string, int) {
		return opts.dirtHost, opts.dirtPort
	}))

	engine := dsp.NewEngine(int64(opts.sampleRate), opts.blockSize, opts.numVoices)
	var audioOut *audiooutput.Output
	if !opts.noAudio {
		audioOut, err = audiooutput.New(engine, dirtSink, opts.sampleRate, opts.blockSize, nil)
		if err != nil {
			log.Printf("gridlive: audio output unavailable, running silent: %v", err)
		}
	}
	silentRender := make(chan struct{})
	if audioOut == nil {
		// No hardware sink is pulling blocks, so drive the engine by hand
		// at block-rate — otherwise dirtSink's queue would grow without
		// bound, since nothing would ever call Drain.
		go runSilentRenderLoop(engine, dirtSink, opts.sampleRate, opts.blockSize, silentRender)
	}

	send := func(m scheduler.Message) {
		sched.Send(m)
		if relayClient != nil {
			relayClient.Forward(m)
		}
		if relay.ShouldRelay(m.Kind) {
			storage.AutoSave(documentSource(sched, doc.Metadata), projectDir)
		}
	}

	oscServer := oscserver.New(fmt.Sprintf(":%d", opts.oscPort), send)
	go func() {
		if err := oscServer.ListenAndServe(); err != nil {
			log.Printf("gridlive: OSC server stopped: %v", err)
		}
	}()

	if relayClient != nil {
		go func() {
			for m := range relayClient.Inbound() {
				sched.Send(m)
			}
		}()
	}

	var stopMIDIIn func()
	if opts.midiInDev != "" {
		stopMIDIIn, err = midiconnector.ListenCC(opts.midiInDev, ccMemory.Set)
		if err != nil {
			log.Printf("gridlive: MIDI input unavailable: %v", err)
		}
	}

	stopTick := make(chan struct{})
	go runTickLoop(sched, stopTick)

	setupCleanupOnExit(stopTick, silentRender, audioOut, stopMIDIIn)

	m := tui.New(sched, relayClient, projectDir)
	if err := tui.Run(m); err != nil {
		log.Printf("gridlive: UI exited with error: %v", err)
	}

	close(stopTick)
	close(silentRender)
	midiconnector.Close()
	if stopMIDIIn != nil {
		stopMIDIIn()
	}
	if audioOut != nil {
		audioOut.Close()
	}
	if relayClient != nil {
		relayClient.Close()
	}
	return nil
}

func loadOrInitDocument(projectDir string) storage.Document {
	if storage.Exists(projectDir) {
		doc, err := storage.Load(projectDir)
		if err == nil {
			return doc
		}
		log.Printf("gridlive: failed to load %s, starting fresh: %v", projectDir, err)
	}
	return storage.Document{
		Scene:    scheduler.NewScene(),
		TempoBPM: 120,
		Metadata: map[string]string{},
	}
}

// runTickLoop drives the Scheduler at a fine enough grain for
// sample-accurate-feeling triggers without busy-waiting; the Scheduler's
// own Tick dispatches to every registered sink internally.
func runTickLoop(sched *scheduler.Scheduler, stop <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			sched.Tick(sched.Clock.NowMicros())
		}
	}
}

// runSilentRenderLoop calls Engine.ProcessBlock at roughly the rate real
// hardware would pull blocks at, discarding the rendered audio. Used when
// no playback device is open, so queued dirt messages still drain and
// the Engine's sample timer still advances in step with the Scheduler.
func runSilentRenderLoop(engine *dsp.Engine, dirtSink *dirtplayer.Sink, sampleRate, blockSize int, stop <-chan struct{}) {
	period := time.Duration(blockSize) * time.Second / time.Duration(sampleRate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			engine.ProcessBlock(dirtSink.Drain())
		}
	}
}

// documentSource builds a storage.Source that queries a fresh Snapshot
// through the Scheduler's message bus, the same read path tui.Model uses,
// rather than reading Scene directly off the tick goroutine.
func documentSource(sched *scheduler.Scheduler, metadata map[string]string) storage.Source {
	return func() storage.Document {
		reply := make(chan any, 1)
		sched.Send(scheduler.Message{Kind: scheduler.MsgGetSnapshot, Timing: scheduler.AtImmediate(), Reply: reply})

		select {
		case v := <-reply:
			if snap, ok := v.(scheduler.Snapshot); ok {
				return storage.Document{
					Scene:       &snap.Scene,
					TempoBPM:    snap.TempoBPM,
					DriftMicros: snap.DriftMicros,
					Metadata:    metadata,
				}
			}
		case <-time.After(200 * time.Millisecond):
		}
		return storage.Document{Metadata: metadata}
	}
}

func setupCleanupOnExit(stopTick, silentRender chan struct{}, audioOut *audiooutput.Output, stopMIDIIn func()) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-c
		close(stopTick)
		close(silentRender)
		midiconnector.Close()
		if stopMIDIIn != nil {
			stopMIDIIn()
		}
		if audioOut != nil {
			audioOut.Close()
		}
		os.Exit(0)
	}()
}
