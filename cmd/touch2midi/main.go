// Package main is the entry point for the touch2midi CLI
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/james-see/touch2midi/pkg/api"
	"github.com/james-see/touch2midi/pkg/decoder"
	"github.com/james-see/touch2midi/pkg/script"
	"github.com/james-see/touch2midi/pkg/tui"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	outputFile string
	serverPort int
	debugLogs  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "touch2midi",
	Short: "Render continuous pitch gestures to MIDI and decode them back",
	Long: `touch2midi renders gesture scripts (fingers with fractional pitches and
per-finger expression) into channel-cycled MIDI streams for multi-timbral
synths, and decodes such streams back into engine events.

Examples:
  touch2midi render slide.json -o slide.bin
  touch2midi render slide.json -o slide.mid
  touch2midi decode slide.bin
  touch2midi roundtrip slide.json
  touch2midi tui
  touch2midi serve --port 8080`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger(debugLogs)
	},
}

var renderCmd = &cobra.Command{
	Use:   "render <script.json>",
	Short: "Render a gesture script to a MIDI stream",
	Long:  `Renders the script to a raw MIDI stream, or to a standard MIDI file when the output path ends in .mid/.midi.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

var decodeCmd = &cobra.Command{
	Use:   "decode <input.bin|input.mid>",
	Short: "Decode a MIDI stream into gesture events",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

var roundtripCmd = &cobra.Command{
	Use:   "roundtrip <script.json>",
	Short: "Render a script and decode the result in one pass",
	Args:  cobra.ExactArgs(1),
	RunE:  runRoundtrip,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugLogs, "debug", false, "Enable debug logging")

	renderCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (.bin, .mid)")
	decodeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output events file path (default: stdout)")

	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Server port")

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(roundtripCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

// initLogger routes the default slog logger, which the emitter and decoder
// diagnostics fall back to, through stderr at the requested level.
func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(h))
}

func getOutputPath(input, defaultExt string) string {
	if outputFile != "" {
		return outputFile
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + defaultExt
}

func isSMFPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".mid" || ext == ".midi"
}

func loadScript(path string) (*script.Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return script.Load(data)
}

func runRender(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, ".bin")

	s, err := loadScript(input)
	if err != nil {
		return err
	}
	result, err := s.RenderBytes()
	if err != nil {
		return err
	}
	if isSMFPath(output) {
		result, err = script.WrapSMF(result)
		if err != nil {
			return err
		}
	}

	if err := os.WriteFile(output, result, 0644); err != nil {
		return err
	}

	fmt.Printf("Rendered %s -> %s (%d bytes)\n", input, output, len(result))
	return nil
}

func decodeStream(data []byte) []map[string]any {
	var events []map[string]any
	d := decoder.New(func(channel, attack int, pitch, volume float64, exprParm, expr int) {
		events = append(events, map[string]any{
			"channel":  channel,
			"attack":   attack,
			"pitch":    pitch,
			"volume":   volume,
			"exprParm": exprParm,
			"expr":     expr,
		})
	})
	d.Feed(data)
	return events
}

func runDecode(cmd *cobra.Command, args []string) error {
	input := args[0]

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	if isSMFPath(input) {
		data, err = script.UnwrapSMF(data)
		if err != nil {
			return err
		}
	}

	out, err := json.MarshalIndent(decodeStream(data), "", "  ")
	if err != nil {
		return err
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, out, 0644); err != nil {
			return err
		}
		fmt.Printf("Decoded %s -> %s\n", input, outputFile)
		return nil
	}
	fmt.Println(string(out))
	return nil
}

func runRoundtrip(cmd *cobra.Command, args []string) error {
	input := args[0]

	s, err := loadScript(input)
	if err != nil {
		return err
	}
	raw, err := s.RenderBytes()
	if err != nil {
		return err
	}

	events := decodeStream(raw)
	fmt.Printf("%d MIDI bytes, %d engine events\n", len(raw), len(events))
	for _, ev := range events {
		fmt.Printf("  ch=%v attack=%v pitch=%.4f volume=%.4f\n",
			ev["channel"], ev["attack"], ev["pitch"], ev["volume"])
	}
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	return tui.Run()
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Printf("Starting API server on port %d...\n", serverPort)
	return api.StartServer(serverPort)
}
