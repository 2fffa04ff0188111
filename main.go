package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ZacxDev/video-overlay/internal/config"
	"github.com/ZacxDev/video-overlay/internal/logging"
	"github.com/ZacxDev/video-overlay/internal/media"
	"github.com/ZacxDev/video-overlay/internal/overlay"
	"github.com/ZacxDev/video-overlay/pkg/overlayexport"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	rootCmd = &cobra.Command{
		Use:   "video-overlay",
		Short: "Burn an animated text overlay into a video",
		Long: `video-overlay composites a caption box onto a video and exports it as MP4.
The caption fades in and slides into place at the start of the clip.

Examples:
  # Caption a clip near the bottom of the frame
  video-overlay export -i input.mov --text "Hello"

  # Caption at the top and choose the output file
  video-overlay export -i input.mov -o captioned.mp4 --text "Day one" --position top`,
		SilenceUsage: true,
	}

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Export a video with a text overlay",
		Long: fmt.Sprintf(`Export a copy of a video with an animated text overlay burned in.

Supported positions:
%s
Output is H.264 MP4 at a fixed %d fps. Audio is copied unchanged.

Example:
  video-overlay export -i input.mov -o output.mp4 --text "Hello" --position top`,
			formatSupportedPositions(), config.FrameRate),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &config.ExportOptions{}

			// Get flags
			opts.InputPath, _ = cmd.Flags().GetString("input")
			opts.OutputPath, _ = cmd.Flags().GetString("output")
			opts.Text, _ = cmd.Flags().GetString("text")
			opts.Position, _ = cmd.Flags().GetString("position")
			opts.Verbose, _ = cmd.Flags().GetBool("verbose")
			opts.Text = strings.ReplaceAll(opts.Text, `\n`, "\n")

			if opts.InputPath == "" {
				return errors.New("input path is required")
			}
			if strings.TrimSpace(opts.Text) == "" {
				return errors.New("overlay text is required")
			}

			return runExport(cmd, opts)
		},
	}

	probeCmd = &cobra.Command{
		Use:   "probe",
		Short: "Show the tracks, orientation and display size of a video",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("input")
			verbose, _ := cmd.Flags().GetBool("verbose")

			ex, err := newExporter(cmd, verbose)
			if err != nil {
				return err
			}

			asset, err := ex.Probe(cmd.Context(), input)
			if err != nil {
				return err
			}
			printAsset(asset)
			return nil
		},
	}

	layoutCmd = &cobra.Command{
		Use:   "layout",
		Short: "Compute the overlay layout for a frame size without rendering",
		Long: `Print the overlay geometry for a display size and optionally write the
rasterised overlay to a PNG file.

Example:
  video-overlay layout --width 1080 --height 1920 --text "Hello" --position center --png overlay.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			width, _ := cmd.Flags().GetInt("width")
			height, _ := cmd.Flags().GetInt("height")
			text, _ := cmd.Flags().GetString("text")
			position, _ := cmd.Flags().GetString("position")
			pngPath, _ := cmd.Flags().GetString("png")

			pos, err := overlay.ParsePosition(position)
			if err != nil {
				return err
			}

			geom, err := overlay.Compute(media.Size{Width: float64(width), Height: float64(height)}, overlay.Spec{Text: text, Position: pos})
			if err != nil {
				return err
			}

			if err := printYAML(layoutSummary(geom)); err != nil {
				return err
			}

			if pngPath == "" {
				return nil
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			brand, err := cfg.Brand()
			if err != nil {
				return err
			}
			return overlay.WritePNG(pngPath, geom, overlay.DefaultStyle(brand))
		},
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration or write it to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			write, _ := cmd.Flags().GetString("write")
			if write != "" {
				if err := cfg.Save(write); err != nil {
					return err
				}
				fmt.Printf("Configuration written to %s\n", write)
				return nil
			}
			return printYAML(cfg)
		},
	}
)

func runExport(cmd *cobra.Command, opts *config.ExportOptions) error {
	pos, err := overlay.ParsePosition(opts.Position)
	if err != nil {
		return err
	}

	ex, err := newExporter(cmd, opts.Verbose)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	job, err := ex.ExportWithOverlay(ctx, opts.InputPath, opts.Text, pos, opts.OutputPath)
	if err != nil {
		return err
	}

	start := time.Now()
	for p := range job.Updates() {
		fmt.Fprintf(os.Stderr, "\rExporting... %3.0f%%", p*100)
	}
	fmt.Fprintln(os.Stderr)

	result, err := job.Wait()
	if err != nil {
		return err
	}

	fmt.Printf("Exported %s (%.0fx%.0f, %s) in %s\n",
		result.OutputPath,
		result.RenderSize.Width, result.RenderSize.Height,
		result.Duration.Round(time.Millisecond),
		time.Since(start).Round(time.Millisecond))
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func newExporter(cmd *cobra.Command, verbose bool) (*overlayexport.Exporter, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.LogLevel, verbose)
	return overlayexport.FromConfig(cfg, log.Logger)
}

func printAsset(a *media.Asset) {
	fmt.Printf("File:      %s\n", a.Path)
	fmt.Printf("Duration:  %s\n", a.Duration.Round(time.Millisecond))
	for _, t := range a.Tracks {
		switch t.Kind {
		case media.TrackVideo:
			fmt.Printf("Video:     #%d %s %.0fx%.0f @ %.2f fps, rotation %.0f\n",
				t.Index, t.Codec, t.NaturalSize.Width, t.NaturalSize.Height, t.FrameRate, t.Transform.Degrees())
		case media.TrackAudio:
			fmt.Printf("Audio:     #%d %s\n", t.Index, t.Codec)
		}
	}
	display := a.DisplaySize()
	fmt.Printf("Display:   %.0fx%.0f\n", display.Width, display.Height)
}

type rectSummary struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type layoutOutput struct {
	Display  string      `yaml:"display"`
	Position string      `yaml:"position"`
	FontSize float64     `yaml:"font_size"`
	Lines    []string    `yaml:"lines"`
	Box      rectSummary `yaml:"box"`
	Text     rectSummary `yaml:"text"`
	SlideY   [2]float64  `yaml:"slide_y"`
}

func layoutSummary(g *overlay.Geometry) layoutOutput {
	rect := func(r overlay.Rect) rectSummary {
		return rectSummary{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
	}
	return layoutOutput{
		Display:  fmt.Sprintf("%.0fx%.0f", g.RenderSize.Width, g.RenderSize.Height),
		Position: g.Position.String(),
		FontSize: g.FontSize,
		Lines:    g.Text.Lines,
		Box:      rect(g.Box),
		Text:     rect(g.TextFrame),
		SlideY:   [2]float64{g.Slide.From, g.Slide.To},
	}
}

func printYAML(v interface{}) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return errors.WithStack(err)
	}
	fmt.Print(string(out))
	return nil
}

func formatSupportedPositions() string {
	var sb strings.Builder
	for _, p := range overlay.Positions {
		sb.WriteString(fmt.Sprintf("- %s\n", p))
	}
	return sb.String()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./video-overlay.yaml or ~/.video-overlay/config.yaml)")

	// Export command flags
	exportCmd.Flags().StringP("input", "i", "", "Input video file")
	exportCmd.Flags().StringP("output", "o", "", "Output video path (default: a new file in the scratch directory)")
	exportCmd.Flags().StringP("text", "t", "", "Overlay text, \\n starts a new line")
	exportCmd.Flags().StringP("position", "p", string(overlay.PositionBottom),
		fmt.Sprintf("Overlay position (%s)", strings.Join(positionNames(), ", ")))
	exportCmd.Flags().BoolP("verbose", "v", false, "Enable verbose logging")

	exportCmd.MarkFlagRequired("input")
	exportCmd.MarkFlagRequired("text")

	// Probe command flags
	probeCmd.Flags().StringP("input", "i", "", "Input video file")
	probeCmd.Flags().BoolP("verbose", "v", false, "Enable verbose logging")
	probeCmd.MarkFlagRequired("input")

	// Layout command flags
	layoutCmd.Flags().Int("width", 1920, "Display width")
	layoutCmd.Flags().Int("height", 1080, "Display height")
	layoutCmd.Flags().StringP("text", "t", "", "Overlay text")
	layoutCmd.Flags().StringP("position", "p", string(overlay.PositionBottom), "Overlay position")
	layoutCmd.Flags().String("png", "", "Write the rasterised overlay to this file")

	// Config command flags
	configCmd.Flags().String("write", "", "Write the effective configuration to this file")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(configCmd)
}

func positionNames() []string {
	names := make([]string, 0, len(overlay.Positions))
	for _, p := range overlay.Positions {
		names = append(names, p.String())
	}
	return names
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
