// Command amf2gltf converts AMF scene files to glTF.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/muesli/termenv"

	amf "github.com/flywave/go-amf"
)

var (
	flagConfig     = flag.String("config", "", "TOML config file")
	flagOutput     = flag.String("o", "", "output file (.glb or .gltf), defaults to the input name with .glb")
	flagStrings    = flag.String("strings", "", "string framing: null or length")
	flagSelect     = flag.String("select", "", "comma separated Region or Region/Permutation list")
	flagSplit      = flag.Bool("split", false, "emit one mesh per submesh")
	flagNoNormals  = flag.Bool("no-normals", false, "skip normals")
	flagNoWeights  = flag.Bool("no-weights", false, "skip skin weights")
	flagNoUV       = flag.Bool("no-uv", false, "skip texture coordinates")
	flagUnwrap     = flag.Bool("unwrap", false, "request an empty UV unwrap per mesh")
	flagUnitScale  = flag.Float64("scale", 0, "unit scale applied to transforms")
	flagNodeRadius = flag.Float64("radius", 0, "length of leaf bones")
	flagInfo       = flag.Bool("info", false, "print the header and exit")
	flagVV         = flag.Bool("vv", false, "debug logging")
	flagV          = flag.Bool("v", false, "info logging")
	flagQ          = flag.Bool("q", false, "errors only")
)

// levelFromFlags picks the log level from the verbosity flags.
func levelFromFlags(vv, v, q bool) slog.Level {
	switch {
	case vv:
		return slog.LevelDebug
	case v:
		return slog.LevelInfo
	case q:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] file.amf\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(); err != nil {
		out := termenv.NewOutput(os.Stderr)
		fmt.Fprintln(os.Stderr, out.String("error:").Foreground(out.Color("1")).Bold().String(), err)
		os.Exit(1)
	}
}

func run() error {
	if flag.NArg() != 1 {
		flag.Usage()
		return errors.New("expected one input file")
	}
	input := flag.Arg(0)

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: levelFromFlags(*flagVV, *flagV, *flagQ),
	}))
	return convert(input, log)
}

func loadConfig() (Config, error) {
	var cfg Config
	if *flagConfig != "" {
		var err error
		if cfg, err = Load(*flagConfig); err != nil {
			return Config{}, err
		}
	}
	cfg.Resolve(Flags{
		Strings:    *flagStrings,
		Select:     *flagSelect,
		Split:      *flagSplit,
		NoNormals:  *flagNoNormals,
		NoWeights:  *flagNoWeights,
		NoUV:       *flagNoUV,
		Unwrap:     *flagUnwrap,
		UnitScale:  *flagUnitScale,
		NodeRadius: *flagNodeRadius,
		Output:     *flagOutput,
	})
	return cfg, cfg.Validate()
}

func outputPath(input string, binary bool) string {
	if *flagOutput != "" {
		return *flagOutput
	}
	ext := ".glb"
	if !binary {
		ext = ".gltf"
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ext
}

func convert(input string, log *slog.Logger) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := termenv.NewOutput(os.Stdout)

	if *flagInfo {
		h, err := amf.ReadHeaderFrom(input, cfg.Encoding())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s  version %g  %s\n", out.String(h.Name).Bold(), h.Version, input)
		return nil
	}

	if !strings.EqualFold(filepath.Ext(input), amf.AMFEXT) {
		log.Warn("input does not look like a scene file", "path", input, "ext", amf.AMFEXT)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dopts := cfg.DecodeOptions()
	dopts.Logger = log
	model, err := amf.DecodeFile(input, dopts)
	if err != nil {
		return err
	}

	sel, err := amf.ParseSelection(model, cfg.Select)
	if err != nil {
		return err
	}

	sk, err := amf.BuildSkeleton(model.Nodes, cfg.SkeletonOptions())
	if err != nil {
		return err
	}

	aopts := cfg.AssembleOptions()
	aopts.Logger = log
	set, err := amf.Assemble(ctx, model, sel, aopts)
	if err != nil {
		return fmt.Errorf("assemble %s: %w", model.Header.Name, err)
	}

	doc, err := amf.ExportGltf(model, sk, set)
	if err != nil {
		return fmt.Errorf("export %s: %w", model.Header.Name, err)
	}

	dst := outputPath(input, *cfg.Binary)
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := amf.WriteGltf(f, doc, *cfg.Binary); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	if !*flagQ {
		summary(out, os.Stdout, model, sk, set, dst)
	}
	return nil
}

func summary(out *termenv.Output, w io.Writer, model *amf.Model, sk *amf.Skeleton, set *amf.MeshSet, dst string) {
	fmt.Fprintf(w, "%s -> %s\n", out.String(model.Header.Name).Bold(), dst)
	fmt.Fprintf(w, "  bones %d  meshes %d  instances %d  shaders %d/%d\n",
		sk.BoneCount(), set.MeshCount(), set.InstanceCount(), len(set.UsedShaders), model.ShaderCount())
	if len(set.Warnings) == 0 {
		fmt.Fprintln(w, " ", out.String("no warnings").Foreground(out.Color("2")))
		return
	}
	fmt.Fprintln(w, " ", out.String(fmt.Sprintf("%d warnings", len(set.Warnings))).Foreground(out.Color("3")).Bold())
	for _, wn := range set.Warnings {
		fmt.Fprintln(w, "   ", out.String(wn.String()).Faint())
	}
}
