// Command seq2seq trains the transformer translation model and translates
// with it.
//
//	seq2seq tokenizer -config run.yaml    learn the BPE vocabulary
//	seq2seq train -config run.yaml        train, validate and checkpoint
//	seq2seq translate -model best.ckpt    translate arguments or stdin lines
//	seq2seq version
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/born-ml/seq2seq/internal/config"
)

const version = "v0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "seq2seq: %v\n", err)
		os.Exit(1)
	}
}

// env carries the process streams into a command.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	e := env{stdin: stdin, stdout: stdout, stderr: stderr}
	if len(args) == 0 {
		usage(stdout)
		return nil
	}

	switch args[0] {
	case "version":
		fmt.Fprintf(stdout, "seq2seq %s\n", version)
		return nil
	case "tokenizer":
		return runTokenizer(ctx, args[1:], e)
	case "train":
		return runTrain(ctx, args[1:], e)
	case "translate":
		return runTranslate(ctx, args[1:], e)
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return nil
	default:
		usage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "seq2seq %s - transformer translation\n\n", version)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  tokenizer   Train the BPE tokenizer on the corpus")
	fmt.Fprintln(w, "  train       Train the model")
	fmt.Fprintln(w, "  translate   Translate sentences with a trained model")
	fmt.Fprintln(w, "  version     Show version")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Settings come from -config YAML, .env and %s* variables:\n", config.EnvPrefix)
	fmt.Fprintf(w, "  %s\n", strings.Join(sortedEnvKeys(), " "))
}

// commonFlags registers the flags every command shares.
type commonFlags struct {
	configPath string
	envFile    string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&c.envFile, "env-file", "", ".env file (default: search the working directory and its parents)")
}

// setup loads the configuration and builds the logger.
func (c *commonFlags) setup(e env) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Loader{File: c.configPath, EnvFile: c.envFile}.Load()
	if err != nil {
		return nil, nil, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, nil, fmt.Errorf("%w: log_level: %w", config.ErrInvalidConfig, err)
	}
	logger := slog.New(slog.NewTextHandler(e.stderr, &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}

func newFlagSet(name string, e env) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}
