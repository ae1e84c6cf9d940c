package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/qvest-digital/jmbus/internal/history"
	"github.com/qvest-digital/jmbus/internal/options"
	"github.com/qvest-digital/jmbus/pkg/mbus"
)

type config struct {
	keyHex      string
	keyFile     string
	wired       bool
	jsonOutput  bool
	logLevel    string
	logFile     string
	historySize int
	historyTTL  time.Duration
}

var cfg config

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mbus-decode [hex]",
		Short: "Decode M-Bus and wireless M-Bus telegrams",
		Long: "mbus-decode decodes the variable data structure of wired and wireless M-Bus telegrams.\n" +
			"Without an argument it reads one hex telegram per line from stdin and keeps the\n" +
			"device history between lines, so compact frames can be resolved.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(cfg); err != nil {
				return err
			}
			dec, err := newDecoder(cfg)
			if err != nil {
				return err
			}
			s := session{dec: dec, out: cmd.OutOrStdout(), opts: mbus.DecodeOptions{KeyHex: cfg.keyHex, Wired: cfg.wired}, json: cfg.jsonOutput}
			ctx := cmd.Context()
			if len(args) == 0 {
				return s.interactive(ctx, cmd.InOrStdin())
			}
			return s.decode(ctx, args[0])
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.keyHex, "key", "", "hex-encoded 16-byte AES key (32 hex chars) used for every telegram")
	flags.StringVar(&cfg.keyFile, "keys", "", "YAML file with per-device AES keys")
	flags.BoolVar(&cfg.wired, "wired", false, "input is a wired long frame (68 L L 68 ... CS 16)")
	flags.BoolVar(&cfg.jsonOutput, "json", false, "print a JSON summary instead of the record dump")
	flags.StringVar(&cfg.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&cfg.logFile, "log-file", "", "write logs to a rotated file instead of stderr")
	flags.IntVar(&cfg.historySize, "history-size", history.DefaultSize, "number of devices kept for compact frame decoding")
	flags.DurationVar(&cfg.historyTTL, "history-ttl", 0, "drop stored record layouts after this age (0 keeps them)")
	return cmd
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	ctx := context.Background()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logrus.Fatal(err)
	}
}

func setupLogging(c config) error {
	level, err := logrus.ParseLevel(c.logLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	if c.logFile != "" {
		logrus.SetOutput(&lumberjack.Logger{
			Filename:   c.logFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		})
	}
	return nil
}

func newDecoder(c config) (*mbus.Decoder, error) {
	opts := []mbus.Option{
		mbus.WithHistory(mbus.NewHistory(c.historySize, c.historyTTL)),
		mbus.WithLogger(logrus.StandardLogger()),
	}
	if c.keyFile != "" {
		keys, err := options.LoadKeyFile(c.keyFile)
		if err != nil {
			return nil, err
		}
		logrus.WithField("keys", keys.Len()).Info("loaded key file")
		opts = append(opts, mbus.WithKeys(keys.Lookup))
	}
	return mbus.NewDecoder(opts...), nil
}

type session struct {
	dec  *mbus.Decoder
	out  io.Writer
	opts mbus.DecodeOptions
	json bool
}

func (s session) interactive(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	logrus.Info("mbus-decode interactive mode. Paste a hex telegram and press Enter (Ctrl+D to exit).")
	for {
		if f, ok := in.(*os.File); ok && f == os.Stdin {
			fmt.Fprint(s.out, "> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := s.decode(ctx, line); err != nil {
			logrus.WithError(err).WithField("kind", mbus.KindOf(err).String()).Error("failed to decode telegram")
		}
	}
	return scanner.Err()
}

func (s session) decode(ctx context.Context, hex string) error {
	result, err := s.dec.DecodeHex(ctx, hex, s.opts)
	if result.Data == nil {
		return err
	}
	if s.json {
		fmt.Fprintln(s.out, result.String())
		return err
	}
	if result.Telegram != nil {
		fmt.Fprintf(s.out, "meter: %s, CI: 0x%02X, bytes: %d\n", result.Telegram.MeterIDString(), result.Telegram.CI, result.ByteCount)
	}
	fmt.Fprintln(s.out, result.Data.String())
	return err
}
