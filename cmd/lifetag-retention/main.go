// lifetag-retention inspects and runs audit log retention against the
// configured stores, and issues admin tokens for the HTTP admin API.
//
//	lifetag-retention status  [--format text|json|yaml]
//	lifetag-retention cleanup [--format text|json|yaml]
//	lifetag-retention token   [--subject NAME]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/mohamedS2020/lifetag/internal/app"
	"github.com/mohamedS2020/lifetag/internal/authz"
	"github.com/mohamedS2020/lifetag/internal/config"
	"github.com/mohamedS2020/lifetag/internal/lifetag/service"
	"github.com/mohamedS2020/lifetag/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	format  string
	subject string
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	var opt options

	flagSet := pflag.NewFlagSet("lifetag-retention", pflag.ContinueOnError)
	flagSet.SetOutput(stdout)
	flagSet.StringVarP(&opt.format, "format", "o", "text", "output format: text, json or yaml")
	flagSet.StringVar(&opt.subject, "subject", "operator", "subject recorded in issued tokens")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stdout, flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(stdout, flagSet)
		return nil
	}

	rest := flagSet.Args()
	if len(rest) != 1 {
		printHelp(stdout, flagSet)
		return fmt.Errorf("expected exactly one command")
	}
	switch opt.format {
	case formatText, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unknown format %q", opt.format)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	switch rest[0] {
	case "token":
		return issueToken(cfg, opt, stdout)
	case "status", "cleanup":
	default:
		return fmt.Errorf("unknown command %q", rest[0])
	}

	// Logs go to stderr so stdout stays parseable.
	logger := logging.NewWithWriter(cfg.Log, os.Stderr)

	stores, err := app.OpenStores(ctx, cfg, logger, app.OpenOptions{})
	if err != nil {
		return err
	}
	defer stores.Close()

	svc := app.NewServices(cfg, stores, app.Observers{}, nil, logger)
	return runRetention(ctx, rest[0], svc.Retention, opt.format, stdout)
}

func runRetention(ctx context.Context, cmd string, m *service.RetentionManager, format string, stdout io.Writer) error {
	if cmd == "cleanup" {
		rec, err := m.ExecuteManualCleanup(ctx)
		if err != nil {
			return err
		}
		if err := writeRun(stdout, format, service.RunView(rec)); err != nil {
			return err
		}
		if !rec.Success {
			return fmt.Errorf("cleanup finished with %d error(s)", len(rec.Errors))
		}
		return nil
	}

	st, err := m.Status(ctx)
	if err != nil {
		return err
	}
	return writeStatus(stdout, format, st.View(time.Now()))
}

func issueToken(cfg *config.Config, opt options, stdout io.Writer) error {
	tokens := authz.NewTokenManager(cfg.Admin.TokenSecret, cfg.Admin.TokenTTL)
	tok, exp, err := tokens.Issue(opt.subject)
	if err != nil {
		return err
	}
	return writeToken(stdout, opt.format, tokenOutput{Token: tok, ExpiresAt: exp.UTC().Format(time.RFC3339)})
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintln(w, "usage: lifetag-retention [flags] status|cleanup|token")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  status   show the retention policy and how far the audit log exceeds it")
	fmt.Fprintln(w, "  cleanup  run one retention cleanup now")
	fmt.Fprintln(w, "  token    issue an admin bearer token")
	fmt.Fprintln(w)
	fmt.Fprint(w, flagSet.FlagUsages())
}
