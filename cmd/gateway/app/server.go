package app

import (
	"context"
	"os/signal"
	"syscall"

	"emsgateway/cmd/gateway/options"
	"emsgateway/pkg/generic"
	baseoptions "emsgateway/pkg/generic/options"
	"emsgateway/pkg/web"
	"github.com/coreos/go-systemd/daemon"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	utilserrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"
)

const (
	ComponentGateway = "ems-gateway"
)

func NewGatewayCmd() *cobra.Command {
	cleanFlagSet := pflag.NewFlagSet(ComponentGateway, pflag.ContinueOnError)
	o := options.NewDefaultOptions()
	cmd := &cobra.Command{
		Use:                ComponentGateway,
		Long:               `The ems gateway bridges cloud commands and telemetry reports to the local energy storage devices.`,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// initial flag parse, since we disable cobra's flag parsing
			if err := cleanFlagSet.Parse(args); err != nil {
				klog.ErrorS(err, "Failed to parse flag")
				_ = cmd.Usage()
				return exit(ExitCLI, err)
			}

			// check if there are non-flag arguments in the command line
			cmds := cleanFlagSet.Args()
			if len(cmds) > 0 {
				klog.ErrorS(nil, "Unknown command", "command", cmds[0])
				_ = cmd.Usage()
				return exit(ExitCLI, errors.Errorf("unknown command %q", cmds[0]))
			}

			// short-circuit on help
			baseoptions.PrintHelpAndExitIfRequested(cmd, cleanFlagSet)

			// short-circuit on defaultconfig
			baseoptions.PrintDefaultConfigAndExitIfRequested(options.NewDefaultOptions(), cleanFlagSet)

			if err := baseoptions.ParseAndApplyConfigFile(o, args); err != nil {
				return exit(ExitConfig, err)
			}

			if errs := options.Validate(o); len(errs) != 0 {
				return exit(ExitConfig, utilserrors.NewAggregate(errs))
			}
			if len(o.CollectorSerial) == 0 {
				return exit(ExitSerial, errors.New("collector serial number is not configured"))
			}

			return run(o)
		},
	}

	o.AddFlags(cleanFlagSet)
	o.AddBaseFlags(cmd, cleanFlagSet)

	return cmd
}

func run(o *options.Options) error {
	// kill (no param) default send syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	// kill -9 is syscall.SIGKILL but can't be catch, so don't need add it
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := waitForIP(ctx, o.Boot.IPFile); err != nil {
		return exit(ExitIP, err)
	}

	c, err := newConfig(ctx, o)
	if err != nil {
		return err
	}

	server := web.NewServer(generic.Default(), o.Port, c)
	shutdown, err := server.Serve()
	if err != nil {
		for _, closer := range c.Closers {
			_ = closer.Closer(context.Background())
		}
		return exit(ExitDeploy, err)
	}
	klog.V(1).InfoS("Server started", "port", o.Port, "collector", o.CollectorSerial)
	sdNotify(daemon.SdNotifyReady)

	<-ctx.Done()
	klog.V(1).InfoS("Shutting down", "timeout", o.Wait.Duration)
	sdNotify(daemon.SdNotifyStopping)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), o.Wait.Duration)
	defer cancel()
	shutdown(shutdownCtx)

	return nil
}

// sdNotify tells systemd about the service state, a no-op outside systemd.
func sdNotify(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		klog.V(2).InfoS("Failed to notify systemd", "state", state, "err", err)
	}
}

// ExitCode maps the error of Execute to the process exit status.
func ExitCode(err error) int {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ExitCLI
}
