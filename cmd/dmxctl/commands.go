package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Station-Manager/dmx"
	"github.com/spf13/cobra"
)

// errNotConfirmed makes check exit non-zero without printing an error on
// top of the status line.
var errNotConfirmed = errors.New("handshake not confirmed")

func portsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List available serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := cmd.Flags().GetBool("details")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !details {
				for _, p := range a.svc.ListPorts() {
					fmt.Fprintln(out, p)
				}
				return nil
			}

			ports, err := a.svc.DetailedPorts()
			if err != nil {
				return fmt.Errorf("listing ports: %w", err)
			}
			return writePortTable(out, ports)
		},
	}

	cmd.Flags().BoolP("details", "d", false, "show USB vendor/product information")
	return cmd
}

func writePortTable(out io.Writer, ports []dmx.PortInfo) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PORT\tUSB ID\tSERIAL\tPRODUCT")
	for _, p := range ports {
		usbID := "-"
		if p.IsUSB {
			usbID = p.VID + ":" + p.PID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, usbID, orDash(p.SerialNumber), orDash(p.Product))
	}
	return w.Flush()
}

func checkCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that a DMX controller answers on the port",
		Long: `Send the handshake challenge and wait up to one second for the
controller's acknowledgment. Exits with status 1 unless it is confirmed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := a.resolvePort(cmd)
			if err != nil {
				return err
			}

			res, err := a.svc.Handshake(port)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch res.Status {
			case dmx.HandshakeConfirmed:
				fmt.Fprintf(out, "%s: confirmed\n", port)
				return nil
			case dmx.HandshakeDenied:
				fmt.Fprintf(out, "%s: denied (received 0x%02x)\n", port, res.Received)
			default:
				fmt.Fprintf(out, "%s: no answer (%v)\n", port, res.Reason)
			}
			return errNotConfirmed
		},
	}

	cmd.Flags().StringP("port", "p", "", "serial port (default is the configured port)")
	return cmd
}

func sendCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send CHANNEL,VALUE [CHANNEL,VALUE...]",
		Short: "Set DMX channel values",
		Long: `Set one or more channels. Each pair is sent as its own command
with its own open and close of the port; no reply is awaited.

Example usage:
  dmxctl send 1,255
  dmxctl send --port /dev/ttyUSB0 1,255 2,128 3,0`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmds := make([]dmx.Command, 0, len(args))
			for _, arg := range args {
				c, err := dmx.ParseCommand(arg)
				if err != nil {
					return err
				}
				cmds = append(cmds, c)
			}

			port, err := a.resolvePort(cmd)
			if err != nil {
				return err
			}

			for _, c := range cmds {
				if err := a.svc.Send(port, c); err != nil {
					return err
				}
				a.logger.Info().Str("port", port).Stringer("command", c).Msg("sent")
			}
			return nil
		},
	}

	cmd.Flags().StringP("port", "p", "", "serial port (default is the configured port)")
	return cmd
}

func setPortCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-port PORT",
		Short: "Remember the serial port to use",
		Long: `Check that PORT answers the handshake and store it in the config
file so later commands can omit --port.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			port := args[0]

			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}

			if !force {
				ok, err := a.svc.CheckHandshake(port)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s: %w (use --force to store it anyway)", port, errHandshakeFailed)
				}
			}

			if err := savePort(a.v.ConfigFileUsed(), port); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "port set to %s\n", port)
			return nil
		},
	}

	cmd.Flags().BoolP("force", "f", false, "store the port without checking it")
	return cmd
}

var errHandshakeFailed = errors.New("no DMX controller answered")

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
