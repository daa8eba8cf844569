// Command wiremsg exchanges operator-defined binary messages over TCP. The
// message layout comes from a TOML descriptor file; the serve and connect
// subcommands run a listening server or a connecting client against it.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Zereker/wiremsg"
)

var (
	formatPath string
	listenAddr string
	bindAddr   string
	connectTo  string
	sendValues []string
	linger     time.Duration
)

func main() {
	root := &cobra.Command{
		Use:           "wiremsg",
		Short:         "exchange runtime-defined binary messages over TCP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&formatPath, "format", "f", "", "path to the TOML format descriptor (required)")
	_ = root.MarkPersistentFlagRequired("format")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "listen for clients and log every received message",
		RunE:  runServe,
	}
	serve.Flags().StringVar(&listenAddr, "listen", "", "listen address (default: 127.0.0.1 with an ephemeral port)")

	connect := &cobra.Command{
		Use:   "connect",
		Short: "connect to a server, optionally sending one message",
		RunE:  runConnect,
	}
	connect.Flags().StringVar(&connectTo, "to", "", "server address (required)")
	connect.Flags().StringVar(&bindAddr, "bind", "", "local bind address")
	connect.Flags().StringArrayVar(&sendValues, "send", nil, "field values for one message, in field order")
	connect.Flags().DurationVar(&linger, "linger", 2*time.Second, "how long to keep the connection open")
	_ = connect.MarkFlagRequired("to")

	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "validate a format descriptor and print its fields",
		RunE:  runInspect,
	}

	root.AddCommand(serve, connect, inspect)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() wiremsg.Logger {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()
	return wiremsg.NewZerologLogger(zl)
}

func runServe(cmd *cobra.Command, args []string) error {
	format, err := wiremsg.LoadFormat(formatPath)
	if err != nil {
		return err
	}

	server := wiremsg.NewServer(format, wiremsg.LoggerOption(newLogger()))
	addr, err := server.Run(listenAddr)
	if err != nil {
		return err
	}
	fmt.Println("listening on", addr)

	waitForInterrupt()
	return server.Stop()
}

func runConnect(cmd *cobra.Command, args []string) error {
	format, err := wiremsg.LoadFormat(formatPath)
	if err != nil {
		return err
	}

	client := wiremsg.NewClient(format, wiremsg.LoggerOption(newLogger()))
	addr, err := client.Run(bindAddr, connectTo)
	if err != nil {
		return err
	}
	fmt.Println("connected from", addr)

	if len(sendValues) > 0 {
		msg, err := parseMessage(format, sendValues)
		if err != nil {
			return err
		}
		if err := client.SendMsg(msg); err != nil {
			return err
		}
	}

	time.Sleep(linger)
	return client.Stop()
}

func runInspect(cmd *cobra.Command, args []string) error {
	format, err := wiremsg.LoadFormat(formatPath)
	if err != nil {
		return err
	}

	for i, f := range format.Fields() {
		switch f.Kind {
		case wiremsg.KindVarString, wiremsg.KindVarBytes:
			fmt.Printf("%3d  %-12v len_idx=%d\n", i, f.Kind, f.LenIdx)
		default:
			fmt.Printf("%3d  %-12v width=%d\n", i, f.Kind, f.Width)
		}
	}
	return nil
}

// parseMessage turns one CLI value per field into a Message: integers for
// len/uint/int fields, raw text for string fields, hex for bytes fields.
func parseMessage(format *wiremsg.MessageFormat, args []string) (wiremsg.Message, error) {
	fields := format.Fields()
	if len(args) != len(fields) {
		return nil, fmt.Errorf("format has %d fields, got %d values", len(fields), len(args))
	}

	msg := make(wiremsg.Message, 0, len(fields))
	for i, f := range fields {
		switch f.Kind {
		case wiremsg.KindLen:
			v, err := strconv.ParseUint(args[i], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("field %d: %w", i, err)
			}
			msg = append(msg, wiremsg.Len(v))
		case wiremsg.KindUint:
			v, err := strconv.ParseUint(args[i], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("field %d: %w", i, err)
			}
			msg = append(msg, wiremsg.Uint(v))
		case wiremsg.KindInt:
			v, err := strconv.ParseInt(args[i], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("field %d: %w", i, err)
			}
			msg = append(msg, wiremsg.Int(v))
		case wiremsg.KindFixedString, wiremsg.KindVarString:
			msg = append(msg, wiremsg.String(args[i]))
		case wiremsg.KindFixedBytes, wiremsg.KindVarBytes:
			b, err := hex.DecodeString(args[i])
			if err != nil {
				return nil, fmt.Errorf("field %d: %w", i, err)
			}
			msg = append(msg, wiremsg.Bytes(b))
		}
	}
	return msg, nil
}

func waitForInterrupt() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
}
