//go:build !rp2040

// saki-ctl talks to sensor nodes through a coordinator XBee: it runs node
// discovery at start-up and then reads commands from stdin.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"sakinode-go/drivers/xbee"
	"sakinode-go/services/config"
	"sakinode-go/services/controller"
	"sakinode-go/services/platform"
)

type Options struct {
	Positional struct {
		Port string `description:"Coordinator serial device"`
	} `positional-args:"yes"`

	Baud    int  `short:"b" long:"baud" default:"9600" description:"Serial baud rate"`
	APIMode int  `short:"m" long:"api-mode" default:"2" description:"XBee API mode (1 or 2)"`
	Gap     uint `short:"g" long:"gap" default:"1000" description:"Delay between broadcast requests, milliseconds"`
	List    bool `short:"l" long:"list" description:"List serial ports and exit"`

	Debug []bool `short:"D" long:"debug" description:"Debug mode, repeat for source locations"`
}

func logsetup(debuglevel int) *log.Logger {
	logformat := log.Ldate | log.Ltime | log.Lmicroseconds
	if debuglevel > 1 {
		logformat |= log.Lshortfile
	}
	return log.New(os.Stdout, "", logformat)
}

const help = `commands:
  s             request status
  i             request identification
  c             request config
  n             node discovery
  b cmd         broadcast a command
  k node k v .. set config
  q             quit`

func mainfunction() int {
	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			return 0
		}
		fmt.Printf("Argument parser error: %s\n", err)
		return 1
	}

	if opts.List {
		ports, err := platform.Ports()
		if err != nil {
			fmt.Printf("ERROR: %s\n", err)
			return 1
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return 0
	}
	if opts.Positional.Port == "" {
		opts.Positional.Port = "/dev/ttyUSB0"
	}

	logger := logsetup(len(opts.Debug))
	port, err := platform.OpenSerial(config.RadioConfig{Port: opts.Positional.Port, Baud: opts.Baud})
	if err != nil {
		logger.Printf("ERROR: %s", err)
		return 1
	}
	defer port.Close()

	ctl := controller.New(xbee.NewRadio(port, xbee.Mode(opts.APIMode)), controller.Options{
		RequestGap: time.Duration(opts.Gap) * time.Millisecond,
		Logger:     logger,
	})
	for _, k := range []string{controller.KindID, controller.KindStatus, controller.KindNAK, controller.KindError, controller.KindConfig} {
		ctl.Handle(k, func(e controller.Event) {
			fmt.Printf("%s : %s: %s\n", e.Node, e.Kind, strings.Join(e.Args[1:], " "))
		})
	}
	ctl.OnTxStatus(func(status, retries uint8) {
		fmt.Printf("TX Status: retries=%d, delivery=0x%02X\n", retries, status)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := make(chan error, 1)
	go func() { runErr <- ctl.Run(ctx) }()

	if err := ctl.Discover(); err != nil {
		logger.Printf("ERROR: discovery: %s", err)
	}

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	fmt.Println(help)
	for {
		select {
		case <-ctx.Done():
			return 0
		case err := <-runErr:
			if err != nil {
				logger.Printf("ERROR: %s", err)
				return 1
			}
			return 0
		case line, ok := <-lines:
			if !ok {
				return 0
			}
			err := ctl.Execute(line)
			switch {
			case errors.Is(err, controller.ErrShutdown):
				return 0
			case err != nil:
				fmt.Printf("%s\n%s\n", err, help)
			}
		}
	}
}

func main() {
	os.Exit(mainfunction())
}
